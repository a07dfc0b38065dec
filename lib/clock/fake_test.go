// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvances(t *testing.T) {
	fake := Fake(epoch)
	if got := fake.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	fake.Advance(1500 * time.Millisecond)
	if got, want := fake.Now(), epoch.Add(1500*time.Millisecond); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfterFiresAtDeadline(t *testing.T) {
	fake := Fake(epoch)
	channel := fake.After(2 * time.Second)

	fake.Advance(time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before its deadline")
	default:
	}

	fake.Advance(time.Second)
	select {
	case fired := <-channel:
		if want := epoch.Add(2 * time.Second); !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	default:
		t.Fatal("After did not fire at its deadline")
	}
	if pending := fake.PendingTimers(); pending != 0 {
		t.Errorf("PendingTimers() = %d after one-shot fired, want 0", pending)
	}
}

func TestFakeAfterNonPositiveIsImmediate(t *testing.T) {
	fake := Fake(epoch)
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) was not ready immediately")
	}
	if pending := fake.PendingTimers(); pending != 0 {
		t.Errorf("PendingTimers() = %d, want 0", pending)
	}
}

func TestFakeTickerDropsTicksWhenBehind(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	defer ticker.Stop()

	// Three intervals at once: the channel holds one tick.
	fake.Advance(3 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire")
	}
	select {
	case <-ticker.C:
		t.Fatal("ticker queued more than one tick")
	default:
	}

	fake.Advance(time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire on the next interval")
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := Fake(epoch)
	ticker := fake.NewTicker(time.Second)
	ticker.Stop()

	fake.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
	if pending := fake.PendingTimers(); pending != 0 {
		t.Errorf("PendingTimers() = %d after Stop, want 0", pending)
	}
}

func TestFakeNewTickerPanicsOnZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) did not panic")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(epoch)
	done := make(chan time.Time)

	go func() {
		done <- <-fake.After(time.Minute)
	}()

	fake.WaitForTimers(1)
	fake.Advance(time.Minute)

	select {
	case fired := <-done:
		if want := epoch.Add(time.Minute); !fired.Equal(want) {
			t.Errorf("fired at %v, want %v", fired, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for goroutine's After to fire")
	}
}

func TestRealClock(t *testing.T) {
	real := Real()
	before := time.Now()
	if got := real.Now(); got.Before(before) {
		t.Fatalf("Real().Now() = %v, before %v", got, before)
	}
	ticker := real.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C:
	case <-time.After(5 * time.Second):
		t.Fatal("real ticker never fired")
	}
}
