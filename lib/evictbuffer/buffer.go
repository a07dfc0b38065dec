// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package evictbuffer

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bureau-foundation/bureau-connect/lib/clock"
)

// ErrInvalidCapacity is returned by New when the capacity is not
// positive.
var ErrInvalidCapacity = errors.New("evictbuffer: capacity must be positive")

// Entry is a stored payload. Its weight is len(Data). Timestamp is the
// time of the most recent Add for ID.
type Entry struct {
	ID        string    `cbor:"id"`
	Data      []byte    `cbor:"data"`
	Timestamp time.Time `cbor:"timestamp"`

	// admission is the buffer's admission count when this entry was
	// added. It tells a re-added id apart from the entry a caller saw.
	admission uint64
}

// Stats is a point-in-time view of a buffer's occupancy and lifetime
// counters.
type Stats struct {
	Entries  int    `json:"entries"`
	Occupied int    `json:"occupied_bytes"`
	Capacity int    `json:"capacity_bytes"`
	Admitted uint64 `json:"admitted"`
	Evicted  uint64 `json:"evicted"`
	Rejected uint64 `json:"rejected"`
	Deleted  uint64 `json:"deleted"`
}

// EvictHandler observes entries removed to make room for a new one. It
// is not called for Delete or for the replacement of an id by Add.
type EvictHandler func(Entry)

// Option configures a Buffer at construction.
type Option func(*Buffer)

// WithClock sets the time source used to stamp admissions and to
// compute the OlderThan cutoff. Defaults to clock.Real().
func WithClock(clk clock.Clock) Option {
	return func(b *Buffer) { b.clock = clk }
}

// WithEvictHandler registers a callback for evicted entries. The
// handler runs on the goroutine that called Add, after the buffer's
// lock is released, once per evicted entry in eviction order.
func WithEvictHandler(handler EvictHandler) Option {
	return func(b *Buffer) { b.onEvict = handler }
}

// Buffer is a byte-bounded map from id to payload with an eviction
// order. The zero value is not usable; construct with New.
type Buffer struct {
	clock   clock.Clock
	onEvict EvictHandler

	mu       sync.Mutex
	capacity int
	occupied int

	// order holds *Entry values, oldest at the front. index maps each
	// stored id to its element so lookup, unlink, and move are O(1).
	order *list.List
	index map[string]*list.Element

	admitted uint64
	evicted  uint64
	rejected uint64
	deleted  uint64
}

// New creates an empty buffer that holds at most capacity bytes of
// payload.
func New(capacity int, options ...Option) (*Buffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	buffer := &Buffer{
		clock:    clock.Real(),
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
	for _, option := range options {
		option(buffer)
	}
	return buffer, nil
}

// Capacity returns the byte ceiling fixed at construction.
func (b *Buffer) Capacity() int { return b.capacity }

// Add stores a copy of data under id, replacing any existing entry for
// id and placing it at the newest end of the eviction order with a
// fresh timestamp. Oldest entries are evicted until the new one fits.
//
// Add returns false without changing anything when len(data) exceeds
// the capacity. Such a payload could never fit, and evicting on its
// behalf would only destroy other entries.
func (b *Buffer) Add(id string, data []byte) bool {
	weight := len(data)

	b.mu.Lock()
	if weight > b.capacity {
		b.rejected++
		b.mu.Unlock()
		return false
	}

	if element, ok := b.index[id]; ok {
		b.unlink(element)
	}

	var evicted []Entry
	for b.occupied+weight > b.capacity {
		oldest := b.order.Front()
		if oldest == nil {
			break
		}
		entry := b.unlink(oldest)
		b.evicted++
		if b.onEvict != nil {
			evicted = append(evicted, *entry)
		}
	}

	b.admitted++
	entry := &Entry{
		ID:        id,
		Data:      append([]byte(nil), data...),
		Timestamp: b.clock.Now(),
		admission: b.admitted,
	}
	b.index[id] = b.order.PushBack(entry)
	b.occupied += weight
	b.mu.Unlock()

	for _, entry := range evicted {
		b.onEvict(entry)
	}
	return true
}

// Get returns a copy of the payload stored under id. It does not
// change the entry's position or timestamp.
func (b *Buffer) Get(id string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	element, ok := b.index[id]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), element.Value.(*Entry).Data...), true
}

// Delete removes the entry for id and reports whether one existed.
func (b *Buffer) Delete(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	element, ok := b.index[id]
	if !ok {
		return false
	}
	b.unlink(element)
	b.deleted++
	return true
}

// DeleteEntry removes entry only if it is still the one stored under
// entry.ID, as returned by OlderThan. It reports false, and leaves the
// buffer alone, when the id is gone or has been added again since.
func (b *Buffer) DeleteEntry(entry Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	element, ok := b.index[entry.ID]
	if !ok || element.Value.(*Entry).admission != entry.admission {
		return false
	}
	b.unlink(element)
	b.deleted++
	return true
}

// OlderThan returns copies of every entry admitted at or before
// now-age, oldest first. The buffer is not modified; callers that
// handle a stale entry remove it with Delete.
func (b *Buffer) OlderThan(age time.Duration) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.clock.Now().Add(-age)

	var stale []Entry
	for element := b.order.Front(); element != nil; element = element.Next() {
		entry := element.Value.(*Entry)
		// Admission order is timestamp order for a monotonic clock, but
		// a wall clock can step backwards, so every entry is checked.
		if entry.Timestamp.After(cutoff) {
			continue
		}
		stale = append(stale, Entry{
			ID:        entry.ID,
			Data:      append([]byte(nil), entry.Data...),
			Timestamp: entry.Timestamp,
			admission: entry.admission,
		})
	}
	return stale
}

// Len returns the number of stored entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}

// Occupied returns the total weight of stored entries.
func (b *Buffer) Occupied() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.occupied
}

// Stats returns occupancy and lifetime counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Entries:  b.order.Len(),
		Occupied: b.occupied,
		Capacity: b.capacity,
		Admitted: b.admitted,
		Evicted:  b.evicted,
		Rejected: b.rejected,
		Deleted:  b.deleted,
	}
}

// unlink removes element from the order and the index and returns its
// entry. Caller holds b.mu.
func (b *Buffer) unlink(element *list.Element) *Entry {
	entry := b.order.Remove(element).(*Entry)
	delete(b.index, entry.ID)
	b.occupied -= len(entry.Data)
	return entry
}
