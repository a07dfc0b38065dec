// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommandDispatchesToSubcommand(t *testing.T) {
	var called string
	var received []string
	root := &Command{
		Name: "bureau-connect",
		Subcommands: []*Command{
			{Name: "status", Run: func(args []string) error { called = "status"; return nil }},
			{Name: "dump", Run: func(args []string) error { called, received = "dump", args; return nil }},
		},
	}

	if err := root.Execute([]string{"dump", "extra"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "dump" {
		t.Errorf("dispatched to %q, want dump", called)
	}
	if len(received) != 1 || received[0] != "extra" {
		t.Errorf("args = %v, want [extra]", received)
	}
}

func TestCommandParsesFlags(t *testing.T) {
	var limit int
	var received []string
	command := &Command{
		Name: "dump",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
			flagSet.IntVar(&limit, "limit", 0, "")
			return flagSet
		},
		Run: func(args []string) error { received = args; return nil },
	}

	if err := command.Execute([]string{"--limit", "5", "rest"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if limit != 5 {
		t.Errorf("limit = %d, want 5", limit)
	}
	if len(received) != 1 || received[0] != "rest" {
		t.Errorf("args = %v, want [rest]", received)
	}

	err := command.Execute([]string{"--limt", "5"})
	if err == nil || !strings.Contains(err.Error(), "unknown flag") {
		t.Errorf("Execute with a bad flag = %v, want unknown flag error", err)
	}
}

func TestCommandUnknownSubcommandSuggests(t *testing.T) {
	err := root().Execute([]string{"stat"})
	if err == nil {
		t.Fatal("unknown command accepted")
	}
	if !strings.Contains(err.Error(), `did you mean "status"`) {
		t.Errorf("error = %q, want a suggestion of status", err)
	}

	err = root().Execute([]string{"zzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %v, want no suggestion", err)
	}
}

func TestCommandRequiresSubcommand(t *testing.T) {
	if err := root().Execute(nil); err == nil {
		t.Error("bare root command accepted")
	}
}

func TestPrintHelpListsSubcommands(t *testing.T) {
	var output bytes.Buffer
	root().PrintHelp(&output)
	for _, want := range []string{"Usage:", "status", "dump", "call", "version"} {
		if !strings.Contains(output.String(), want) {
			t.Errorf("help output missing %q:\n%s", want, output.String())
		}
	}
}
