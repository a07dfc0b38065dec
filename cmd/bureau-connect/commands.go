// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bureau-connect/lib/codec"
	"github.com/bureau-foundation/bureau-connect/lib/config"
	"github.com/bureau-foundation/bureau-connect/lib/service"
	"github.com/bureau-foundation/bureau-connect/lib/version"
	"github.com/bureau-foundation/bureau-connect/lib/workerapi"
)

// connection holds the flags every socket command shares.
type connection struct {
	socketPath string
	timeout    time.Duration
}

func (c *connection) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.socketPath, "socket", config.Default().Service.SocketPath, "worker service socket")
	flagSet.DurationVar(&c.timeout, "timeout", 5*time.Second, "how long to wait for the worker")
}

func (c *connection) call(action string, fields map[string]any, result any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return service.NewServiceClient(c.socketPath).Call(ctx, action, fields, result)
}

func (c *connection) callRaw(action string, fields map[string]any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return service.NewServiceClient(c.socketPath).CallRaw(ctx, action, fields)
}

func root() *Command {
	return &Command{
		Name:        "bureau-connect",
		Description: "Inspect a running bureau-connect-worker.",
		Subcommands: []*Command{
			statusCommand(),
			dumpCommand(),
			callCommand(),
			versionCommand(),
		},
	}
}

func statusCommand() *Command {
	var (
		conn       connection
		outputJSON bool
	)
	return &Command{
		Name:    "status",
		Summary: "Show gateway, buffer, and flush counters",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			var status workerapi.Status
			if err := conn.call(workerapi.ActionStatus, nil, &status); err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(status)
			}
			printStatus(status)
			return nil
		},
	}
}

func printStatus(status workerapi.Status) {
	gateway := "disconnected"
	if status.Connected {
		gateway = "connected"
	}
	uptime := time.Duration(status.UptimeSeconds * float64(time.Second)).Round(time.Second)

	tw := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "version\t%s\n", status.Version)
	fmt.Fprintf(tw, "uptime\t%s\n", uptime)
	fmt.Fprintf(tw, "gateway\t%s (%d sessions)\n", gateway, status.Sessions)
	fmt.Fprintf(tw, "executed\t%d (%d redelivered, %d too large to buffer)\n",
		status.Executed, status.Redelivered, status.Unbuffered)
	fmt.Fprintf(tw, "buffer\t%d replies, %s of %s\n",
		status.BufferEntries, formatBytes(status.BufferBytes), formatBytes(status.BufferCapacity))
	fmt.Fprintf(tw, "evicted\t%d\n", status.BufferEvicted)
	fmt.Fprintf(tw, "rejected\t%d\n", status.BufferRejected)
	fmt.Fprintf(tw, "flushed\t%d (%d failures)\n", status.Flushed, status.FlushFailures)
	tw.Flush()
}

func dumpCommand() *Command {
	var (
		conn       connection
		limit      int
		outputJSON bool
	)
	return &Command{
		Name:    "dump",
		Summary: "List buffered replies, oldest first",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dump", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			flagSet.IntVar(&limit, "limit", 0, "show at most this many replies (0 for all)")
			flagSet.BoolVar(&outputJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument %q", args[0])
			}
			var fields map[string]any
			if limit != 0 {
				fields = map[string]any{"limit": limit}
			}
			var dump workerapi.DumpResponse
			if err := conn.call(workerapi.ActionDump, fields, &dump); err != nil {
				return err
			}
			if outputJSON {
				return writeJSON(dump)
			}
			if len(dump.Replies) == 0 {
				fmt.Fprintln(stdout, "no buffered replies")
				return nil
			}
			tw := tabwriter.NewWriter(stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(tw, "REQUEST ID\tSIZE\tAGE\tDIGEST")
			for _, reply := range dump.Replies {
				age := time.Duration(reply.AgeSeconds * float64(time.Second)).Round(time.Millisecond)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", reply.RequestID, formatBytes(reply.Bytes), age, shortDigest(reply.Digest))
			}
			return tw.Flush()
		},
	}
}

func callCommand() *Command {
	var conn connection
	return &Command{
		Name:    "call",
		Summary: "Call any socket action and print the raw response",
		Usage:   "bureau-connect call <action> [key=value ...] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("call", pflag.ContinueOnError)
			conn.addFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("action required")
			}
			fields, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			raw, err := conn.callRaw(args[0], fields)
			if err != nil {
				return err
			}
			if len(raw) == 0 {
				fmt.Fprintln(stdout, "ok")
				return nil
			}
			diagnostic, err := codec.Diagnose(raw)
			if err != nil {
				return fmt.Errorf("formatting response: %w", err)
			}
			fmt.Fprintln(stdout, diagnostic)
			return nil
		},
	}
}

func versionCommand() *Command {
	return &Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(args []string) error {
			fmt.Fprintf(stdout, "bureau-connect %s\n", version.Full())
			return nil
		},
	}
}

// parseFields turns key=value arguments into request fields. Values
// that parse as integers or booleans are sent as such.
func parseFields(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("field %q: want key=value", arg)
		}
		if key == "action" {
			return nil, fmt.Errorf("field %q: action is the first argument", arg)
		}
		if number, err := strconv.ParseInt(value, 10, 64); err == nil {
			fields[key] = number
		} else if flag, err := strconv.ParseBool(value); err == nil {
			fields[key] = flag
		} else {
			fields[key] = value
		}
	}
	return fields, nil
}

func writeJSON(value any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func formatBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value, suffix := float64(n)/unit, "KiB"
	for _, next := range []string{"MiB", "GiB"} {
		if value < unit {
			break
		}
		value, suffix = value/unit, next
	}
	return fmt.Sprintf("%.1f %s", value, suffix)
}

func shortDigest(digest string) string {
	if len(digest) > 16 {
		return digest[:16]
	}
	return digest
}
