// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"io"
	"os"

	"github.com/bureau-foundation/bureau-connect/lib/process"
)

// stdout receives command output. Tests replace it.
var stdout io.Writer = os.Stdout

func main() {
	if err := root().Execute(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}
