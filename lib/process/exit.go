// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"fmt"
	"io"
	"os"
)

var (
	stderr io.Writer = os.Stderr
	exit             = os.Exit
)

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(stderr, "error: %v\n", err)
	exit(1)
}

// Usage writes "usage error: err" to stderr and exits with code 2, the
// conventional status for bad command-line arguments.
func Usage(err error) {
	fmt.Fprintf(stderr, "usage error: %v\n", err)
	exit(2)
}
