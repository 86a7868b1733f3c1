// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import "fmt"

// FilesystemError reports an I/O failure during extraction. It aborts
// the extraction it happened in and nothing else.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }
