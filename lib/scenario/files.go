// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tessera-engine/tessera/lib/statefile"
)

// MapFilePath returns the on-disk path of a file relative to the
// current scenario's content prefix.
func (l *Lifecycle) MapFilePath(relative string) (string, error) {
	state := l.State()
	if !state.Running() {
		return "", ErrNotRunning
	}
	path, err := l.layout.Resolve(state.Prefix, relative)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsafePath, err)
	}
	return path, nil
}

// ReadFile reads a file on behalf of a script. Names starting with
// "./" are relative to the current scenario; anything else is relative
// to the data directory. Names containing "..", "~" or a leading "/"
// are refused outright.
func (l *Lifecycle) ReadFile(name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.Contains(name, "~") || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("reading %q: %w", name, ErrUnsafePath)
	}

	var path string
	if relative, ok := strings.CutPrefix(name, "./"); ok {
		resolved, err := l.MapFilePath(relative)
		if err != nil {
			return "", fmt.Errorf("reading %q: %w", name, err)
		}
		path = resolved
	} else {
		path = l.layout.Path(name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %q: %w", name, err)
	}
	return string(data), nil
}

// ExportEntities writes the world's serialized entities to filename
// under the current content prefix. An existing file is first copied
// to "<filename>.<timestamp>.BAK". Returns the written path.
func (l *Lifecycle) ExportEntities(filename string) (string, error) {
	path, err := l.MapFilePath(filename)
	if err != nil {
		return "", fmt.Errorf("exporting entities: %w", err)
	}
	data, err := l.world.SerializeEntities()
	if err != nil {
		return "", fmt.Errorf("exporting entities: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		backup := fmt.Sprintf("%s.%s.BAK", path, l.clock.Now().UTC().Format("20060102T150405"))
		if err := copyFile(path, backup); err != nil {
			// A missing backup does not stop the export.
			l.logger.Warn("backing up entity file", "path", path, "error", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("exporting entities: %w", err)
	}

	if err := statefile.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", fmt.Errorf("exporting entities: %w", err)
	}
	l.logger.Info("entities exported", "path", path, "bytes", len(data))
	return path, nil
}

func copyFile(source, destination string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
