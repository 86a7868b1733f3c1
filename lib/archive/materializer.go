// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tessera-engine/tessera/lib/asset"
	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/keepalive"
)

// ChangeHandlerName is the name the materializer registers on the
// content-changed topic.
const ChangeHandlerName = "archive"

// Config wires a Materializer.
type Config struct {
	Layout    asset.Layout
	Bus       *asset.Bus
	Keepalive keepalive.Options
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Materializer extracts archive assets and announces their members.
type Materializer struct {
	layout    asset.Layout
	bus       *asset.Bus
	keepalive keepalive.Options
	clock     clock.Clock
	logger    *slog.Logger
}

// NewMaterializer returns a materializer. Call Subscribe to have it
// react to content changes.
func NewMaterializer(config Config) *Materializer {
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{
		layout:    config.Layout,
		bus:       config.Bus,
		keepalive: config.Keepalive,
		clock:     clk,
		logger:    logger,
	}
}

// Subscribe registers the materializer on the bus content-changed
// topic under ChangeHandlerName.
func (m *Materializer) Subscribe() {
	m.bus.HandleChange(ChangeHandlerName, m.OnChange)
}

// OnChange extracts the archive named by event when its expansion
// directory is missing, older than the archive or lacks one of the
// archive's members. Member events and
// events the materializer published itself are ignored.
func (m *Materializer) OnChange(ctx context.Context, event asset.ChangeEvent) error {
	if event.Extracted || event.Member != "" || !event.Descriptor.IsArchive() {
		return nil
	}
	archivePath := m.layout.ContentPath(event.Descriptor)
	if _, err := os.Stat(archivePath); err != nil {
		// Nothing to extract yet; the archive will announce itself
		// again once it has been fetched.
		return nil
	}
	expansionDir := m.layout.ExpansionDir(event.Descriptor)
	if asset.NewerThan(expansionDir, archivePath) {
		missing, err := keepalive.Run(ctx, m.keepalive, func(context.Context) ([]string, error) {
			return missingMembers(archivePath, expansionDir)
		})
		if err == nil && len(missing) == 0 {
			m.logger.Debug("archive expansion up to date",
				"asset_id", event.Descriptor.ID(),
				"location", event.Descriptor.Location(),
			)
			return nil
		}
		m.logger.Info("archive expansion incomplete, extracting again",
			"asset_id", event.Descriptor.ID(),
			"missing", len(missing),
			"error", err,
		)
	}
	_, err := m.Extract(ctx, event.Descriptor)
	return err
}

// Extract expands d into its expansion directory, overwriting members
// that already exist, and returns the member file paths in archive
// order. After the files are written it publishes one Extracted
// change event per member and one for the archive itself.
//
// Extraction always runs; callers that want to skip an up-to-date
// expansion go through OnChange.
func (m *Materializer) Extract(ctx context.Context, d asset.Descriptor) ([]string, error) {
	if !d.IsArchive() {
		return nil, fmt.Errorf("extracting %s: location %q is not an archive", d.ID(), d.Location())
	}
	archivePath := m.layout.ContentPath(d)
	expansionDir := m.layout.ExpansionDir(d)
	_, suffix, _ := asset.SplitArchiveSuffix(d.Location())

	members, err := keepalive.Run(ctx, m.keepalive, func(ctx context.Context) ([]string, error) {
		return m.expand(ctx, archivePath, suffix, expansionDir)
	})
	if err != nil {
		return nil, err
	}

	// Writes into subdirectories leave the top directory's mtime alone.
	now := m.clock.Now()
	if err := os.Chtimes(expansionDir, now, now); err != nil {
		return nil, &FilesystemError{Op: "stamp", Path: expansionDir, Err: err}
	}

	m.logger.Info("archive extracted",
		"asset_id", d.ID(),
		"location", d.Location(),
		"members", len(members),
	)

	var errs []error
	for _, member := range members {
		if err := m.bus.Changed(ctx, asset.ChangeEvent{Descriptor: d, Member: member, Extracted: true}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := m.bus.Changed(ctx, asset.ChangeEvent{Descriptor: d, Extracted: true}); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return members, fmt.Errorf("announcing members of %s: %w", d.ID(), err)
	}
	return members, nil
}

func (m *Materializer) expand(ctx context.Context, archivePath, suffix, expansionDir string) ([]string, error) {
	if err := os.MkdirAll(expansionDir, 0o755); err != nil {
		return nil, &FilesystemError{Op: "mkdir", Path: expansionDir, Err: err}
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: archivePath, Err: err}
	}
	defer file.Close()

	stream, err := decompress(suffix, file)
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: archivePath, Err: err}
	}
	defer stream.Close()

	var members []string
	reader := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, err := reader.Next()
		if err == io.EOF {
			return members, nil
		}
		if err != nil {
			return nil, &FilesystemError{Op: "read", Path: archivePath, Err: err}
		}

		name := strings.TrimPrefix(header.Name, "./")
		name = strings.TrimSuffix(name, "/")
		if name == "" || name == "." {
			continue
		}
		if err := asset.ValidateRelativePath(name); err != nil {
			return nil, &FilesystemError{Op: "validate", Path: header.Name, Err: err}
		}
		name = path.Clean(name)
		target := filepath.Join(expansionDir, filepath.FromSlash(name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, &FilesystemError{Op: "mkdir", Path: target, Err: err}
			}
		case tar.TypeReg:
			if err := writeMember(target, reader); err != nil {
				return nil, err
			}
			members = append(members, name)
		default:
			m.logger.Debug("skipping archive member",
				"archive", archivePath,
				"member", header.Name,
				"type", string(header.Typeflag),
			)
		}
	}
}

// writeMember truncates and rewrites target with the member content.
func writeMember(target string, content io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return &FilesystemError{Op: "mkdir", Path: filepath.Dir(target), Err: err}
	}
	file, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &FilesystemError{Op: "create", Path: target, Err: err}
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return &FilesystemError{Op: "write", Path: target, Err: err}
	}
	if err := file.Close(); err != nil {
		return &FilesystemError{Op: "close", Path: target, Err: err}
	}
	return nil
}

// missingMembers returns the members of the archive at archivePath that
// have no file under expansionDir.
func missingMembers(archivePath, expansionDir string) ([]string, error) {
	members, err := Members(archivePath)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, name := range members {
		if _, err := os.Stat(filepath.Join(expansionDir, filepath.FromSlash(name))); err != nil {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// Members lists the regular file members of the archive at archivePath
// without extracting it.
func Members(archivePath string) ([]string, error) {
	_, suffix, ok := asset.SplitArchiveSuffix(filepath.ToSlash(archivePath))
	if !ok {
		return nil, fmt.Errorf("listing %s: not an archive", archivePath)
	}
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, &FilesystemError{Op: "open", Path: archivePath, Err: err}
	}
	defer file.Close()

	stream, err := decompress(suffix, file)
	if err != nil {
		return nil, &FilesystemError{Op: "read", Path: archivePath, Err: err}
	}
	defer stream.Close()

	var members []string
	reader := tar.NewReader(stream)
	for {
		header, err := reader.Next()
		if err == io.EOF {
			return members, nil
		}
		if err != nil {
			return nil, &FilesystemError{Op: "read", Path: archivePath, Err: err}
		}
		if header.Typeflag == tar.TypeReg {
			members = append(members, path.Clean(strings.TrimPrefix(header.Name, "./")))
		}
	}
}
