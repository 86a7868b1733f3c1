// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tessera-engine/tessera/lib/digest"
	"github.com/tessera-engine/tessera/lib/keepalive"
)

// ErrDigestMismatch is returned when fetched content does not match the
// descriptor's digest.
var ErrDigestMismatch = errors.New("content does not match expected digest")

// Fetcher downloads remote content.
type Fetcher interface {
	Fetch(ctx context.Context, url string, w io.Writer) error
}

// RegistryConfig holds the collaborators of a Registry.
type RegistryConfig struct {
	Layout Layout

	// Catalog resolves identifiers the registry has not seen. Nil means
	// only descriptors added with Add resolve.
	Catalog Catalog

	// Fetcher downloads remote content. Nil disables fetching.
	Fetcher Fetcher

	// Side is the audience this process serves. Materialize skips
	// descriptors not meant for it. AudienceBoth disables filtering.
	Side Audience

	// Keepalive configures the pump used while hashing.
	Keepalive keepalive.Options

	// Bus carries check and change events. Nil creates a new bus.
	Bus *Bus

	Logger *slog.Logger
}

// Registry resolves, validates and fetches assets. Resolved
// descriptors are cached until Clear.
type Registry struct {
	layout    Layout
	catalog   Catalog
	fetcher   Fetcher
	side      Audience
	keepalive keepalive.Options
	bus       *Bus
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]Descriptor
}

// NewRegistry builds a registry and registers its digest and
// archive-expansion check handlers on the bus.
func NewRegistry(config RegistryConfig) *Registry {
	bus := config.Bus
	if bus == nil {
		bus = NewBus()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := &Registry{
		layout:    config.Layout,
		catalog:   config.Catalog,
		fetcher:   config.Fetcher,
		side:      config.Side,
		keepalive: config.Keepalive,
		bus:       bus,
		logger:    logger,
		cache:     make(map[string]Descriptor),
	}
	bus.HandleCheck(CheckDigest, registry.checkDigest)
	bus.HandleCheck(CheckArchiveExpansion, registry.checkArchiveExpansion)
	return registry
}

// Bus returns the event bus the registry publishes on.
func (r *Registry) Bus() *Bus { return r.bus }

// Layout returns the on-disk layout.
func (r *Registry) Layout() Layout { return r.layout }

// Add caches a descriptor so it resolves without a catalog lookup.
func (r *Registry) Add(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[d.ID()] = d
}

// Clear discards every cached descriptor.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.cache)
}

// Resolve returns the descriptor for id, consulting the catalog on a
// cache miss. Catalog lookups run under the keepalive pump.
func (r *Registry) Resolve(ctx context.Context, id string) (Descriptor, error) {
	r.mu.Lock()
	cached, ok := r.cache[id]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	if r.catalog == nil {
		return Descriptor{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	descriptor, err := keepalive.Run(ctx, r.keepalive, func(ctx context.Context) (Descriptor, error) {
		return r.catalog.Lookup(ctx, id)
	})
	if err != nil {
		return Descriptor{}, err
	}
	r.Add(descriptor)
	return descriptor, nil
}

// IsValidLocally reports whether the local copy of d can be used
// without fetching. Side effects queued by check handlers (archive
// expansion) run before it returns; their failures are logged and do
// not change the answer.
func (r *Registry) IsValidLocally(ctx context.Context, d Descriptor) bool {
	valid := Aggregate(r.bus.Check(ctx, d))
	if err := r.bus.DeliverPending(ctx); err != nil {
		r.logger.Error("asset change handlers failed after validity check",
			"asset_id", d.ID(),
			"error", err,
		)
	}
	return valid
}

// Materialize makes d and its dependencies usable locally, fetching
// whatever is invalid. Descriptors for the other side's audience are
// skipped.
func (r *Registry) Materialize(ctx context.Context, d Descriptor) error {
	return r.materialize(ctx, d, nil)
}

func (r *Registry) materialize(ctx context.Context, d Descriptor, path []string) error {
	if slices.Contains(path, d.ID()) {
		return &ValidationError{ID: d.ID(), Reason: "dependency cycle"}
	}
	path = append(path, d.ID())

	if r.side != AudienceBoth && !d.Audience().Includes(r.side) {
		r.logger.Debug("skipping asset for other audience",
			"asset_id", d.ID(),
			"audience", d.Audience().String(),
		)
		return nil
	}

	for _, dependencyID := range d.Dependencies() {
		dependency, err := r.Resolve(ctx, dependencyID)
		if err != nil {
			return fmt.Errorf("resolving dependency %q of %q: %w", dependencyID, d.ID(), err)
		}
		if err := r.materialize(ctx, dependency, path); err != nil {
			return err
		}
	}

	if !d.HasLocalContent() || r.IsValidLocally(ctx, d) {
		return nil
	}
	if !d.HasRemoteContent() {
		return fmt.Errorf("%q: %w", d.ID(), ErrNoSource)
	}
	if err := r.fetch(ctx, d); err != nil {
		return err
	}
	if err := r.bus.Changed(ctx, ChangeEvent{Descriptor: d}); err != nil {
		return fmt.Errorf("processing fetched asset %q: %w", d.ID(), err)
	}
	return nil
}

// fetch downloads d into a temporary file beside its final location,
// verifies it and renames it into place. The download runs under the
// keepalive pump; the fetcher bounds how long it may take.
func (r *Registry) fetch(ctx context.Context, d Descriptor) error {
	if r.fetcher == nil {
		return fmt.Errorf("%q: no fetcher configured: %w", d.ID(), ErrNoSource)
	}

	finalPath := r.layout.ContentPath(d)
	directory := filepath.Dir(finalPath)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating directory for %q: %w", d.ID(), err)
	}
	temporary, err := os.CreateTemp(directory, ".fetch-*")
	if err != nil {
		return fmt.Errorf("creating temporary file for %q: %w", d.ID(), err)
	}
	temporaryPath := temporary.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(temporaryPath)
		}
	}()

	r.logger.Info("fetching asset", "asset_id", d.ID(), "url", d.SourceURL())
	_, err = keepalive.Run(ctx, r.keepalive, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.fetcher.Fetch(ctx, d.SourceURL(), temporary)
	})
	if err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing fetched content for %q: %w", d.ID(), err)
	}

	if !d.Digest().IsNone() {
		matches, err := keepalive.Run(ctx, r.keepalive, func(ctx context.Context) (bool, error) {
			return digest.Matches(ctx, temporaryPath, d.Digest())
		})
		if err != nil {
			return fmt.Errorf("verifying fetched content for %q: %w", d.ID(), err)
		}
		if !matches {
			return fmt.Errorf("%q from %s: %w", d.ID(), d.SourceURL(), ErrDigestMismatch)
		}
	}

	if err := os.Rename(temporaryPath, finalPath); err != nil {
		return fmt.Errorf("moving fetched content for %q into place: %w", d.ID(), err)
	}
	committed = true
	return nil
}

// checkDigest is the CheckDigest handler. Grouping assets (no location)
// are valid when every dependency is, and an existing directory is
// valid for a non-archive location without a digest.
func (r *Registry) checkDigest(ctx context.Context, d Descriptor) Verdict {
	if !d.HasLocalContent() {
		for _, dependencyID := range d.Dependencies() {
			if ctx.Value(checkingKey{id: dependencyID}) != nil {
				r.logger.Warn("dependency cycle during validity check", "asset_id", d.ID(), "dependency", dependencyID)
				return Invalid
			}
			dependency, err := r.Resolve(ctx, dependencyID)
			if err != nil {
				return Invalid
			}
			nested := context.WithValue(ctx, checkingKey{id: d.ID()}, true)
			if !r.IsValidLocally(nested, dependency) {
				return Invalid
			}
		}
		return Valid
	}

	path := r.layout.ContentPath(d)
	if d.Digest().IsNone() && !d.IsArchive() {
		// A bare map location names the directory holding its files.
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return Valid
		}
	}
	matches, err := keepalive.Run(ctx, r.keepalive, func(ctx context.Context) (bool, error) {
		return digest.Matches(ctx, path, d.Digest())
	})
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("asset digest check failed",
				"asset_id", d.ID(),
				"path", path,
				"error", err,
			)
		}
		return Invalid
	}
	if !matches {
		r.logger.Debug("asset digest mismatch", "asset_id", d.ID(), "path", path)
		return Invalid
	}
	return Valid
}

type checkingKey struct{ id string }

// checkArchiveExpansion is the CheckArchiveExpansion handler. It queues
// an expansion when the archive is present but its directory is not.
func (r *Registry) checkArchiveExpansion(_ context.Context, d Descriptor) Verdict {
	if !d.IsArchive() {
		return NotApplicable
	}
	if _, err := os.Stat(r.layout.ContentPath(d)); err != nil {
		return NotApplicable
	}
	if _, err := os.Stat(r.layout.ExpansionDir(d)); errors.Is(err, os.ErrNotExist) {
		r.logger.Info("archive present but not expanded", "asset_id", d.ID())
		r.bus.Enqueue(ChangeEvent{Descriptor: d})
	}
	return NotApplicable
}
