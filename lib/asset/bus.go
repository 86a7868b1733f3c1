// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Verdict is a check-existing handler's answer about one descriptor.
type Verdict uint8

const (
	// NotApplicable abstains. It never makes an asset invalid, but it
	// does not count as the digest handler's affirmation either.
	NotApplicable Verdict = iota
	Valid
	Invalid
)

func (v Verdict) String() string {
	switch v {
	case NotApplicable:
		return "not-applicable"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(v))
	}
}

// Check-existing handler names. The registry registers both; Aggregate
// requires an affirmative answer from CheckDigest.
const (
	CheckDigest           = "digest"
	CheckArchiveExpansion = "archive-expansion"
)

// CheckResult records one handler's verdict.
type CheckResult struct {
	Handler string
	Verdict Verdict
}

// Aggregate reduces check results: valid iff no handler answered
// Invalid and the CheckDigest handler answered Valid. A missing digest
// answer is invalid.
func Aggregate(results []CheckResult) bool {
	affirmed := false
	for _, result := range results {
		if result.Verdict == Invalid {
			return false
		}
		if result.Handler == CheckDigest && result.Verdict == Valid {
			affirmed = true
		}
	}
	return affirmed
}

// ChangeEvent announces that an asset, or one member file of an
// expanded archive, changed on disk.
type ChangeEvent struct {
	Descriptor Descriptor

	// Member is the archive-relative path of a changed member file, or
	// empty when the event is about the asset file itself.
	Member string

	// Extracted marks events published by the archive materializer
	// after an expansion. Handlers that trigger expansion ignore them.
	Extracted bool
}

// CheckFunc answers the check-existing topic.
type CheckFunc func(ctx context.Context, d Descriptor) Verdict

// ChangeFunc consumes the content-changed topic.
type ChangeFunc func(ctx context.Context, event ChangeEvent) error

type checkHandler struct {
	name string
	fn   CheckFunc
}

type changeHandler struct {
	name string
	fn   ChangeFunc
}

// Bus is the in-process publish/subscribe hub for the two asset
// topics. Handlers are registered by name during wiring, are invoked
// in registration order, and run on the publishing goroutine.
type Bus struct {
	mu      sync.Mutex
	checks  []checkHandler
	changes []changeHandler
	pending []ChangeEvent
}

// NewBus returns a bus with no handlers.
func NewBus() *Bus {
	return &Bus{}
}

// HandleCheck registers a check-existing handler. Panics when name is
// already registered.
func (b *Bus) HandleCheck(name string, fn CheckFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.checks {
		if existing.name == name {
			panic(fmt.Sprintf("asset: check handler %q registered twice", name))
		}
	}
	b.checks = append(b.checks, checkHandler{name: name, fn: fn})
}

// HandleChange registers a content-changed handler. Panics when name is
// already registered.
func (b *Bus) HandleChange(name string, fn ChangeFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.changes {
		if existing.name == name {
			panic(fmt.Sprintf("asset: change handler %q registered twice", name))
		}
	}
	b.changes = append(b.changes, changeHandler{name: name, fn: fn})
}

// Check publishes d on the check-existing topic and returns every
// handler's verdict.
func (b *Bus) Check(ctx context.Context, d Descriptor) []CheckResult {
	b.mu.Lock()
	handlers := append([]checkHandler(nil), b.checks...)
	b.mu.Unlock()

	results := make([]CheckResult, 0, len(handlers))
	for _, handler := range handlers {
		results = append(results, CheckResult{Handler: handler.name, Verdict: handler.fn(ctx, d)})
	}
	return results
}

// Changed publishes event to every content-changed handler. All
// handlers run; their errors are joined.
func (b *Bus) Changed(ctx context.Context, event ChangeEvent) error {
	b.mu.Lock()
	handlers := append([]changeHandler(nil), b.changes...)
	b.mu.Unlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.fn(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", handler.name, err))
		}
	}
	return errors.Join(errs...)
}

// Enqueue defers a content-changed event until DeliverPending. Check
// handlers use it so that side effects run after the check completes.
func (b *Bus) Enqueue(event ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, event)
}

// DeliverPending publishes queued events in order, including events
// queued while delivering.
func (b *Bus) DeliverPending(ctx context.Context) error {
	var errs []error
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			return errors.Join(errs...)
		}
		event := b.pending[0]
		b.pending = b.pending[1:]
		b.mu.Unlock()

		if err := b.Changed(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
}
