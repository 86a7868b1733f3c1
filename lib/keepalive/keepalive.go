// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package keepalive runs long synchronous operations (digest
// recomputation, archive extraction) without starving the caller's
// control surface. The work runs on a worker goroutine while the
// calling goroutine wakes every Interval to call Pump, and Run returns
// only when the work is done.
package keepalive

import (
	"context"
	"time"

	"github.com/tessera-engine/tessera/lib/clock"
)

// DefaultInterval is the pump period when Options.Interval is zero.
const DefaultInterval = 100 * time.Millisecond

// Options configures the pump cadence.
type Options struct {
	// Clock drives the pump ticker. Nil means clock.Real().
	Clock clock.Clock

	// Interval between Pump calls. Zero means DefaultInterval.
	Interval time.Duration

	// Pump is called on the calling goroutine while the work is in
	// progress. Nil disables pumping; the call still blocks until the
	// work completes.
	Pump func()
}

// Run executes work on a worker goroutine and blocks until it returns.
// When ctx is cancelled the work's context is cancelled too, and Run
// still waits for the worker to finish before returning so that no
// work outlives the call.
func Run[T any](ctx context.Context, options Options, work func(context.Context) (T, error)) (T, error) {
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	interval := options.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := work(workCtx)
		done <- outcome{value: value, err: err}
	}()

	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case result := <-done:
			return result.value, result.err
		case <-ticker.C:
			if options.Pump != nil {
				options.Pump()
			}
		}
	}
}
