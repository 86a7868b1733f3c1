// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package keepalive

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/testutil"
)

func TestRunReturnsWorkResult(t *testing.T) {
	got, err := Run(context.Background(), Options{}, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Fatalf("Run = %d, %v; want 42, nil", got, err)
	}
}

func TestRunPumpsWhileWorking(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	release := make(chan struct{})
	var pumps atomic.Int32

	result := make(chan error, 1)
	go func() {
		_, err := Run(context.Background(), Options{
			Clock:    fake,
			Interval: time.Second,
			Pump:     func() { pumps.Add(1) },
		}, func(context.Context) (struct{}, error) {
			<-release
			return struct{}{}, nil
		})
		result <- err
	}()

	fake.WaitForTimers(1)
	for i := 0; i < 3; i++ {
		fake.Advance(time.Second)
		deadline := time.Now().Add(5 * time.Second)
		for pumps.Load() < int32(i+1) {
			if time.Now().After(deadline) {
				t.Fatalf("pump %d not observed", i+1)
			}
			time.Sleep(time.Millisecond)
		}
	}
	close(release)

	if err := testutil.RequireReceive(t, result, 5*time.Second, "waiting for Run"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunPropagatesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{}, func(workCtx context.Context) (bool, error) {
		<-workCtx.Done()
		return false, workCtx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
}
