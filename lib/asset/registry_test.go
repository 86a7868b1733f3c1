// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessera-engine/tessera/lib/clock"
	"github.com/tessera-engine/tessera/lib/digest"
	"github.com/tessera-engine/tessera/lib/keepalive"
	"github.com/tessera-engine/tessera/lib/testutil"
)

type fakeFetcher struct {
	content map[string][]byte
	calls   int
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, w io.Writer) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	data, ok := f.content[url]
	if !ok {
		return errors.New("404")
	}
	_, err := w.Write(data)
	return err
}

func newTestRegistry(t *testing.T, catalog Catalog, fetcher Fetcher) (*Registry, string) {
	t.Helper()
	home := testutil.Home(t)
	registry := NewRegistry(RegistryConfig{
		Layout:  Layout{Home: home},
		Catalog: catalog,
		Fetcher: fetcher,
		Logger:  testutil.Logger(),
	})
	return registry, home
}

func sha256Of(t *testing.T, data []byte) digest.Digest {
	t.Helper()
	d, err := digest.Bytes(digest.SHA256, data)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name    string
		results []CheckResult
		want    bool
	}{
		{"digest valid", []CheckResult{{CheckDigest, Valid}, {CheckArchiveExpansion, NotApplicable}}, true},
		{"digest missing", []CheckResult{{CheckArchiveExpansion, NotApplicable}}, false},
		{"digest abstains", []CheckResult{{CheckDigest, NotApplicable}}, false},
		{"other handler vetoes", []CheckResult{{CheckDigest, Valid}, {"custom", Invalid}}, false},
		{"digest invalid", []CheckResult{{CheckDigest, Invalid}}, false},
		{"no handlers", nil, false},
	}
	for _, test := range tests {
		if got := Aggregate(test.results); got != test.want {
			t.Errorf("%s: Aggregate = %v, want %v", test.name, got, test.want)
		}
	}
}

func TestIsValidLocallyNoneDigestTrustsExistence(t *testing.T) {
	registry, home := newTestRegistry(t, nil, nil)
	d, err := FromLocation("base/plain.ogz")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if registry.IsValidLocally(ctx, d) {
		t.Fatal("IsValidLocally on missing file = true")
	}
	for _, content := range [][]byte{[]byte("one"), []byte("entirely different")} {
		testutil.WriteAsset(t, home, d.Location(), content)
		if !registry.IsValidLocally(ctx, d) {
			t.Fatalf("IsValidLocally with content %q = false", content)
		}
	}
}

func TestIsValidLocallyAcceptsScenarioDirectory(t *testing.T) {
	registry, home := newTestRegistry(t, nil, nil)
	d, err := FromLocation("base/forest")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if registry.IsValidLocally(ctx, d) {
		t.Fatal("IsValidLocally on a missing directory = true")
	}
	if err := registry.Materialize(ctx, d); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Materialize on a missing directory = %v, want ErrNoSource", err)
	}

	testutil.WriteAsset(t, home, "base/forest/map.ogz", []byte("octree"))
	if !registry.IsValidLocally(ctx, d) {
		t.Fatal("IsValidLocally on an existing scenario directory = false")
	}
	if err := registry.Materialize(ctx, d); err != nil {
		t.Fatalf("Materialize on an existing scenario directory: %v", err)
	}

	// A digest still demands a regular file.
	pinned, err := NewDescriptor(Spec{ID: "pinned", Location: "base/forest", Digest: sha256Of(t, []byte("octree"))})
	if err != nil {
		t.Fatal(err)
	}
	if registry.IsValidLocally(ctx, pinned) {
		t.Error("IsValidLocally on a directory with a digest = true")
	}
}

func TestIsValidLocallyDetectsByteFlip(t *testing.T) {
	content := []byte("heightmap and octree")
	d, err := NewDescriptor(Spec{ID: "base/hills", Location: "base/hills.ogz", Digest: sha256Of(t, content)})
	if err != nil {
		t.Fatal(err)
	}
	registry, home := newTestRegistry(t, nil, nil)
	path := testutil.WriteAsset(t, home, d.Location(), content)

	if !registry.IsValidLocally(context.Background(), d) {
		t.Fatal("IsValidLocally with matching content = false")
	}

	content[3] ^= 0x01
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if registry.IsValidLocally(context.Background(), d) {
		t.Fatal("IsValidLocally after one-byte change = true")
	}
}

func TestIsValidLocallyGroupFollowsDependencies(t *testing.T) {
	registry, home := newTestRegistry(t, nil, nil)
	member, _ := FromLocation("textures/bark.png")
	group, err := NewDescriptor(Spec{ID: "pack", Dependencies: []string{member.ID()}})
	if err != nil {
		t.Fatal(err)
	}
	registry.Add(member)

	if registry.IsValidLocally(context.Background(), group) {
		t.Fatal("group valid with missing member")
	}
	testutil.WriteAsset(t, home, member.Location(), []byte("png"))
	if !registry.IsValidLocally(context.Background(), group) {
		t.Fatal("group invalid with present member")
	}
}

func TestArchiveCheckQueuesExpansion(t *testing.T) {
	registry, home := newTestRegistry(t, nil, nil)
	d, _ := FromLocation("base/forest.tar.gz")
	testutil.WriteAsset(t, home, d.Location(), []byte("archive bytes"))

	var events []ChangeEvent
	registry.Bus().HandleChange("recorder", func(_ context.Context, event ChangeEvent) error {
		events = append(events, event)
		return nil
	})

	if !registry.IsValidLocally(context.Background(), d) {
		t.Fatal("archive with NONE digest should be valid")
	}
	if len(events) != 1 || events[0].Descriptor.ID() != d.ID() || events[0].Member != "" {
		t.Fatalf("events = %+v, want one archive-level event", events)
	}

	if err := os.MkdirAll(registry.Layout().ExpansionDir(d), 0o755); err != nil {
		t.Fatal(err)
	}
	events = nil
	registry.IsValidLocally(context.Background(), d)
	if len(events) != 0 {
		t.Fatalf("events after expansion = %+v, want none", events)
	}
}

func TestMaterializeFetchesAndVerifies(t *testing.T) {
	content := []byte("fresh map")
	fetcher := &fakeFetcher{content: map[string][]byte{"https://example.test/map": content}}
	registry, home := newTestRegistry(t, nil, fetcher)
	d, err := NewDescriptor(Spec{
		ID:        "base/fresh",
		Location:  "base/fresh.ogz",
		SourceURL: "https://example.test/map",
		Digest:    sha256Of(t, content),
	})
	if err != nil {
		t.Fatal(err)
	}

	var changed []string
	registry.Bus().HandleChange("recorder", func(_ context.Context, event ChangeEvent) error {
		changed = append(changed, event.Descriptor.ID())
		return nil
	})

	if err := registry.Materialize(context.Background(), d); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(home, "data", "base", "fresh.ogz"))
	if err != nil || !bytes.Equal(got, content) {
		t.Fatalf("fetched content = %q, %v", got, err)
	}
	if len(changed) != 1 {
		t.Fatalf("change events = %v, want one", changed)
	}

	if err := registry.Materialize(context.Background(), d); err != nil {
		t.Fatalf("second Materialize: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetch calls = %d, want 1 (valid local copy reused)", fetcher.calls)
	}
}

func TestMaterializeRejectsDigestMismatch(t *testing.T) {
	fetcher := &fakeFetcher{content: map[string][]byte{"https://example.test/map": []byte("tampered")}}
	registry, home := newTestRegistry(t, nil, fetcher)
	d, _ := NewDescriptor(Spec{
		ID:        "base/map",
		Location:  "base/map.ogz",
		SourceURL: "https://example.test/map",
		Digest:    sha256Of(t, []byte("original")),
	})

	err := registry.Materialize(context.Background(), d)
	if !errors.Is(err, ErrDigestMismatch) {
		t.Fatalf("Materialize = %v, want ErrDigestMismatch", err)
	}
	entries, _ := os.ReadDir(filepath.Join(home, "data", "base"))
	if len(entries) != 0 {
		t.Fatalf("leftover files after mismatch: %v", entries)
	}
}

func TestMaterializeWithoutSource(t *testing.T) {
	registry, _ := newTestRegistry(t, nil, nil)
	d, _ := FromLocation("base/missing.ogz")
	if err := registry.Materialize(context.Background(), d); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Materialize = %v, want ErrNoSource", err)
	}
}

func TestMaterializeSkipsOtherAudience(t *testing.T) {
	home := testutil.Home(t)
	registry := NewRegistry(RegistryConfig{
		Layout: Layout{Home: home},
		Side:   AudienceServer,
		Logger: testutil.Logger(),
	})
	d, _ := NewDescriptor(Spec{ID: "ui/icons", Location: "ui/icons.png", Audience: AudienceClient})
	if err := registry.Materialize(context.Background(), d); err != nil {
		t.Fatalf("Materialize of client-only asset: %v", err)
	}
}

func TestResolveUsesCatalogChainAndCache(t *testing.T) {
	first, err := ParseFileCatalog([]byte(`
assets:
  - id: base/forest
    location: base/forest.tar.gz
    hash: SHA256|00ff
`))
	if err != nil {
		t.Fatalf("ParseFileCatalog: %v", err)
	}
	second, err := ParseFileCatalog([]byte(`
assets:
  - id: textures/bark
    location: textures/bark.png
    type: c
`))
	if err != nil {
		t.Fatalf("ParseFileCatalog: %v", err)
	}
	registry, _ := newTestRegistry(t, Chain{first, second}, nil)

	d, err := registry.Resolve(context.Background(), "textures/bark")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if d.Audience() != AudienceClient {
		t.Errorf("Audience = %v, want client", d.Audience())
	}
	if _, err := registry.Resolve(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve unknown = %v, want ErrNotFound", err)
	}

	registry.Clear()
	if _, err := registry.Resolve(context.Background(), "base/forest"); err != nil {
		t.Fatalf("Resolve after Clear: %v", err)
	}
}

func TestParseFileCatalogRejectsInvalidEntries(t *testing.T) {
	_, err := ParseFileCatalog([]byte(`
assets:
  - id: empty-group
  - id: bad-hash
    location: a.ogz
    hash: SHA256|zz
`))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("ParseFileCatalog = %v, want ValidationError", err)
	}
}

type blockingFetcher struct {
	release chan struct{}
	content []byte
}

func (f *blockingFetcher) Fetch(ctx context.Context, _ string, w io.Writer) error {
	select {
	case <-f.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	_, err := w.Write(f.content)
	return err
}

func TestMaterializePumpsWhileFetching(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	fetcher := &blockingFetcher{release: make(chan struct{}), content: []byte("slow map")}
	var pumps atomic.Int32
	home := testutil.Home(t)
	registry := NewRegistry(RegistryConfig{
		Layout:  Layout{Home: home},
		Fetcher: fetcher,
		Keepalive: keepalive.Options{
			Clock:    fake,
			Interval: time.Second,
			Pump:     func() { pumps.Add(1) },
		},
		Logger: testutil.Logger(),
	})
	d, err := NewDescriptor(Spec{ID: "base/slow", Location: "base/slow.ogz", SourceURL: "https://example.test/slow"})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- registry.Materialize(context.Background(), d) }()

	deadline := time.Now().Add(5 * time.Second)
	for pumps.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("pump never ran while the download was blocked")
		}
		if fake.PendingCount() > 0 {
			fake.Advance(time.Second)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
	close(fetcher.release)

	if err := testutil.RequireReceive(t, done, 5*time.Second, "Materialize to finish"); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if got, err := os.ReadFile(filepath.Join(home, "data", "base", "slow.ogz")); err != nil || string(got) != "slow map" {
		t.Errorf("fetched content = %q, %v", got, err)
	}
}
