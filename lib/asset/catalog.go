// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tessera-engine/tessera/lib/digest"
)

// Catalog looks up descriptors by asset identifier. Implementations
// return an error wrapping ErrNotFound for unknown identifiers.
type Catalog interface {
	Lookup(ctx context.Context, id string) (Descriptor, error)
}

// Entry is the serialized form of a descriptor in catalog files and
// remote catalog responses.
type Entry struct {
	ID           string   `yaml:"id" json:"asset_id"`
	Location     string   `yaml:"location" json:"location"`
	URL          string   `yaml:"url,omitempty" json:"url,omitempty"`
	Hash         string   `yaml:"hash,omitempty" json:"hash,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Type         string   `yaml:"type,omitempty" json:"type,omitempty"`
}

// Descriptor validates the entry and builds its descriptor.
func (e Entry) Descriptor() (Descriptor, error) {
	parsed, err := digest.Parse(e.Hash)
	if err != nil {
		return Descriptor{}, &ValidationError{ID: e.ID, Reason: err.Error()}
	}
	audience, err := ParseAudience(e.Type)
	if err != nil {
		return Descriptor{}, &ValidationError{ID: e.ID, Reason: err.Error()}
	}
	return NewDescriptor(Spec{
		ID:           e.ID,
		Location:     e.Location,
		SourceURL:    e.URL,
		Digest:       parsed,
		Dependencies: e.Dependencies,
		Audience:     audience,
	})
}

// EntryFor returns the serialized form of a descriptor.
func EntryFor(d Descriptor) Entry {
	entry := Entry{
		ID:           d.ID(),
		Location:     d.Location(),
		URL:          d.SourceURL(),
		Dependencies: d.Dependencies(),
		Type:         d.Audience().String(),
	}
	if !d.Digest().IsNone() {
		entry.Hash = d.Digest().String()
	}
	return entry
}

// FileCatalog is a catalog loaded from a YAML document of the form
//
//	assets:
//	  - id: base/forest
//	    location: base/forest.tar.gz
//	    url: https://content.example/base/forest.tar.gz
//	    hash: SHA256|...
//	    dependencies: [textures/forest]
//	    type: b
type FileCatalog struct {
	entries map[string]Descriptor
}

type catalogDocument struct {
	Assets []Entry `yaml:"assets"`
}

// LoadFileCatalog reads and validates a catalog file. Every entry must
// validate; the errors of all invalid entries are returned together.
func LoadFileCatalog(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading asset catalog: %w", err)
	}
	return ParseFileCatalog(data)
}

// ParseFileCatalog parses catalog YAML.
func ParseFileCatalog(data []byte) (*FileCatalog, error) {
	var document catalogDocument
	if err := yaml.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("parsing asset catalog: %w", err)
	}

	catalog := &FileCatalog{entries: make(map[string]Descriptor, len(document.Assets))}
	var errs []error
	for _, entry := range document.Assets {
		descriptor, err := entry.Descriptor()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, duplicate := catalog.entries[descriptor.ID()]; duplicate {
			errs = append(errs, &ValidationError{ID: descriptor.ID(), Reason: "listed twice"})
			continue
		}
		catalog.entries[descriptor.ID()] = descriptor
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return catalog, nil
}

// Lookup implements Catalog.
func (c *FileCatalog) Lookup(_ context.Context, id string) (Descriptor, error) {
	descriptor, ok := c.entries[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return descriptor, nil
}

// Len returns the number of catalogued assets.
func (c *FileCatalog) Len() int { return len(c.entries) }

// Chain consults catalogs in order. A catalog answering ErrNotFound
// passes the lookup to the next; any other error stops the chain.
type Chain []Catalog

// Lookup implements Catalog.
func (chain Chain) Lookup(ctx context.Context, id string) (Descriptor, error) {
	for _, catalog := range chain {
		descriptor, err := catalog.Lookup(ctx, id)
		if err == nil {
			return descriptor, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return Descriptor{}, err
		}
	}
	return Descriptor{}, fmt.Errorf("%q: %w", id, ErrNotFound)
}
