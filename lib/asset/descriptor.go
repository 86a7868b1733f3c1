// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package asset

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tessera-engine/tessera/lib/digest"
)

// Audience says which side of a session needs an asset.
type Audience uint8

const (
	AudienceBoth Audience = iota
	AudienceServer
	AudienceClient
)

// String returns the single-letter catalog code ("b", "s", "c").
func (a Audience) String() string {
	switch a {
	case AudienceBoth:
		return "b"
	case AudienceServer:
		return "s"
	case AudienceClient:
		return "c"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// ParseAudience parses a catalog audience code. Long names ("both",
// "server", "client") are accepted too; the empty string is both.
func ParseAudience(code string) (Audience, error) {
	switch strings.ToLower(code) {
	case "", "b", "both":
		return AudienceBoth, nil
	case "s", "server":
		return AudienceServer, nil
	case "c", "client":
		return AudienceClient, nil
	default:
		return AudienceBoth, fmt.Errorf("unknown asset audience %q", code)
	}
}

// Includes reports whether an asset with this audience is needed by
// the given side (AudienceServer or AudienceClient).
func (a Audience) Includes(side Audience) bool {
	return a == AudienceBoth || a == side
}

// Spec holds the fields a Descriptor is built from.
type Spec struct {
	ID           string
	Location     string
	SourceURL    string
	Digest       digest.Digest
	Dependencies []string
	Audience     Audience
}

// Descriptor describes one asset. It is immutable: construct it with
// NewDescriptor and read it through accessors.
type Descriptor struct {
	id           string
	location     string
	sourceURL    string
	digest       digest.Digest
	dependencies []string
	audience     Audience
}

// NewDescriptor validates spec and returns the descriptor. Dependencies
// are deduplicated preserving first occurrence.
func NewDescriptor(spec Spec) (Descriptor, error) {
	if spec.ID == "" {
		return Descriptor{}, &ValidationError{Reason: "missing asset id"}
	}
	if spec.Location != "" {
		if err := ValidateRelativePath(spec.Location); err != nil {
			return Descriptor{}, &ValidationError{ID: spec.ID, Reason: err.Error()}
		}
	}

	var dependencies []string
	for _, dependency := range spec.Dependencies {
		if dependency == "" {
			return Descriptor{}, &ValidationError{ID: spec.ID, Reason: "empty dependency id"}
		}
		if dependency == spec.ID {
			return Descriptor{}, &ValidationError{ID: spec.ID, Reason: "asset depends on itself"}
		}
		if !slices.Contains(dependencies, dependency) {
			dependencies = append(dependencies, dependency)
		}
	}

	if spec.Location == "" && spec.SourceURL == "" && len(dependencies) == 0 {
		return Descriptor{}, &ValidationError{ID: spec.ID, Reason: "no location, no source URL and no dependencies"}
	}
	if spec.Location == "" && spec.SourceURL != "" {
		return Descriptor{}, &ValidationError{ID: spec.ID, Reason: "source URL without a location to store it at"}
	}
	if spec.Audience > AudienceClient {
		return Descriptor{}, &ValidationError{ID: spec.ID, Reason: fmt.Sprintf("unknown audience %d", spec.Audience)}
	}

	return Descriptor{
		id:           spec.ID,
		location:     spec.Location,
		sourceURL:    spec.SourceURL,
		digest:       spec.Digest,
		dependencies: dependencies,
		audience:     spec.Audience,
	}, nil
}

// FromLocation synthesises a descriptor for a bare map path: the
// location doubles as the identifier, there is no remote source, and
// the local copy is trusted as-is.
func FromLocation(location string) (Descriptor, error) {
	return NewDescriptor(Spec{ID: location, Location: location})
}

func (d Descriptor) ID() string { return d.id }
func (d Descriptor) Location() string { return d.location }
func (d Descriptor) SourceURL() string { return d.sourceURL }
func (d Descriptor) Digest() digest.Digest { return d.digest }
func (d Descriptor) Audience() Audience { return d.audience }
func (d Descriptor) HasLocalContent() bool { return d.location != "" }
func (d Descriptor) HasRemoteContent() bool { return d.sourceURL != "" }
func (d Descriptor) Dependencies() []string { return slices.Clone(d.dependencies) }
func (d Descriptor) IsZero() bool { return d.id == "" }

// IsArchive reports whether the location names a packed archive.
func (d Descriptor) IsArchive() bool {
	_, _, ok := SplitArchiveSuffix(d.location)
	return ok
}

// BaseLocation returns the location with any archive suffix stripped.
func (d Descriptor) BaseLocation() string {
	base, _, _ := SplitArchiveSuffix(d.location)
	return base
}

// ContentPrefix returns the prefix a scenario's files live under: the
// base location followed by a separator.
func (d Descriptor) ContentPrefix() string {
	return d.BaseLocation() + "/"
}

// Spec returns a copy of the fields the descriptor was built from.
func (d Descriptor) Spec() Spec {
	return Spec{
		ID:           d.id,
		Location:     d.location,
		SourceURL:    d.sourceURL,
		Digest:       d.digest,
		Dependencies: d.Dependencies(),
		Audience:     d.audience,
	}
}
