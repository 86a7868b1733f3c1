// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
)

// Link-time values, set with -ldflags "-X .../lib/version.GitCommit=...".
// Empty values fall back to the VCS stamps the go command records.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

// Build identifies the running binary.
type Build struct {
	Version   string
	Commit    string
	Modified  bool
	Time      string
	GoVersion string
}

// Current returns the build of the running binary.
func Current() Build {
	build := Build{
		Version:   Version,
		Commit:    GitCommit,
		Modified:  GitDirty == "true",
		Time:      BuildTime,
		GoVersion: runtime.Version(),
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		build = build.withSettings(info.Settings)
	}
	return build
}

// withSettings fills the fields the linker left empty from the
// vcs.* build settings. An injected commit also decides Modified.
func (b Build) withSettings(settings []debug.BuildSetting) Build {
	injected := b.Commit != ""
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			if !injected {
				b.Commit = shortRevision(setting.Value)
			}
		case "vcs.modified":
			if !injected {
				b.Modified = setting.Value == "true"
			}
		case "vcs.time":
			if b.Time == "" {
				b.Time = setting.Value
			}
		}
	}
	return b
}

func shortRevision(revision string) string {
	if len(revision) > 12 {
		return revision[:12]
	}
	return revision
}

// String formats the build as "<version> (<commit>[-dirty], <time>)".
func (b Build) String() string {
	commit := orUnknown(b.Commit)
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, commit, orUnknown(b.Time))
}

// LogValue implements slog.LogValuer.
func (b Build) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", b.Version),
		slog.String("commit", orUnknown(b.Commit)),
		slog.Bool("modified", b.Modified),
		slog.String("go", b.GoVersion),
	)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// Info returns the current build formatted for --version output.
func Info() string {
	return Current().String()
}
