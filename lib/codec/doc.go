// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the one CBOR configuration every Tessera package
// encodes with.
//
// Two things are CBOR: transport frames sent to connected clients, and
// the scenario state file the server resumes from. JSON stays at the
// edges (remote catalog responses). The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2), so equal values always produce equal bytes
// and state files diff cleanly.
//
//	data, err := codec.Marshal(state)
//	err = codec.Unmarshal(data, &state)
//
// Struct types that only ever travel as CBOR carry `cbor` tags. Types
// that are also JSON carry `json` tags only; fxamacker/cbor falls back
// to them.
package codec
