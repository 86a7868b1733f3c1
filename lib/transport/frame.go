// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"fmt"

	"github.com/tessera-engine/tessera/lib/codec"
)

// Number identifies a connected client for the lifetime of its
// connection. Numbers are never reused while the hub runs.
type Number int

// AllClients addresses every attached client.
const AllClients Number = -1

// Kind names a message type.
type Kind uint8

const (
	// Server to client.

	// PrepareForNewScenario{epoch string} precedes a scenario change.
	PrepareForNewScenario Kind = iota + 1
	// NotifyAboutCurrentScenario{assetID, epoch string}.
	NotifyAboutCurrentScenario
	// LoginResponse{success, local bool}.
	LoginResponse
	// ShowMessage{title, text string}.
	ShowMessage
	// NotifyPrivateEditMode{} confirms private edit mode.
	NotifyPrivateEditMode
	// ScriptResult{output string} answers RunScript.
	ScriptResult
	// FileContent{name, content string} answers ReadFile.
	FileContent

	// Client to server.

	// LoginRequest{username, userID, adminToken string}; the token is
	// optional.
	LoginRequest
	// RequestPrivateEdit{}.
	RequestPrivateEdit
	// RestartMap{} asks the server to reload the current scenario.
	RestartMap
	// SetMap{activityID, assetID string} asks an administrator's server
	// to switch scenarios.
	SetMap
	// RunScript{text string} evaluates script text in the world.
	RunScript
	// ExportEntities{filename string} writes the world's entities under
	// the current scenario.
	ExportEntities
	// ReadFile{name string} reads a scenario or data file.
	ReadFile
)

var kindNames = map[Kind]string{
	PrepareForNewScenario:      "PrepareForNewScenario",
	NotifyAboutCurrentScenario: "NotifyAboutCurrentScenario",
	LoginResponse:              "LoginResponse",
	ShowMessage:                "ShowMessage",
	NotifyPrivateEditMode:      "NotifyPrivateEditMode",
	ScriptResult:               "ScriptResult",
	FileContent:                "FileContent",
	LoginRequest:               "LoginRequest",
	RequestPrivateEdit:         "RequestPrivateEdit",
	RestartMap:                 "RestartMap",
	SetMap:                     "SetMap",
	RunScript:                  "RunScript",
	ExportEntities:             "ExportEntities",
	ReadFile:                   "ReadFile",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Frame is one message.
type Frame struct {
	Kind   Kind  `cbor:"k"`
	Fields []any `cbor:"f,omitempty"`
}

// EncodeFrame encodes a frame for the wire.
func EncodeFrame(frame Frame) ([]byte, error) {
	data, err := codec.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", frame.Kind, err)
	}
	return data, nil
}

// DecodeFrame decodes a frame received from the wire.
func DecodeFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := codec.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	if _, ok := kindNames[frame.Kind]; !ok {
		return Frame{}, fmt.Errorf("decoding frame: unknown kind %d", uint8(frame.Kind))
	}
	return frame, nil
}

// Text returns field i as a string, or "" when it is absent or not a
// string.
func (f Frame) Text(i int) string {
	if i < 0 || i >= len(f.Fields) {
		return ""
	}
	s, _ := f.Fields[i].(string)
	return s
}

// Flag returns field i as a bool, or false when it is absent or not a
// bool.
func (f Frame) Flag(i int) bool {
	if i < 0 || i >= len(f.Fields) {
		return false
	}
	b, _ := f.Fields[i].(bool)
	return b
}
