// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type scenarioRecord struct {
	AssetID    string `cbor:"asset_id"`
	ActivityID string `cbor:"activity_id,omitempty"`
	Epoch      string `cbor:"epoch"`
}

func TestMarshalDeterministic(t *testing.T) {
	first := map[string]any{"epoch": "e1", "asset_id": "base/forest", "kind": uint64(2)}
	second := map[string]any{"kind": uint64(2), "asset_id": "base/forest", "epoch": "e1"}

	a, err := Marshal(first)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		b, err := Marshal(second)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("map key order changed the encoding:\n%x\n%x", a, b)
		}
	}
}

func TestStructRoundtripAndOmitempty(t *testing.T) {
	original := scenarioRecord{AssetID: "base/forest", Epoch: "0f1e"}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if strings.Contains(diagnostic, "activity_id") {
		t.Errorf("empty activity should be omitted: %s", diagnostic)
	}

	var decoded scenarioRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("decoded %+v, want %+v", decoded, original)
	}
}

// phase marshals as its name.
type phase int

func (p phase) MarshalText() ([]byte, error) {
	return []byte([]string{"idle", "ready"}[p]), nil
}

func (p *phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*p = 0
	case "ready":
		*p = 1
	default:
		return errors.New("unknown phase " + string(text))
	}
	return nil
}

func TestTextMarshalerTravelsAsText(t *testing.T) {
	type state struct {
		Phase phase `cbor:"phase"`
	}
	data, err := Marshal(state{Phase: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"ready"`) {
		t.Errorf("diagnostic = %s, want the phase as text", diagnostic)
	}
	var decoded state
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Phase != 1 {
		t.Errorf("decoded phase %d, want 1", decoded.Phase)
	}
}

func TestNestedMapsDecodeStringKeyed(t *testing.T) {
	data, err := Marshal([]any{"ShowMessage", map[string]any{"title": "Login failure"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var fields []any
	if err := Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	nested, ok := fields[1].(map[string]any)
	if !ok {
		t.Fatalf("nested map decoded as %T", fields[1])
	}
	if nested["title"] != "Login failure" {
		t.Errorf("nested = %v", nested)
	}
}

func TestStreamRoundtrip(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	records := []scenarioRecord{
		{AssetID: "base/forest", Epoch: "a"},
		{AssetID: "base/desert", ActivityID: "*FORCED*", Epoch: "b"},
	}
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range records {
		var got scenarioRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode %d: %v", i, err)
		}
		if got != want {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
	}
}

func TestUnmarshalInvalid(t *testing.T) {
	var record scenarioRecord
	if err := Unmarshal([]byte{0xff, 0x00}, &record); err == nil {
		t.Fatal("expected error for invalid CBOR")
	}
}
