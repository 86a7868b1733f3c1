// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tessera-engine/tessera/lib/testutil"
)

func startHub(t *testing.T) (*WebSocketHub, *Outbox, string) {
	t.Helper()
	outbox := NewOutbox(testutil.Logger())
	hub := NewWebSocketHub(HubConfig{Outbox: outbox, Logger: testutil.Logger()})
	server := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, outbox, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, response, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing hub: %v", err)
	}
	if response != nil {
		response.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubConnectMessageDisconnect(t *testing.T) {
	hub, _, url := startHub(t)
	conn := dial(t, url)

	connect := testutil.RequireReceive(t, hub.Events(), 5*time.Second, "connect event")
	if connect.Kind != EventConnect || !connect.Addr.IsLoopback() {
		t.Fatalf("first event = %+v, want a loopback connect", connect)
	}

	data, err := EncodeFrame(Frame{Kind: LoginRequest, Fields: []any{"player"}})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	message := testutil.RequireReceive(t, hub.Events(), 5*time.Second, "message event")
	if message.Kind != EventMessage || message.Number != connect.Number || message.Frame.Kind != LoginRequest {
		t.Fatalf("message event = %+v", message)
	}
	if message.Frame.Text(0) != "player" {
		t.Errorf("identity = %q", message.Frame.Text(0))
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	disconnect := testutil.RequireReceive(t, hub.Events(), 5*time.Second, "disconnect event")
	if disconnect.Kind != EventDisconnect || disconnect.Number != connect.Number {
		t.Fatalf("disconnect event = %+v", disconnect)
	}
}

func TestHubDeliversOutboxFramesAndKicks(t *testing.T) {
	hub, outbox, url := startHub(t)
	conn := dial(t, url)
	connect := testutil.RequireReceive(t, hub.Events(), 5*time.Second, "connect event")

	outbox.Send(connect.Number, ShowMessage, "Login failure", "instance is at capacity")
	outbox.Kick(connect.Number, "instance is at capacity")

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	frame, err := DecodeFrame(payload)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if frame.Kind != ShowMessage || frame.Text(1) != "instance is at capacity" {
		t.Fatalf("frame = %+v", frame)
	}

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != websocket.ClosePolicyViolation {
		t.Fatalf("read after kick = %v, want policy violation close", err)
	}
	if closeErr.Text != "instance is at capacity" {
		t.Errorf("close reason = %q", closeErr.Text)
	}

	disconnect := testutil.RequireReceive(t, hub.Events(), 5*time.Second, "disconnect event")
	if disconnect.Kind != EventDisconnect {
		t.Errorf("event after kick = %+v, want disconnect", disconnect)
	}
}

func TestHubAssignsDistinctNumbers(t *testing.T) {
	hub, outbox, url := startHub(t)
	dial(t, url)
	first := testutil.RequireReceive(t, hub.Events(), 5*time.Second, "first connect")
	dial(t, url)
	second := testutil.RequireReceive(t, hub.Events(), 5*time.Second, "second connect")

	if first.Number == second.Number {
		t.Fatalf("both connections got number %d", first.Number)
	}
	if got := outbox.Attached(); len(got) != 2 {
		t.Errorf("Attached = %v, want two clients", got)
	}
}
