// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"sync"
)

// ErrPeerClosed is returned when writing to a closed MemoryPeer.
var ErrPeerClosed = errors.New("peer closed")

// MemoryPeer is an in-process Peer that decodes and records every
// frame written to it.
type MemoryPeer struct {
	mu          sync.Mutex
	frames      []Frame
	closed      bool
	closeReason string
}

// WriteFrame implements Peer.
func (p *MemoryPeer) WriteFrame(data []byte) error {
	frame, err := DecodeFrame(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPeerClosed
	}
	p.frames = append(p.frames, frame)
	return nil
}

// Close implements Peer.
func (p *MemoryPeer) Close(reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.closeReason = reason
	return nil
}

// Frames returns a copy of the frames received so far.
func (p *MemoryPeer) Frames() []Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Frame(nil), p.frames...)
}

// Kinds returns the kinds of the frames received so far, in order.
func (p *MemoryPeer) Kinds() []Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]Kind, len(p.frames))
	for i, frame := range p.frames {
		kinds[i] = frame.Kind
	}
	return kinds
}

// Reset discards recorded frames.
func (p *MemoryPeer) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = nil
}

// Closed reports whether the peer was closed and with what reason.
func (p *MemoryPeer) Closed() (bool, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.closeReason
}
