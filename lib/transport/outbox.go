// Copyright 2026 The Tessera Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/eapache/queue"

	"github.com/tessera-engine/tessera/lib/codec"
)

// Sender is how the scenario lifecycle, the session registry and the
// server loop reach clients.
type Sender interface {
	// Send queues a frame for one client or for AllClients.
	Send(to Number, kind Kind, fields ...any)

	// ForceFlush writes every queued frame now.
	ForceFlush()

	// Kick flushes what is queued for number, then closes its
	// connection with reason. The peer's reader then reports a
	// disconnect as usual.
	Kick(number Number, reason string)
}

// Peer is one client connection as the outbox sees it.
type Peer interface {
	WriteFrame(data []byte) error
	Close(reason string) error
}

type pendingFrame struct {
	to   Number
	kind Kind
	data []byte
}

// Outbox queues frames and delivers them to attached peers on flush.
// It is safe for concurrent use.
type Outbox struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending *queue.Queue
	peers   map[Number]Peer
}

// NewOutbox returns an empty outbox.
func NewOutbox(logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{
		logger:  logger,
		pending: queue.New(),
		peers:   make(map[Number]Peer),
	}
}

// Attach registers peer under number, replacing any previous peer.
func (o *Outbox) Attach(number Number, peer Peer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.peers[number] = peer
}

// Detach forgets number. Frames still queued for it are dropped at the
// next flush.
func (o *Outbox) Detach(number Number) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.peers, number)
}

// Attached reports the attached client numbers in ascending order.
func (o *Outbox) Attached() []Number {
	o.mu.Lock()
	defer o.mu.Unlock()
	numbers := make([]Number, 0, len(o.peers))
	for number := range o.peers {
		numbers = append(numbers, number)
	}
	slices.Sort(numbers)
	return numbers
}

// Pending reports how many frames are queued.
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending.Length()
}

// Send implements Sender. Encoding failures are logged and the frame is
// dropped.
func (o *Outbox) Send(to Number, kind Kind, fields ...any) {
	data, err := EncodeFrame(Frame{Kind: kind, Fields: fields})
	if err != nil {
		o.logger.Error("dropping unencodable frame", "to", int(to), "kind", kind.String(), "error", err)
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.Add(pendingFrame{to: to, kind: kind, data: data})
}

// ForceFlush implements Sender.
func (o *Outbox) ForceFlush() {
	o.flush(func(Number) bool { return true })
}

// Kick implements Sender.
func (o *Outbox) Kick(number Number, reason string) {
	o.flush(func(to Number) bool { return to == number || to == AllClients })

	o.mu.Lock()
	peer, ok := o.peers[number]
	delete(o.peers, number)
	o.mu.Unlock()
	if !ok {
		return
	}
	o.logger.Info("kicking client", "client", int(number), "reason", reason)
	if err := peer.Close(reason); err != nil {
		o.logger.Debug("closing kicked client", "client", int(number), "error", err)
	}
}

// flush delivers queued frames whose recipient matches. Frames that do
// not match stay queued in order.
func (o *Outbox) flush(match func(Number) bool) {
	type delivery struct {
		frame pendingFrame
		peers []numberedPeer
	}

	o.mu.Lock()
	var deliveries []delivery
	kept := queue.New()
	for o.pending.Length() > 0 {
		frame := o.pending.Remove().(pendingFrame)
		if !match(frame.to) {
			kept.Add(frame)
			continue
		}
		deliveries = append(deliveries, delivery{frame: frame, peers: o.recipientsLocked(frame.to)})
	}
	o.pending = kept
	o.mu.Unlock()

	debug := o.logger.Enabled(context.Background(), slog.LevelDebug)
	for _, delivery := range deliveries {
		if debug {
			diagnostic, _ := codec.Diagnose(delivery.frame.data)
			o.logger.Debug("sending frame", "to", int(delivery.frame.to), "frame", diagnostic)
		}
		for _, recipient := range delivery.peers {
			if err := recipient.peer.WriteFrame(delivery.frame.data); err != nil {
				o.logger.Warn("writing frame to client",
					"client", int(recipient.number),
					"kind", delivery.frame.kind.String(),
					"error", err,
				)
			}
		}
	}
}

type numberedPeer struct {
	number Number
	peer   Peer
}

func (o *Outbox) recipientsLocked(to Number) []numberedPeer {
	if to != AllClients {
		peer, ok := o.peers[to]
		if !ok {
			return nil
		}
		return []numberedPeer{{number: to, peer: peer}}
	}
	recipients := make([]numberedPeer, 0, len(o.peers))
	for number, peer := range o.peers {
		recipients = append(recipients, numberedPeer{number: number, peer: peer})
	}
	slices.SortFunc(recipients, func(a, b numberedPeer) int { return int(a.number) - int(b.number) })
	return recipients
}
