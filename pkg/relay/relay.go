// Package relay consumes inbound messages, runs them through moderation,
// persists them, and fans them out to every bound peer whose forwarding
// flag allows it.
package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/amer-bots/amerlink/pkg/binding"
	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/metrics"
	"github.com/amer-bots/amerlink/pkg/moderation"
	"github.com/amer-bots/amerlink/pkg/msglog"
	"github.com/amer-bots/amerlink/pkg/platform"
)

// Coarse relay outcomes. Callers get a final human-readable status, not a
// per-peer delivery report.
const (
	StatusRejected   = "message rejected"
	StatusNoBindings = "no bindings"
	StatusRelayed    = "message relayed"
)

const defaultFanoutWorkers = 4

// Transport delivers one message to one external conversation.
type Transport interface {
	Deliver(ctx context.Context, p platform.Platform, targetID, contentType, content string) error
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, p platform.Platform, targetID, contentType, content string) error

func (f TransportFunc) Deliver(ctx context.Context, p platform.Platform, targetID, contentType, content string) error {
	return f(ctx, p, targetID, contentType, content)
}

// Relay ties the pipeline, registry, message log and transport together.
type Relay struct {
	registry  *binding.Registry
	log       *msglog.Log
	pipeline  *moderation.Pipeline
	transport Transport
	workers   int
}

// Option configures a Relay.
type Option func(*Relay)

// WithFanoutWorkers bounds the per-invocation fanout pool.
func WithFanoutWorkers(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.workers = n
		}
	}
}

func New(registry *binding.Registry, log *msglog.Log, pipeline *moderation.Pipeline, transport Transport, opts ...Option) *Relay {
	r := &Relay{
		registry:  registry,
		log:       log,
		pipeline:  pipeline,
		transport: transport,
		workers:   defaultFanoutWorkers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Input is one message to relay, as received from a channel adapter.
type Input struct {
	Origin     platform.Node
	SenderID   string
	SenderName string
	Type       string
	Content    string
	MessageID  string
}

// RelayToAllBindings moderates the message, writes the canonical local
// record, then fans it out to every peer whose edge forwards from the
// origin. The local write strictly precedes any fanout write. Per-peer
// delivery failures are logged and counted but never abort the loop.
func (r *Relay) RelayToAllBindings(ctx context.Context, in Input) (bool, string) {
	verdict := r.pipeline.Check(in.Origin, in.SenderID, in.SenderName, in.Content)
	if !verdict.Allowed {
		metrics.MessagesRejected.WithLabelValues(verdict.Reason).Inc()
		if verdict.Reason != moderation.ReasonBanned {
			r.log.AppendSensitive(in.Origin, msglog.NewRecord(
				in.Origin, in.SenderID, in.SenderName, in.Type, in.Content, in.MessageID))
		}
		logger.InfoCF("relay", "message rejected", map[string]any{
			"origin": in.Origin.String(), "sender": in.SenderID, "reason": verdict.Reason,
		})
		return false, StatusRejected
	}
	if verdict.Sensitive {
		// Review log keeps the original wording; the relayed copy is masked.
		r.log.AppendSensitive(in.Origin, msglog.NewRecord(
			in.Origin, in.SenderID, in.SenderName, in.Type, in.Content, in.MessageID))
		metrics.MessagesRedacted.Inc()
	}

	rec := msglog.NewRecord(in.Origin, in.SenderID, in.SenderName, in.Type, verdict.Content, in.MessageID)
	info := r.registry.GetInfo(ctx, in.Origin)

	r.log.AppendLocal(in.Origin, rec)
	r.log.IndexByMsgID(rec)
	metrics.MessagesRelayed.WithLabelValues(in.Origin.Platform.String()).Inc()

	if info.Status != binding.StatusOK {
		return true, StatusNoBindings
	}

	var peers []platform.Node
	for tag, edges := range info.Data {
		p, valid := platform.Parse(tag)
		if !valid {
			continue
		}
		for _, e := range edges {
			if e.Sync {
				peers = append(peers, platform.NewNode(p, e.ID))
			}
		}
	}
	if len(peers) == 0 {
		return true, StatusNoBindings
	}

	r.fanout(ctx, in.Origin, rec, peers)
	return true, StatusRelayed
}

func (r *Relay) fanout(ctx context.Context, origin platform.Node, rec msglog.Record, peers []platform.Node) {
	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for _, peer := range peers {
		wg.Add(1)
		sem <- struct{}{}
		go func(peer platform.Node) {
			defer wg.Done()
			defer func() { <-sem }()
			r.log.AppendPair(origin, peer, rec)
			content := formatForPeer(origin, rec)
			if err := r.transport.Deliver(ctx, peer.Platform, peer.ID, rec.Type, content); err != nil {
				metrics.DeliveryFailures.WithLabelValues(peer.Platform.String()).Inc()
				logger.WarnCF("relay", "delivery failed", map[string]any{
					"origin": origin.String(), "peer": peer.String(), "error": err.Error(),
				})
			}
		}(peer)
	}
	wg.Wait()
}

// formatForPeer prefixes relayed text with the origin tag and sender name
// so the receiving room can tell where it came from.
func formatForPeer(origin platform.Node, rec msglog.Record) string {
	name := rec.SenderName
	if name == "" {
		name = rec.SenderID
	}
	return fmt.Sprintf("[%s] %s: %s", origin.Platform, name, rec.Content)
}

// Run consumes the bus until ctx is cancelled or the bus closes.
func (r *Relay) Run(ctx context.Context, mb *bus.MessageBus) {
	for {
		msg, ok := mb.ConsumeInbound(ctx)
		if !ok {
			return
		}
		_, status := r.RelayToAllBindings(ctx, Input{
			Origin:     platform.NewNode(msg.Platform, msg.OriginID),
			SenderID:   msg.SenderID,
			SenderName: msg.SenderName,
			Type:       msg.Type,
			Content:    msg.Content,
			MessageID:  msg.MessageID,
		})
		logger.DebugCF("relay", "message handled", map[string]any{
			"origin": msg.Platform.String() + ":" + msg.OriginID, "status": status,
		})
	}
}

// BusTransport publishes outbound deliveries to the message bus, where the
// channel manager picks them up.
type BusTransport struct {
	bus *bus.MessageBus
}

func NewBusTransport(mb *bus.MessageBus) *BusTransport {
	return &BusTransport{bus: mb}
}

func (t *BusTransport) Deliver(ctx context.Context, p platform.Platform, targetID, contentType, content string) error {
	return t.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Platform:    p,
		TargetID:    targetID,
		ContentType: contentType,
		Content:     content,
	})
}
