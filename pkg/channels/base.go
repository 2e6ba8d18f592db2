// Package channels holds the platform adapters: each one speaks a single
// chat surface's wire protocol and exchanges messages with the rest of the
// bridge through the bus.
package channels

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/platform"
)

type Channel interface {
	Name() string
	Platform() platform.Platform
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

type BaseChannel struct {
	bus      *bus.MessageBus
	name     string
	platform platform.Platform
	running  atomic.Bool
}

func NewBaseChannel(name string, p platform.Platform, mb *bus.MessageBus) *BaseChannel {
	return &BaseChannel{bus: mb, name: name, platform: p}
}

func (c *BaseChannel) Name() string                { return c.name }
func (c *BaseChannel) Platform() platform.Platform { return c.platform }
func (c *BaseChannel) IsRunning() bool             { return c.running.Load() }
func (c *BaseChannel) SetRunning(running bool)     { c.running.Store(running) }

// HandleMessage publishes one decoded wire message to the bus. A missing
// external message id gets a generated one so the msg_id index stays
// usable.
func (c *BaseChannel) HandleMessage(ctx context.Context, originID, senderID, senderName, msgType, content, messageID string) {
	if messageID == "" {
		messageID = uuid.New().String()
	}
	c.bus.PublishInbound(ctx, bus.InboundMessage{
		Platform:   c.platform,
		OriginID:   originID,
		SenderID:   senderID,
		SenderName: senderName,
		Type:       msgType,
		Content:    content,
		MessageID:  messageID,
	})
}
