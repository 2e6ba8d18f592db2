package channels

import (
	"context"

	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/metrics"
	"github.com/amer-bots/amerlink/pkg/platform"
)

// Manager owns the enabled channel adapters and routes outbound bus
// traffic to the right one.
type Manager struct {
	channels map[platform.Platform]Channel
	bus      *bus.MessageBus

	yunhu     *YunhuChannel
	minecraft *MinecraftChannel
}

func NewManager(cfg config.ChannelsConfig, mb *bus.MessageBus) *Manager {
	m := &Manager{channels: map[platform.Platform]Channel{}, bus: mb}
	if cfg.QQ.Enabled {
		m.channels[platform.QQ] = NewOneBotChannel(cfg.QQ, mb)
	}
	if cfg.Yunhu.Enabled {
		m.yunhu = NewYunhuChannel(cfg.Yunhu, mb)
		m.channels[platform.Yunhu] = m.yunhu
	}
	if cfg.Minecraft.Enabled {
		m.minecraft = NewMinecraftChannel(cfg.Minecraft, mb)
		m.channels[platform.Minecraft] = m.minecraft
	}
	return m
}

// Yunhu returns the Yunhu adapter, or nil when disabled. The gateway uses
// it to mount the webhook.
func (m *Manager) Yunhu() *YunhuChannel { return m.yunhu }

// Minecraft returns the Minecraft adapter, or nil when disabled.
func (m *Manager) Minecraft() *MinecraftChannel { return m.minecraft }

func (m *Manager) StartAll(ctx context.Context) error {
	for p, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			return err
		}
		logger.InfoCF("channels", "channel started", map[string]any{
			"platform": p.String(), "name": ch.Name(),
		})
	}
	return nil
}

func (m *Manager) StopAll(ctx context.Context) {
	for _, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "channel stop failed", map[string]any{
				"name": ch.Name(), "error": err.Error(),
			})
		}
	}
}

// Dispatch consumes outbound bus messages and hands each to its adapter
// until ctx is cancelled or the bus closes.
func (m *Manager) Dispatch(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		ch, found := m.channels[msg.Platform]
		if !found {
			logger.WarnCF("channels", "no adapter for outbound message", map[string]any{
				"platform": msg.Platform.String(), "target": msg.TargetID,
			})
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			metrics.DeliveryFailures.WithLabelValues(msg.Platform.String()).Inc()
			logger.WarnCF("channels", "outbound send failed", map[string]any{
				"platform": msg.Platform.String(), "target": msg.TargetID, "error": err.Error(),
			})
		}
	}
}

// Deliver sends one message directly through the matching adapter. The
// registry's unbind notices use this path.
func (m *Manager) Deliver(ctx context.Context, p platform.Platform, targetID, contentType, content string) error {
	ch, found := m.channels[p]
	if !found {
		return ErrNoAdapter{Platform: p}
	}
	return ch.Send(ctx, bus.OutboundMessage{
		Platform:    p,
		TargetID:    targetID,
		ContentType: contentType,
		Content:     content,
	})
}

// ErrNoAdapter reports an outbound message for a platform with no enabled
// adapter.
type ErrNoAdapter struct {
	Platform platform.Platform
}

func (e ErrNoAdapter) Error() string {
	return "no adapter enabled for platform " + e.Platform.String()
}
