package relay

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/amer-bots/amerlink/pkg/binding"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/moderation"
	"github.com/amer-bots/amerlink/pkg/platform"
)

// BanNotifier announces bans to the origin conversation and its bound
// peers. Yunhu rooms get an HTML rendering, the other surfaces plain text.
// Delivery is best effort; a failed notice is logged and dropped.
type BanNotifier struct {
	registry  *binding.Registry
	transport Transport
	timeout   time.Duration
}

func NewBanNotifier(registry *binding.Registry, transport Transport) *BanNotifier {
	return &BanNotifier{registry: registry, transport: transport, timeout: 10 * time.Second}
}

var _ moderation.Notifier = (*BanNotifier)(nil)

func (bn *BanNotifier) NotifyBan(n moderation.Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), bn.timeout)
	defer cancel()

	targets := []platform.Node{n.Origin}
	info := bn.registry.GetInfo(ctx, n.Origin)
	if info.Status == binding.StatusOK {
		for tag, edges := range info.Data {
			p, valid := platform.Parse(tag)
			if !valid {
				continue
			}
			for _, e := range edges {
				if e.Sync {
					targets = append(targets, platform.NewNode(p, e.ID))
				}
			}
		}
	}

	text, htmlBody := banNotice(n)
	for _, target := range targets {
		contentType, content := "text", text
		if target.Platform == platform.Yunhu {
			contentType, content = "html", htmlBody
		}
		if err := bn.transport.Deliver(ctx, target.Platform, target.ID, contentType, content); err != nil {
			logger.WarnCF("relay", "ban notice not delivered", map[string]any{
				"target": target.String(), "error": err.Error(),
			})
		}
	}
}

func banNotice(n moderation.Notice) (string, string) {
	name := n.Sender
	if name == "" {
		name = n.SenderID
	}
	span := "permanently"
	if n.Duration > 0 {
		span = fmt.Sprintf("for %d seconds", int(n.Duration.Seconds()))
	}
	text := fmt.Sprintf("User %s (%s) has been muted %s. Reason: %s.", name, n.SenderID, span, n.Reason)
	htmlBody := fmt.Sprintf(
		"<p><b>%s</b> (%s) has been muted <i>%s</i>.<br/>Reason: %s.</p>",
		html.EscapeString(name), html.EscapeString(n.SenderID), span, html.EscapeString(n.Reason))
	return text, htmlBody
}
