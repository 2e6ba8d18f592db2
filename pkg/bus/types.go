package bus

import "github.com/amer-bots/amerlink/pkg/platform"

// InboundMessage is a message received from a chat surface, before
// moderation and fanout.
type InboundMessage struct {
	Platform   platform.Platform `json:"platform"`
	OriginID   string            `json:"origin_id"`
	SenderID   string            `json:"sender_id"`
	SenderName string            `json:"sender_name"`
	Type       string            `json:"type"`
	Content    string            `json:"content"`
	MessageID  string            `json:"message_id,omitempty"`
}

// OutboundMessage is a message headed for one target group on one surface.
type OutboundMessage struct {
	Platform    platform.Platform `json:"platform"`
	TargetID    string            `json:"target_id"`
	ContentType string            `json:"content_type"`
	Content     string            `json:"content"`
}
