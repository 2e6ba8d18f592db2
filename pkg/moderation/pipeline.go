package moderation

import (
	"fmt"
	"time"

	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/platform"
	"github.com/amer-bots/amerlink/pkg/store"
)

// Rejection reasons carried on a failed verdict.
const (
	ReasonBanned     = "banned"
	ReasonFrequency  = "frequency"
	ReasonRepetition = "repetition"
)

// Verdict is the pipeline's decision for one inbound message. Allowed
// messages may still carry redacted content and a sensitive flag; the
// caller persists the original to the review log when Sensitive is set.
type Verdict struct {
	Allowed    bool
	Reason     string
	Content    string
	Sensitive  bool
	Categories []string
}

// Notice describes a ban the caller should announce to the origin and its
// bound peers.
type Notice struct {
	Origin   platform.Node
	SenderID string
	Sender   string
	Reason   string
	Duration time.Duration
}

// Notifier delivers ban notices. Implementations must not block the
// pipeline on transport failures.
type Notifier interface {
	NotifyBan(n Notice)
}

// Pipeline runs the four screening stages in order: ban lookup, frequency,
// repetition, blocked words. The first three reject; blocked words redact
// and let the message through.
type Pipeline struct {
	ledger    *Ledger
	frequency *FrequencyDetector
	blocklist *Blocklist
	repThresh int
	notifier  Notifier
}

func NewPipeline(s *store.Store, cfg config.ModerationConfig, notifier Notifier) *Pipeline {
	return &Pipeline{
		ledger:    NewLedger(s),
		frequency: NewFrequencyDetector(s, cfg.FrequencyThreshold, time.Duration(cfg.FrequencyWindowSecs)*time.Second),
		blocklist: NewBlocklist(cfg.BlockedWords, cfg.MaskSymbol),
		repThresh: cfg.RepetitionThreshold,
		notifier:  notifier,
	}
}

// Ledger exposes the pipeline's ban ledger for admin operations.
func (p *Pipeline) Ledger() *Ledger { return p.ledger }

// Check screens one message. Origin is the conversation the message
// arrived in; sender identifies the author within it.
func (p *Pipeline) Check(origin platform.Node, senderID, senderName, content string) Verdict {
	if st := p.ledger.Status(senderID); st.Banned {
		if !st.Notified && p.notifier != nil {
			n := Notice{Origin: origin, SenderID: senderID, Sender: senderName, Reason: st.Reason}
			if st.ExpiresAt != nil {
				n.Duration = time.Until(*st.ExpiresAt)
			}
			p.notifier.NotifyBan(n)
		}
		return Verdict{Reason: ReasonBanned, Content: content}
	}

	if p.frequency.Record(origin.Platform.String(), senderID) {
		p.punish(origin, senderID, senderName, "message frequency limit exceeded")
		return Verdict{Reason: ReasonFrequency, Content: content}
	}

	if Repetitive(content, p.repThresh) {
		p.punish(origin, senderID, senderName, "repetitive content")
		return Verdict{Reason: ReasonRepetition, Content: content}
	}

	redacted, cats := p.blocklist.Classify(content)
	if len(cats) > 0 {
		p.punish(origin, senderID, senderName, "blocked words: "+cats[0])
		return Verdict{Allowed: true, Content: redacted, Sensitive: true, Categories: cats}
	}

	return Verdict{Allowed: true, Content: content}
}

// punish records a violation and, past the first of the day, applies the
// escalating ban and announces it.
func (p *Pipeline) punish(origin platform.Node, senderID, senderName, reason string) {
	duration, repeat := p.ledger.RecordViolation(origin.Platform.String(), senderID)
	if !repeat {
		logger.InfoCF("moderation", "first violation of the day, no ban", map[string]any{
			"origin": origin.String(), "sender": senderID, "reason": reason,
		})
		return
	}
	p.ledger.Ban(senderID, reason, duration)
	if p.notifier != nil {
		p.notifier.NotifyBan(Notice{
			Origin:   origin,
			SenderID: senderID,
			Sender:   senderName,
			Reason:   reason,
			Duration: duration,
		})
	}
	logger.WarnCF("moderation", "violation ban applied", map[string]any{
		"origin": origin.String(), "sender": senderID, "reason": reason,
		"duration": fmt.Sprintf("%ds", int(duration.Seconds())),
	})
}
