package moderation

import (
	"strings"
	"testing"
	"time"

	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/platform"
	"github.com/amer-bots/amerlink/pkg/store"
)

type recordingNotifier struct {
	notices []Notice
}

func (rn *recordingNotifier) NotifyBan(n Notice) { rn.notices = append(rn.notices, n) }

func testConfig() config.ModerationConfig {
	return config.ModerationConfig{
		FrequencyThreshold:  3,
		FrequencyWindowSecs: 30,
		RepetitionThreshold: 5,
		MaskSymbol:          "*",
		BlockedWords: map[string][]string{
			"ads": {"casino", "free coins"},
		},
	}
}

func TestCleanMessagePasses(t *testing.T) {
	p := NewPipeline(store.New(), testConfig(), nil)
	origin := platform.NewNode(platform.QQ, "g1")

	v := p.Check(origin, "u1", "alice", "hello there")
	if !v.Allowed {
		t.Fatalf("clean message rejected: %+v", v)
	}
	if v.Content != "hello there" {
		t.Errorf("content changed: %q", v.Content)
	}
	if v.Sensitive {
		t.Error("clean message flagged sensitive")
	}
}

func TestFrequencyRejection(t *testing.T) {
	p := NewPipeline(store.New(), testConfig(), nil)
	origin := platform.NewNode(platform.QQ, "g1")

	var v Verdict
	for i := 0; i < 4; i++ {
		v = p.Check(origin, "u1", "alice", "hi")
	}
	if v.Allowed {
		t.Fatal("fourth message within window should be rejected")
	}
	if v.Reason != ReasonFrequency {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestRepetitionRejection(t *testing.T) {
	p := NewPipeline(store.New(), testConfig(), nil)
	origin := platform.NewNode(platform.Yunhu, "g2")

	v := p.Check(origin, "u2", "bob", "aaaaaaa")
	if v.Allowed {
		t.Fatal("repeated-run content should be rejected")
	}
	if v.Reason != ReasonRepetition {
		t.Errorf("reason = %q", v.Reason)
	}

	v = p.Check(origin, "u3", "carol", "hello     	world")
	if v.Allowed {
		t.Fatal("long whitespace run should be rejected")
	}
}

func TestBlockedWordsRedactAndContinue(t *testing.T) {
	p := NewPipeline(store.New(), testConfig(), nil)
	origin := platform.NewNode(platform.QQ, "g1")

	v := p.Check(origin, "u4", "dave", "join my Casino now")
	if !v.Allowed {
		t.Fatal("blocked-word message must continue with redaction")
	}
	if !v.Sensitive {
		t.Error("blocked-word message must be flagged sensitive")
	}
	if strings.Contains(strings.ToLower(v.Content), "casino") {
		t.Errorf("content not masked: %q", v.Content)
	}
	if v.Content != "join my ****** now" {
		t.Errorf("mask shape wrong: %q", v.Content)
	}
	if len(v.Categories) != 1 || v.Categories[0] != "ads" {
		t.Errorf("categories = %v", v.Categories)
	}
}

func TestViolationEscalation(t *testing.T) {
	s := store.New()
	rn := &recordingNotifier{}
	p := NewPipeline(s, testConfig(), rn)
	origin := platform.NewNode(platform.QQ, "g1")

	// First violation of the day is free.
	p.Check(origin, "u5", "eve", "bbbbbbbb")
	if st := p.Ledger().Status("u5"); st.Banned {
		t.Fatal("first violation must not ban")
	}
	if len(rn.notices) != 0 {
		t.Fatalf("no notice expected on first violation, got %d", len(rn.notices))
	}

	// Second violation earns count*60s.
	p.Check(origin, "u5", "eve", "cccccccc")
	st := p.Ledger().Status("u5")
	if !st.Banned {
		t.Fatal("second violation must ban")
	}
	if len(rn.notices) != 1 {
		t.Fatalf("expected 1 ban notice, got %d", len(rn.notices))
	}
	if rn.notices[0].Duration != 60*time.Second {
		t.Errorf("first ban duration = %v", rn.notices[0].Duration)
	}
}

func TestBannedSenderRejected(t *testing.T) {
	s := store.New()
	rn := &recordingNotifier{}
	p := NewPipeline(s, testConfig(), rn)
	origin := platform.NewNode(platform.QQ, "g1")

	p.Ledger().Ban("u6", "manual", time.Hour)

	v := p.Check(origin, "u6", "mallory", "hello")
	if v.Allowed {
		t.Fatal("banned sender must be rejected")
	}
	if v.Reason != ReasonBanned {
		t.Errorf("reason = %q", v.Reason)
	}
	// First check after the ban announces it, later checks stay quiet.
	if len(rn.notices) != 1 {
		t.Fatalf("expected 1 notice, got %d", len(rn.notices))
	}
	p.Check(origin, "u6", "mallory", "hello again")
	if len(rn.notices) != 1 {
		t.Fatalf("repeat check must not re-notify, got %d", len(rn.notices))
	}
}
