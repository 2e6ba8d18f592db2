package retention

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/amer-bots/amerlink/pkg/store"
)

func entry(t *testing.T, ts int64) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"message_content": "x", "timestamp": ts})
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSweepDropsAgedRecords(t *testing.T) {
	s := store.New()
	now := time.Now()
	old := now.Add(-10 * 24 * time.Hour).Unix()
	fresh := now.Unix()

	s.RPush("QQ:g1:QQ:g1", entry(t, old), entry(t, fresh))
	s.RPush("QQ:g1:YH:r1", entry(t, old))
	s.RPush("sensitive_messages:QQ:g1", entry(t, old), entry(t, fresh))

	sw := NewSweeper(s, "0 4 * * *", 7)
	sw.Sweep()

	if got := s.LLen("QQ:g1:QQ:g1"); got != 1 {
		t.Errorf("local log len = %d, want 1", got)
	}
	if s.Exists("QQ:g1:YH:r1") {
		t.Error("fully aged pair log should be removed")
	}
	if got := s.LLen("sensitive_messages:QQ:g1"); got != 1 {
		t.Errorf("sensitive log len = %d, want 1", got)
	}
}

func TestSweepKeepsUnparseableEntries(t *testing.T) {
	s := store.New()
	s.RPush("QQ:g1:QQ:g1", "not json")

	sw := NewSweeper(s, "0 4 * * *", 7)
	sw.Sweep()

	if got := s.LLen("QQ:g1:QQ:g1"); got != 1 {
		t.Errorf("unparseable entry dropped, len = %d", got)
	}
}
