package moderation

import (
	"fmt"
	"testing"
	"time"

	"github.com/amer-bots/amerlink/pkg/store"
)

func TestBanExpiresLazily(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := store.NewWithClock(clock)
	l := NewLedgerWithClock(s, clock)

	l.Ban("u1", "spam", 10*time.Minute)
	if st := l.Status("u1"); !st.Banned {
		t.Fatal("ban should be active")
	}

	now = now.Add(11 * time.Minute)
	if st := l.Status("u1"); st.Banned {
		t.Fatal("expired ban should clear on lookup")
	}
	if s.Exists("blacklist:u1") {
		t.Error("expired ban keys should be deleted")
	}
}

func TestPermanentBan(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := store.NewWithClock(clock)
	l := NewLedgerWithClock(s, clock)

	l.Ban("u2", "abuse", 0)
	now = now.Add(100 * 24 * time.Hour)
	st := l.Status("u2")
	if !st.Banned {
		t.Fatal("permanent ban must not expire")
	}
	if st.ExpiresAt != nil {
		t.Error("permanent ban has no expiry")
	}

	l.Unban("u2")
	if l.Status("u2").Banned {
		t.Fatal("unban must clear the ban")
	}
}

func TestNotifiedFlipsOnce(t *testing.T) {
	s := store.New()
	l := NewLedger(s)
	l.Ban("u3", "spam", time.Hour)

	if st := l.Status("u3"); st.Notified {
		t.Fatal("first lookup must report un-notified")
	}
	if st := l.Status("u3"); !st.Notified {
		t.Fatal("second lookup must report notified")
	}
}

func TestListPagination(t *testing.T) {
	s := store.New()
	l := NewLedger(s)
	for i := 0; i < 25; i++ {
		l.Ban(fmt.Sprintf("user%02d", i), "spam", time.Hour)
	}

	page1, total := l.List(1, 10)
	if total != 25 || len(page1) != 10 {
		t.Fatalf("page1 len=%d total=%d", len(page1), total)
	}
	page3, _ := l.List(3, 10)
	if len(page3) != 5 {
		t.Fatalf("page3 len=%d", len(page3))
	}
	empty, _ := l.List(4, 10)
	if len(empty) != 0 {
		t.Fatalf("page past end should be empty, got %d", len(empty))
	}
}

func TestViolationCounter(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	s := store.NewWithClock(clock)
	l := NewLedgerWithClock(s, clock)

	if d, repeat := l.RecordViolation("QQ", "u4"); repeat || d != 0 {
		t.Fatalf("first violation: d=%v repeat=%v", d, repeat)
	}
	if d, repeat := l.RecordViolation("QQ", "u4"); !repeat || d != 60*time.Second {
		t.Fatalf("second violation: d=%v repeat=%v", d, repeat)
	}
	if d, repeat := l.RecordViolation("QQ", "u4"); !repeat || d != 120*time.Second {
		t.Fatalf("third violation: d=%v repeat=%v", d, repeat)
	}

	// A new day starts a fresh counter.
	now = now.Add(25 * time.Hour)
	if _, repeat := l.RecordViolation("QQ", "u4"); repeat {
		t.Fatal("next-day violation should be free again")
	}
}
