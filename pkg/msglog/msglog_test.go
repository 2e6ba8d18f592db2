package msglog

import (
	"fmt"
	"testing"

	"github.com/amer-bots/amerlink/pkg/platform"
	"github.com/amer-bots/amerlink/pkg/store"
)

func rec(sender, content string, ts int64) Record {
	return Record{
		SenderID:     sender,
		SenderName:   sender,
		Type:         "text",
		Content:      content,
		Timestamp:    ts,
		PlatformFrom: "QQ",
		IDFrom:       "g1",
	}
}

func TestLocalViewNewestFirst(t *testing.T) {
	l := New(store.New())
	n := platform.NewNode(platform.QQ, "g1")

	l.AppendLocal(n, rec("u1", "first", 100))
	l.AppendLocal(n, rec("u1", "second", 200))
	l.AppendLocal(n, rec("u2", "third", 300))

	msgs, total := l.Local(n, 1, 10)
	if total != 3 || len(msgs) != 3 {
		t.Fatalf("total=%d len=%d", total, len(msgs))
	}
	if msgs[0].Content != "third" || msgs[2].Content != "first" {
		t.Fatalf("order wrong: %v", msgs)
	}
}

func TestLocalPagination(t *testing.T) {
	l := New(store.New())
	n := platform.NewNode(platform.QQ, "g1")
	for i := 0; i < 12; i++ {
		l.AppendLocal(n, rec("u1", fmt.Sprintf("m%d", i), int64(i)))
	}

	page2, total := l.Local(n, 2, 5)
	if total != 12 || len(page2) != 5 {
		t.Fatalf("total=%d len=%d", total, len(page2))
	}
	if page2[0].Content != "m6" {
		t.Errorf("page2[0] = %q", page2[0].Content)
	}
}

func TestSyncedViewDedupUnion(t *testing.T) {
	l := New(store.New())
	qq := platform.NewNode(platform.QQ, "g1")
	yh := platform.NewNode(platform.Yunhu, "r1")

	local := rec("u1", "local only", 100)
	l.AppendLocal(yh, local)

	relayed := rec("u2", "relayed", 200)
	l.AppendPair(qq, yh, relayed)

	msgs, total := l.Synced(yh, 1, 10)
	if total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if msgs[0].Content != "relayed" || msgs[1].Content != "local only" {
		t.Fatalf("order wrong: %v", msgs)
	}

	// The same record appended under both direction keys must appear once.
	fromQQ, _ := l.Synced(qq, 1, 10)
	count := 0
	for _, m := range fromQQ {
		if m.Content == "relayed" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate suppression failed, saw %d copies", count)
	}
}

func TestSensitiveView(t *testing.T) {
	l := New(store.New())
	n := platform.NewNode(platform.QQ, "g1")

	l.AppendSensitive(n, rec("u1", "bad stuff", 100))
	msgs, total := l.Sensitive(n, 1, 10)
	if total != 1 || msgs[0].Content != "bad stuff" {
		t.Fatalf("sensitive view: total=%d msgs=%v", total, msgs)
	}

	// Review log is separate from the local log.
	if _, localTotal := l.Local(n, 1, 10); localTotal != 0 {
		t.Error("sensitive records must not leak into the local view")
	}
}

func TestActiveSendersRanking(t *testing.T) {
	l := New(store.New())
	n := platform.NewNode(platform.Minecraft, "srv1")

	for i := 0; i < 5; i++ {
		l.AppendLocal(n, rec("chatty", "x", int64(i)))
	}
	l.AppendLocal(n, rec("quiet", "y", 10))

	users, total := l.ActiveSenders(n, 1, 10)
	if total != 2 || len(users) != 2 {
		t.Fatalf("total=%d len=%d", total, len(users))
	}
	if users[0].SenderID != "chatty" || users[0].Count != 5 {
		t.Fatalf("ranking wrong: %+v", users)
	}
	if users[1].Count != 1 {
		t.Fatalf("ranking wrong: %+v", users)
	}
}

func TestMsgIDIndex(t *testing.T) {
	l := New(store.New())

	r := rec("u1", "hello", 100)
	r.MsgID = "m-42"
	l.IndexByMsgID(r)

	got, found := l.GetByMsgID("m-42")
	if !found || got.Content != "hello" || got.SenderID != "u1" {
		t.Fatalf("lookup failed: %+v found=%v", got, found)
	}

	if _, found := l.GetByMsgID("missing"); found {
		t.Fatal("missing id must not resolve")
	}
}

func TestCounts(t *testing.T) {
	l := New(store.New())
	qq := platform.NewNode(platform.QQ, "g1")
	yh := platform.NewNode(platform.Yunhu, "r1")

	l.AppendLocal(qq, rec("u1", "a", 1))
	l.AppendPair(yh, qq, rec("u2", "b", 2))
	l.AppendSensitive(qq, rec("u3", "c", 3))

	counts := l.CountsFor(qq)
	if counts.Local != 1 {
		t.Errorf("local = %d", counts.Local)
	}
	if counts.Synced != 2 {
		t.Errorf("synced = %d", counts.Synced)
	}
	if counts.Sensitive != 1 {
		t.Errorf("sensitive = %d", counts.Sensitive)
	}
	if counts.Senders != 1 {
		t.Errorf("senders = %d", counts.Senders)
	}
}
