// Package moderation screens every inbound message before relay: ban
// lookup, frequency and repetition detection, blocked-word redaction, and
// the escalating ban ledger behind them.
package moderation

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/metrics"
	"github.com/amer-bots/amerlink/pkg/store"
)

const (
	banKeyPrefix      = "blacklist:"
	banNotifiedPrefix = "blacklist_notified:"
	banExpirePrefix   = "blacklist_expire:"
)

// BanStatus is the current ban state of one sender.
type BanStatus struct {
	Banned    bool       `json:"is_banned"`
	Reason    string     `json:"reason,omitempty"`
	Notified  bool       `json:"notified"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BanEntry is one listed ban.
type BanEntry struct {
	UserID    string     `json:"user_id"`
	Reason    string     `json:"reason"`
	Notified  bool       `json:"notified"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Ledger stores active bans with expiry. Lookups lazily clear stale
// entries, and the notified flag flips to true on the first observation of
// an active ban so callers can notify exactly once.
type Ledger struct {
	store *store.Store
	now   func() time.Time
}

func NewLedger(s *store.Store) *Ledger {
	return NewLedgerWithClock(s, time.Now)
}

func NewLedgerWithClock(s *store.Store, now func() time.Time) *Ledger {
	return &Ledger{store: s, now: now}
}

// Ban records a ban for userID. A non-positive duration means permanent.
func (l *Ledger) Ban(userID, reason string, duration time.Duration) {
	key := banKeyPrefix + userID
	notifiedKey := banNotifiedPrefix + userID
	expireKey := banExpirePrefix + userID

	l.store.Set(key, reason)
	l.store.Set(notifiedKey, "false")
	if duration > 0 {
		expireAt := l.now().Add(duration)
		l.store.Set(expireKey, expireAt.Format(time.RFC3339))
		l.store.Expire(key, duration)
		l.store.Expire(notifiedKey, duration)
		l.store.Expire(expireKey, duration)
	} else {
		l.store.Delete(expireKey)
	}
	metrics.BansIssued.Inc()
	logger.InfoCF("moderation", "sender banned", map[string]any{
		"user": userID, "reason": reason, "duration": duration.String(),
	})
}

// Unban clears every ban key for userID.
func (l *Ledger) Unban(userID string) {
	l.store.Delete(banKeyPrefix+userID, banNotifiedPrefix+userID, banExpirePrefix+userID)
}

// Status reports whether userID is presently banned. A ban past its
// recorded expiry is cleared on the spot. The first status call that sees
// an active un-notified ban returns Notified=false and flips the flag.
func (l *Ledger) Status(userID string) BanStatus {
	key := banKeyPrefix + userID
	reason, exists := l.store.Get(key)
	if !exists {
		return BanStatus{}
	}

	st := BanStatus{Banned: true, Reason: reason, Notified: true}
	if raw, found := l.store.Get(banExpirePrefix + userID); found {
		expireAt, err := time.Parse(time.RFC3339, raw)
		if err == nil {
			if !l.now().Before(expireAt) {
				l.Unban(userID)
				return BanStatus{}
			}
			st.ExpiresAt = &expireAt
		}
	}

	if notified, found := l.store.Get(banNotifiedPrefix + userID); found && notified == "false" {
		st.Notified = false
		l.store.Set(banNotifiedPrefix+userID, "true")
	}
	return st
}

// List returns the active bans, paginated, ordered by user id.
func (l *Ledger) List(page, pageSize int) ([]BanEntry, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	keys := l.store.Keys(banKeyPrefix + "*")
	sort.Strings(keys)

	entries := make([]BanEntry, 0, len(keys))
	for _, key := range keys {
		userID := strings.TrimPrefix(key, banKeyPrefix)
		reason, found := l.store.Get(key)
		if !found {
			continue
		}
		e := BanEntry{UserID: userID, Reason: reason}
		if notified, found := l.store.Get(banNotifiedPrefix + userID); found {
			e.Notified = notified == "true"
		}
		if raw, found := l.store.Get(banExpirePrefix + userID); found {
			if expireAt, err := time.Parse(time.RFC3339, raw); err == nil {
				e.ExpiresAt = &expireAt
			}
		}
		entries = append(entries, e)
	}

	total := len(entries)
	start := (page - 1) * pageSize
	if start >= total {
		return nil, total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return entries[start:end], total
}

const violationKeyPrefix = "violation:"

// RecordViolation bumps the per-day violation counter for a sender and
// returns the ban duration it earned. The first violation of a calendar
// day is recorded but earns no ban; each one after that earns the current
// count times sixty seconds.
func (l *Ledger) RecordViolation(p string, userID string) (time.Duration, bool) {
	day := l.now().Format("2006-01-02")
	key := violationKeyPrefix + p + ":" + userID + ":" + day

	raw, found := l.store.Get(key)
	if !found {
		l.store.SetEX(key, "1", 24*time.Hour)
		return 0, false
	}
	count, _ := strconv.Atoi(raw)
	l.store.Incr(key)
	return time.Duration(count) * 60 * time.Second, true
}
