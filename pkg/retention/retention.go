// Package retention evicts aged message records on a cron schedule.
package retention

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adhocore/gronx"

	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/store"
)

// Sweeper walks the message logs and drops records older than the
// configured age. Pair logs and review logs are both swept; an emptied log
// disappears entirely.
type Sweeper struct {
	store    *store.Store
	schedule string
	maxAge   time.Duration
	gron     *gronx.Gronx
	now      func() time.Time
}

func NewSweeper(s *store.Store, schedule string, maxAgeDays int) *Sweeper {
	return &Sweeper{
		store:    s,
		schedule: schedule,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		gron:     gronx.New(),
		now:      time.Now,
	}
}

// Run ticks once a minute and sweeps whenever the schedule is due.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := s.gron.IsDue(s.schedule, s.now())
			if err != nil {
				logger.ErrorCF("retention", "bad sweep schedule", map[string]any{
					"schedule": s.schedule, "error": err.Error(),
				})
				return
			}
			if due {
				s.Sweep()
			}
		}
	}
}

// Sweep drops expired records from every message log.
func (s *Sweeper) Sweep() {
	cutoff := s.now().Add(-s.maxAge).Unix()
	swept, dropped := 0, 0

	keys := s.store.Keys("*:*:*:*")
	keys = append(keys, s.store.Keys("sensitive_messages:*")...)
	for _, key := range keys {
		items := s.store.LRange(key, 0, -1)
		if len(items) == 0 {
			continue
		}
		kept := make([]string, 0, len(items))
		for _, item := range items {
			var rec struct {
				Timestamp int64 `json:"timestamp"`
			}
			if err := json.Unmarshal([]byte(item), &rec); err != nil {
				kept = append(kept, item)
				continue
			}
			if rec.Timestamp >= cutoff {
				kept = append(kept, item)
			}
		}
		if len(kept) != len(items) {
			s.store.LReplace(key, kept)
			swept++
			dropped += len(items) - len(kept)
		}
	}

	logger.InfoCF("retention", "sweep complete", map[string]any{
		"logs_touched": swept, "records_dropped": dropped,
	})
}
