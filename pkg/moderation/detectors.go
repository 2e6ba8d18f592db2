package moderation

import (
	"strconv"
	"time"
	"unicode"

	"github.com/amer-bots/amerlink/pkg/store"
)

const frequencyKeyPrefix = "message_frequency:"

// FrequencyDetector counts messages per sender inside a rolling window and
// trips once the count passes the threshold. The counter key expires with
// the window, so a quiet sender resets naturally.
type FrequencyDetector struct {
	store     *store.Store
	threshold int
	window    time.Duration
}

func NewFrequencyDetector(s *store.Store, threshold int, window time.Duration) *FrequencyDetector {
	return &FrequencyDetector{store: s, threshold: threshold, window: window}
}

// Record counts one message from the sender and reports whether the
// sender has now exceeded the window threshold.
func (d *FrequencyDetector) Record(p string, userID string) bool {
	key := frequencyKeyPrefix + p + ":" + userID
	count := d.store.Incr(key)
	if count == 1 {
		d.store.Expire(key, d.window)
	}
	return int(count) > d.threshold
}

// Count returns the sender's current window count.
func (d *FrequencyDetector) Count(p string, userID string) int {
	raw, found := d.store.Get(frequencyKeyPrefix + p + ":" + userID)
	if !found {
		return 0
	}
	n, _ := strconv.Atoi(raw)
	return n
}

// Repetitive reports whether content carries a run of at least threshold
// identical characters, or at least threshold consecutive whitespace
// characters of any mix. Runs are measured in runes so wide characters
// count once each.
func Repetitive(content string, threshold int) bool {
	if threshold < 2 {
		threshold = 2
	}
	var prev rune
	runLen := 0
	spaceLen := 0
	for _, r := range content {
		if unicode.IsSpace(r) {
			spaceLen++
			if spaceLen >= threshold {
				return true
			}
		} else {
			spaceLen = 0
		}
		if r == prev && runLen > 0 {
			runLen++
		} else {
			prev = r
			runLen = 1
		}
		if runLen >= threshold {
			return true
		}
	}
	return false
}
