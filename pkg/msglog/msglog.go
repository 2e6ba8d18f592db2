// Package msglog is the append-only message store behind the relay. Every
// conversation pair owns a log keyed by both node ids; a node's own
// traffic lives under its self-pair key. Records are immutable once
// written.
package msglog

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/platform"
	"github.com/amer-bots/amerlink/pkg/store"
)

const (
	sensitiveKeyPrefix = "sensitive_messages:"
	msgIDKeyPrefix     = "msg_id:"
)

// Record is one stored message.
type Record struct {
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_nickname"`
	Type         string `json:"message_type"`
	Content      string `json:"message_content"`
	Timestamp    int64  `json:"timestamp"`
	MsgID        string `json:"msg_id,omitempty"`
	PlatformFrom string `json:"platform_from"`
	IDFrom       string `json:"id_from"`
}

// SenderCount is one row of the active-sender ranking.
type SenderCount struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_nickname"`
	Count      int    `json:"message_count"`
}

// Log reads and writes message records in the shared store.
type Log struct {
	store *store.Store
}

func New(s *store.Store) *Log {
	return &Log{store: s}
}

// NewRecord builds a record for a message that just arrived at origin.
func NewRecord(origin platform.Node, senderID, senderName, msgType, content, msgID string) Record {
	return Record{
		SenderID:     senderID,
		SenderName:   senderName,
		Type:         msgType,
		Content:      content,
		Timestamp:    time.Now().Unix(),
		MsgID:        msgID,
		PlatformFrom: origin.Platform.String(),
		IDFrom:       origin.ID,
	}
}

func (l *Log) append(key string, rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		logger.ErrorCF("msglog", "record marshal failed", map[string]any{"key": key, "error": err.Error()})
		return
	}
	l.store.RPush(key, string(data))
}

// AppendLocal writes rec to the node's self-pair log.
func (l *Log) AppendLocal(n platform.Node, rec Record) {
	l.append(platform.LocalKey(n), rec)
}

// AppendPair writes rec under both direction keys of the (a, b) pair so
// either side's inbound scan finds it.
func (l *Log) AppendPair(a, b platform.Node, rec Record) {
	l.append(platform.PairKey(a, b), rec)
	l.append(platform.PairKey(b, a), rec)
}

// AppendSensitive writes rec to the review log of the origin node. The
// review log holds original, unredacted content.
func (l *Log) AppendSensitive(n platform.Node, rec Record) {
	l.append(sensitiveKeyPrefix+n.String(), rec)
}

// IndexByMsgID stores rec under its external message id for later lookup.
func (l *Log) IndexByMsgID(rec Record) {
	if rec.MsgID == "" {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	l.store.Set(msgIDKeyPrefix+rec.MsgID, string(data))
}

// GetByMsgID looks up a record by its external message id.
func (l *Log) GetByMsgID(msgID string) (Record, bool) {
	raw, found := l.store.Get(msgIDKeyPrefix + msgID)
	if !found {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, false
	}
	return rec, true
}

func (l *Log) readAll(key string) []Record {
	raw := l.store.LRange(key, 0, -1)
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Local returns the node's own log, newest first, paginated.
func (l *Log) Local(n platform.Node, page, pageSize int) ([]Record, int) {
	return paginate(sortByTimestamp(l.readAll(platform.LocalKey(n))), page, pageSize)
}

// Synced returns the union of the node's own log and every pair log ending
// in this node, with first-seen duplicate suppression, newest first.
func (l *Log) Synced(n platform.Node, page, pageSize int) ([]Record, int) {
	seen := map[string]bool{}
	var all []Record
	add := func(recs []Record) {
		for _, rec := range recs {
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if seen[string(data)] {
				continue
			}
			seen[string(data)] = true
			all = append(all, rec)
		}
	}
	add(l.readAll(platform.LocalKey(n)))
	for _, key := range l.store.Keys(platform.InboundPattern(n)) {
		if key == platform.LocalKey(n) {
			continue
		}
		add(l.readAll(key))
	}
	return paginate(sortByTimestamp(all), page, pageSize)
}

// Sensitive returns the node's review log, newest first.
func (l *Log) Sensitive(n platform.Node, page, pageSize int) ([]Record, int) {
	return paginate(sortByTimestamp(l.readAll(sensitiveKeyPrefix+n.String())), page, pageSize)
}

// ActiveSenders ranks senders in the node's own log by message count,
// highest first.
func (l *Log) ActiveSenders(n platform.Node, page, pageSize int) ([]SenderCount, int) {
	counts := map[string]*SenderCount{}
	for _, rec := range l.readAll(platform.LocalKey(n)) {
		sc, found := counts[rec.SenderID]
		if !found {
			sc = &SenderCount{SenderID: rec.SenderID, SenderName: rec.SenderName}
			counts[rec.SenderID] = sc
		}
		sc.Count++
		if rec.SenderName != "" {
			sc.SenderName = rec.SenderName
		}
	}
	ranked := make([]SenderCount, 0, len(counts))
	for _, sc := range counts {
		ranked = append(ranked, *sc)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].SenderID < ranked[j].SenderID
	})
	return paginateSenders(ranked, page, pageSize)
}

// Counts reports the node's aggregate message totals across views.
type Counts struct {
	Local     int `json:"local_count"`
	Synced    int `json:"sync_count"`
	Sensitive int `json:"sensitive_count"`
	Senders   int `json:"active_user_count"`
}

func (l *Log) CountsFor(n platform.Node) Counts {
	_, localTotal := l.Local(n, 1, 1)
	_, syncTotal := l.Synced(n, 1, 1)
	_, sensTotal := l.Sensitive(n, 1, 1)
	_, senderTotal := l.ActiveSenders(n, 1, 1)
	return Counts{Local: localTotal, Synced: syncTotal, Sensitive: sensTotal, Senders: senderTotal}
}

func sortByTimestamp(recs []Record) []Record {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Timestamp > recs[j].Timestamp })
	return recs
}

func paginate(recs []Record, page, pageSize int) ([]Record, int) {
	total := len(recs)
	start, end, ok := pageBounds(total, page, pageSize)
	if !ok {
		return nil, total
	}
	return recs[start:end], total
}

func paginateSenders(rows []SenderCount, page, pageSize int) ([]SenderCount, int) {
	total := len(rows)
	start, end, ok := pageBounds(total, page, pageSize)
	if !ok {
		return nil, total
	}
	return rows[start:end], total
}

func pageBounds(total, page, pageSize int) (int, int, bool) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	if start >= total {
		return 0, 0, false
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end, true
}
