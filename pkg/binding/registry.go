// Package binding owns the three mirrored binding tables, one per chat
// surface. Every edge is stored twice, once in each endpoint's row, and the
// registry keeps the two copies consistent by writing both inside a single
// transaction.
package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/platform"
)

// Status codes shared with the HTTP API and the original wire contract.
const (
	StatusOK              = 0
	StatusUnknownPlatform = 3
	StatusAlreadyBound    = 4
	StatusNotBound        = 5
	StatusInternal        = -1
)

var (
	errAlreadyBound = errors.New("binding already exists")
	errNotBound     = errors.New("binding does not exist")
)

// Result is the structured outcome of a registry operation. Expected
// conditions (already bound, not bound, unknown platform) travel here, not
// as Go errors.
type Result struct {
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

func ok(msg string) Result       { return Result{Status: StatusOK, Msg: msg} }
func internal(msg string) Result { return Result{Status: StatusInternal, Msg: msg} }

// EdgeInfo is one bound peer as reported by GetInfo: the node's own flag
// plus the peer's mirrored flag, so callers can resolve the effective
// direction themselves.
type EdgeInfo struct {
	ID          string `json:"id"`
	Sync        bool   `json:"sync"`
	BindingSync bool   `json:"binding_sync"`
}

// Info is the GetInfo response. Data is keyed by peer platform tag.
type Info struct {
	Result
	Data map[string][]EdgeInfo `json:"data,omitempty"`
}

// Raw is the ListRaw response: the stored row as-is, for diagnostics.
type Raw struct {
	Result
	Platform string              `json:"platform"`
	Data     map[string]EdgeList `json:"data,omitempty"`
}

// SyncData carries the per-platform flag values a setSync call applies.
// The entry keyed by the peer's platform updates the caller's own flag;
// the entry keyed by the caller's platform propagates to the peer's mirror.
type SyncData map[platform.Platform]bool

// NotifyFunc delivers a plain-text notice to a node, best effort.
type NotifyFunc func(ctx context.Context, p platform.Platform, targetID, content string) error

// Registry manages the mirrored binding tables. Mutations are serialized
// behind a mutex so two concurrent writes to the same edge cannot
// interleave their mirror updates.
type Registry struct {
	db     *gorm.DB
	mu     sync.Mutex
	notify NotifyFunc
}

// Option configures a Registry.
type Option func(*Registry)

// WithNotifier installs the transport used for unbind notices.
func WithNotifier(f NotifyFunc) Option {
	return func(r *Registry) { r.notify = f }
}

// OpenDB opens (and migrates) the sqlite binding database at path.
// Use ":memory:" for an ephemeral database.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open binding database: %w", err)
	}
	if err := db.AutoMigrate(&QQRecord{}, &YHRecord{}, &MCRecord{}); err != nil {
		return nil, fmt.Errorf("migrate binding tables: %w", err)
	}
	return db, nil
}

func NewRegistry(db *gorm.DB, opts ...Option) *Registry {
	r := &Registry{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// row is the platform-neutral view of one table row.
type row struct {
	exists bool
	edges  map[platform.Platform]EdgeList
}

func loadRow(tx *gorm.DB, p platform.Platform, id string) (row, error) {
	r := row{edges: map[platform.Platform]EdgeList{}}
	for _, o := range p.Others() {
		r.edges[o] = EdgeList{}
	}

	var err error
	switch p {
	case platform.QQ:
		var rec QQRecord
		err = tx.First(&rec, "qq_group_id = ?", id).Error
		if err == nil {
			r.edges[platform.Yunhu] = rec.YHGroups
			r.edges[platform.Minecraft] = rec.MCServers
		}
	case platform.Yunhu:
		var rec YHRecord
		err = tx.First(&rec, "yh_group_id = ?", id).Error
		if err == nil {
			r.edges[platform.QQ] = rec.QQGroups
			r.edges[platform.Minecraft] = rec.MCServers
		}
	case platform.Minecraft:
		var rec MCRecord
		err = tx.First(&rec, "mc_server_id = ?", id).Error
		if err == nil {
			r.edges[platform.QQ] = rec.QQGroups
			r.edges[platform.Yunhu] = rec.YHGroups
		}
	default:
		return r, fmt.Errorf("unknown platform %d", p)
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r, nil
	}
	if err != nil {
		return r, err
	}
	r.exists = true
	return r, nil
}

func saveRow(tx *gorm.DB, p platform.Platform, id string, r row) error {
	switch p {
	case platform.QQ:
		rec := QQRecord{
			GroupID:   id,
			YHGroups:  r.edges[platform.Yunhu],
			MCServers: r.edges[platform.Minecraft],
		}
		if r.exists {
			return tx.Model(&QQRecord{GroupID: id}).Updates(map[string]any{
				"yh_group_ids":  rec.YHGroups,
				"mc_server_ids": rec.MCServers,
			}).Error
		}
		return tx.Create(&rec).Error
	case platform.Yunhu:
		rec := YHRecord{
			GroupID:   id,
			QQGroups:  r.edges[platform.QQ],
			MCServers: r.edges[platform.Minecraft],
		}
		if r.exists {
			return tx.Model(&YHRecord{GroupID: id}).Updates(map[string]any{
				"qq_group_ids":  rec.QQGroups,
				"mc_server_ids": rec.MCServers,
			}).Error
		}
		return tx.Create(&rec).Error
	case platform.Minecraft:
		rec := MCRecord{
			ServerID: id,
			QQGroups: r.edges[platform.QQ],
			YHGroups: r.edges[platform.Yunhu],
		}
		if r.exists {
			return tx.Model(&MCRecord{ServerID: id}).Updates(map[string]any{
				"qq_group_ids": rec.QQGroups,
				"yh_group_ids": rec.YHGroups,
			}).Error
		}
		return tx.Create(&rec).Error
	default:
		return fmt.Errorf("unknown platform %d", p)
	}
}

func deleteRow(tx *gorm.DB, p platform.Platform, id string) error {
	switch p {
	case platform.QQ:
		return tx.Delete(&QQRecord{GroupID: id}).Error
	case platform.Yunhu:
		return tx.Delete(&YHRecord{GroupID: id}).Error
	case platform.Minecraft:
		return tx.Delete(&MCRecord{ServerID: id}).Error
	default:
		return fmt.Errorf("unknown platform %d", p)
	}
}

func validPair(a, b platform.Node) bool {
	return a.Platform.Valid() && b.Platform.Valid() && a.Platform != b.Platform
}

// Bind creates the edge a↔b with both forwarding flags on. Binding an edge
// that already exists is rejected with StatusAlreadyBound rather than
// upserted, so an existing custom sync flag is never silently reset.
func (r *Registry) Bind(ctx context.Context, a, b platform.Node) Result {
	if !validPair(a, b) {
		return Result{Status: StatusUnknownPlatform, Msg: "unknown platform pair"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rowA, err := loadRow(tx, a.Platform, a.ID)
		if err != nil {
			return err
		}
		if _, found := rowA.edges[b.Platform].Find(b.ID); found {
			return errAlreadyBound
		}
		rowA.edges[b.Platform] = append(rowA.edges[b.Platform], Edge{ID: b.ID, Sync: true})
		if err := saveRow(tx, a.Platform, a.ID, rowA); err != nil {
			return err
		}

		rowB, err := loadRow(tx, b.Platform, b.ID)
		if err != nil {
			return err
		}
		if _, found := rowB.edges[a.Platform].Find(a.ID); !found {
			rowB.edges[a.Platform] = append(rowB.edges[a.Platform], Edge{ID: a.ID, Sync: true})
		}
		return saveRow(tx, b.Platform, b.ID, rowB)
	})
	switch {
	case errors.Is(err, errAlreadyBound):
		return Result{Status: StatusAlreadyBound, Msg: "binding already exists"}
	case err != nil:
		logger.ErrorCF("binding", "bind failed", map[string]any{
			"a": a.String(), "b": b.String(), "error": err.Error(),
		})
		return internal("bind failed")
	}
	logger.DebugCF("binding", "edge created", map[string]any{"a": a.String(), "b": b.String()})
	return ok("binding created")
}

// Unbind removes the edge a↔b from both tables.
func (r *Registry) Unbind(ctx context.Context, a, b platform.Node) Result {
	if !validPair(a, b) {
		return Result{Status: StatusUnknownPlatform, Msg: "unknown platform pair"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rowA, err := loadRow(tx, a.Platform, a.ID)
		if err != nil {
			return err
		}
		if _, found := rowA.edges[b.Platform].Find(b.ID); !found {
			return errNotBound
		}
		rowA.edges[b.Platform] = rowA.edges[b.Platform].Without(b.ID)
		if err := saveRow(tx, a.Platform, a.ID, rowA); err != nil {
			return err
		}

		rowB, err := loadRow(tx, b.Platform, b.ID)
		if err != nil {
			return err
		}
		rowB.edges[a.Platform] = rowB.edges[a.Platform].Without(a.ID)
		if !rowB.exists {
			return nil
		}
		return saveRow(tx, b.Platform, b.ID, rowB)
	})
	switch {
	case errors.Is(err, errNotBound):
		return Result{Status: StatusNotBound, Msg: "binding does not exist"}
	case err != nil:
		logger.ErrorCF("binding", "unbind failed", map[string]any{
			"a": a.String(), "b": b.String(), "error": err.Error(),
		})
		return internal("unbind failed")
	}
	return ok("binding removed")
}

// UnbindAll removes every edge referencing a from every table and deletes
// a's row. Each removed peer gets a best-effort notice; a notification
// failure never aborts the remaining removals.
func (r *Registry) UnbindAll(ctx context.Context, a platform.Node) Result {
	if !a.Platform.Valid() {
		return Result{Status: StatusUnknownPlatform, Msg: "unknown platform"}
	}
	r.mu.Lock()
	rowA, err := loadRow(r.db.WithContext(ctx), a.Platform, a.ID)
	r.mu.Unlock()
	if err != nil {
		logger.ErrorCF("binding", "unbind-all read failed", map[string]any{
			"node": a.String(), "error": err.Error(),
		})
		return internal("unbind failed")
	}

	for p, edges := range rowA.edges {
		for _, e := range edges {
			r.notifyPeer(ctx, p, e.ID, fmt.Sprintf(
				"The binding with %s chat %s has been removed.", a.Platform, a.ID))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for p, edges := range rowA.edges {
			for _, e := range edges {
				rowB, err := loadRow(tx, p, e.ID)
				if err != nil {
					return err
				}
				if !rowB.exists {
					continue
				}
				rowB.edges[a.Platform] = rowB.edges[a.Platform].Without(a.ID)
				if err := saveRow(tx, p, e.ID, rowB); err != nil {
					return err
				}
			}
		}
		return deleteRow(tx, a.Platform, a.ID)
	})
	if err != nil {
		logger.ErrorCF("binding", "unbind-all failed", map[string]any{
			"node": a.String(), "error": err.Error(),
		})
		return internal("unbind failed")
	}
	return ok("all bindings removed")
}

func (r *Registry) notifyPeer(ctx context.Context, p platform.Platform, id, content string) {
	if r.notify == nil {
		return
	}
	if err := r.notify(ctx, p, id, content); err != nil {
		logger.WarnCF("binding", "unbind notice not delivered", map[string]any{
			"platform": p.String(), "target": id, "error": err.Error(),
		})
	}
}

// GetInfo returns every bound peer of a with both raw flags: the node's own
// sync flag and the peer's mirrored binding_sync flag, read fresh from the
// peer's table.
func (r *Registry) GetInfo(ctx context.Context, a platform.Node) Info {
	if !a.Platform.Valid() {
		return Info{Result: Result{Status: StatusUnknownPlatform, Msg: "unknown platform"}}
	}
	db := r.db.WithContext(ctx)
	rowA, err := loadRow(db, a.Platform, a.ID)
	if err != nil {
		logger.ErrorCF("binding", "info query failed", map[string]any{
			"node": a.String(), "error": err.Error(),
		})
		return Info{Result: internal("query failed")}
	}
	if !rowA.exists {
		return Info{Result: Result{Status: StatusNotBound, Msg: "no bindings"}}
	}

	data := make(map[string][]EdgeInfo)
	for p, edges := range rowA.edges {
		infos := make([]EdgeInfo, 0, len(edges))
		for _, e := range edges {
			info := EdgeInfo{ID: e.ID, Sync: e.Sync, BindingSync: e.Sync}
			if peerFlag, err := r.baseSync(db, platform.NewNode(p, e.ID), a); err == nil && peerFlag != nil {
				info.BindingSync = *peerFlag
			}
			infos = append(infos, info)
		}
		data[p.String()] = infos
	}
	return Info{Result: ok("query ok"), Data: data}
}

// baseSync reads b's own stored flag for its edge toward a, or nil when the
// mirror record is missing.
func (r *Registry) baseSync(db *gorm.DB, b, a platform.Node) (*bool, error) {
	rowB, err := loadRow(db, b.Platform, b.ID)
	if err != nil {
		return nil, err
	}
	if e, found := rowB.edges[a.Platform].Find(a.ID); found {
		v := e.Sync
		return &v, nil
	}
	return nil, nil
}

// SetSync updates a's stored flag for the edge toward b and propagates the
// matching value to b's mirrored flag. Propagation happens exactly once:
// the recursive update carries the caller's platform so the peer side does
// not bounce the change back.
func (r *Registry) SetSync(ctx context.Context, a, b platform.Node, data SyncData) Result {
	if !validPair(a, b) {
		return Result{Status: StatusUnknownPlatform, Msg: "unknown platform pair"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setSyncTx(tx, a, b, data, 0)
	})
	if err != nil {
		logger.ErrorCF("binding", "set-sync failed", map[string]any{
			"a": a.String(), "b": b.String(), "error": err.Error(),
		})
		return internal("set sync failed")
	}
	return ok("sync updated")
}

// setSyncTx applies the flag to a's edge toward b, then mirrors onto b
// unless the update already came from b's side (calledFrom names the
// platform that initiated the propagation; zero means this is the root
// call).
func setSyncTx(tx *gorm.DB, a, b platform.Node, data SyncData, calledFrom platform.Platform) error {
	rowA, err := loadRow(tx, a.Platform, a.ID)
	if err != nil {
		return err
	}
	if rowA.exists {
		if v, found := data[b.Platform]; found {
			edges := rowA.edges[b.Platform]
			for i := range edges {
				if edges[i].ID == b.ID {
					edges[i].Sync = v
					break
				}
			}
			rowA.edges[b.Platform] = edges
			if err := saveRow(tx, a.Platform, a.ID, rowA); err != nil {
				return err
			}
		}
	}
	if calledFrom != b.Platform {
		return setSyncTx(tx, b, a, data, a.Platform)
	}
	return nil
}

// SetAllSync applies the per-platform values in data to every edge of a,
// mirroring each change onto the peer's table.
func (r *Registry) SetAllSync(ctx context.Context, a platform.Node, data SyncData) Result {
	if !a.Platform.Valid() {
		return Result{Status: StatusUnknownPlatform, Msg: "unknown platform"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rowA, err := loadRow(tx, a.Platform, a.ID)
		if err != nil {
			return err
		}
		if !rowA.exists {
			return errNotBound
		}
		for p := range rowA.edges {
			v, found := data[p]
			if !found {
				continue
			}
			edges := rowA.edges[p]
			for i := range edges {
				edges[i].Sync = v
			}
			rowA.edges[p] = edges
		}
		if err := saveRow(tx, a.Platform, a.ID, rowA); err != nil {
			return err
		}
		for p, edges := range rowA.edges {
			for _, e := range edges {
				if err := setSyncTx(tx, platform.NewNode(p, e.ID), a, data, a.Platform); err != nil {
					return err
				}
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, errNotBound):
		return Result{Status: StatusNotBound, Msg: "no bindings"}
	case err != nil:
		logger.ErrorCF("binding", "set-all-sync failed", map[string]any{
			"node": a.String(), "error": err.Error(),
		})
		return internal("set sync failed")
	}
	return ok("sync updated")
}

// ListRaw returns the stored row for diagnostics, exactly as persisted.
func (r *Registry) ListRaw(ctx context.Context, a platform.Node) Raw {
	if !a.Platform.Valid() {
		return Raw{Result: Result{Status: StatusUnknownPlatform, Msg: "unknown platform"}}
	}
	rowA, err := loadRow(r.db.WithContext(ctx), a.Platform, a.ID)
	if err != nil {
		return Raw{Result: internal("query failed"), Platform: a.Platform.String()}
	}
	if !rowA.exists {
		return Raw{
			Result:   Result{Status: StatusNotBound, Msg: "no bindings"},
			Platform: a.Platform.String(),
		}
	}
	data := make(map[string]EdgeList, len(rowA.edges))
	for p, edges := range rowA.edges {
		data[p.String()] = edges
	}
	return Raw{Result: ok("query ok"), Platform: a.Platform.String(), Data: data}
}
