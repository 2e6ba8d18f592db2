// Package gateway is the bridge's HTTP surface: binding management,
// message retrieval views, blacklist administration, the report flow, the
// Yunhu webhook, the Minecraft websocket endpoint, and Prometheus metrics.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amer-bots/amerlink/pkg/binding"
	"github.com/amer-bots/amerlink/pkg/channels"
	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/logger"
	"github.com/amer-bots/amerlink/pkg/moderation"
	"github.com/amer-bots/amerlink/pkg/msglog"
	"github.com/amer-bots/amerlink/pkg/platform"
	"github.com/amer-bots/amerlink/pkg/store"
	"github.com/amer-bots/amerlink/pkg/utils"
)

const (
	reportCountPrefix = "report_count:"
	reportUsersPrefix = "report_users:"
)

// Server wires the HTTP handlers to the core services.
type Server struct {
	cfg      config.Config
	registry *binding.Registry
	log      *msglog.Log
	ledger   *moderation.Ledger
	store    *store.Store
	manager  *channels.Manager
	http     *http.Server
}

func NewServer(cfg config.Config, registry *binding.Registry, log *msglog.Log, ledger *moderation.Ledger, s *store.Store, manager *channels.Manager) *Server {
	srv := &Server{
		cfg:      cfg,
		registry: registry,
		log:      log,
		ledger:   ledger,
		store:    s,
		manager:  manager,
	}
	srv.http = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/bindings", s.handleBind)
		r.Delete("/bindings", s.handleUnbind)
		r.Put("/bindings/sync", s.handleSetSync)
		r.Get("/bindings/{platform}/{id}", s.handleGetInfo)
		r.Get("/bindings/{platform}/{id}/raw", s.handleListRaw)
		r.Delete("/bindings/{platform}/{id}", s.handleUnbindAll)
		r.Put("/bindings/{platform}/{id}/sync", s.handleSetAllSync)

		r.Get("/messages/counts/{platform}/{id}", s.handleCounts)
		r.Get("/messages/{platform}/{id}", s.handleMessages)

		r.Get("/blacklist", s.handleBanList)
		r.Get("/blacklist/{userID}", s.handleBanStatus)
		r.With(s.requireAdmin).Post("/blacklist", s.handleBan)
		r.With(s.requireAdmin).Delete("/blacklist/{userID}", s.handleUnban)

		r.Post("/report", s.handleReport)
	})

	r.Handle("/metrics", promhttp.Handler())

	if yh := s.manager.Yunhu(); yh != nil && s.cfg.Channels.Yunhu.WebhookPath != "" {
		r.Post(s.cfg.Channels.Yunhu.WebhookPath, yh.WebhookHandler())
	}
	if mc := s.manager.Minecraft(); mc != nil && s.cfg.Channels.Minecraft.WSPath != "" {
		r.Get(s.cfg.Channels.Minecraft.WSPath, mc.WSHandler())
	}
	return r
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.InfoCF("gateway", "http server listening", map[string]any{"addr": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the routed mux for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.ErrorCF("gateway", "response encode failed", map[string]any{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, httpStatus int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]any{"status": binding.StatusInternal, "msg": msg})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminUserID != "" && r.Header.Get("X-Admin-Id") != s.cfg.AdminUserID {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func nodeFromURL(r *http.Request) (platform.Node, bool) {
	p, valid := platform.Parse(chi.URLParam(r, "platform"))
	if !valid {
		return platform.Node{}, false
	}
	return platform.NewNode(p, chi.URLParam(r, "id")), true
}

type pairRequest struct {
	PlatformA string `json:"platform_a"`
	IDA       string `json:"id_a"`
	PlatformB string `json:"platform_b"`
	IDB       string `json:"id_b"`
}

func (req pairRequest) nodes() (platform.Node, platform.Node, bool) {
	pa, valid := platform.Parse(req.PlatformA)
	if !valid {
		return platform.Node{}, platform.Node{}, false
	}
	pb, valid := platform.Parse(req.PlatformB)
	if !valid {
		return platform.Node{}, platform.Node{}, false
	}
	return platform.NewNode(pa, req.IDA), platform.NewNode(pb, req.IDB), true
}

func unknownPlatform(w http.ResponseWriter) {
	writeJSON(w, binding.Result{Status: binding.StatusUnknownPlatform, Msg: "unknown platform"})
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	a, b, valid := req.nodes()
	if !valid {
		unknownPlatform(w)
		return
	}
	if err := utils.ValidateNodeID(a.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := utils.ValidateNodeID(b.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, s.registry.Bind(r.Context(), a, b))
}

func (s *Server) handleUnbind(w http.ResponseWriter, r *http.Request) {
	var req pairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	a, b, valid := req.nodes()
	if !valid {
		unknownPlatform(w)
		return
	}
	writeJSON(w, s.registry.Unbind(r.Context(), a, b))
}

func (s *Server) handleUnbindAll(w http.ResponseWriter, r *http.Request) {
	n, valid := nodeFromURL(r)
	if !valid {
		unknownPlatform(w)
		return
	}
	writeJSON(w, s.registry.UnbindAll(r.Context(), n))
}

func (s *Server) handleGetInfo(w http.ResponseWriter, r *http.Request) {
	n, valid := nodeFromURL(r)
	if !valid {
		unknownPlatform(w)
		return
	}
	writeJSON(w, s.registry.GetInfo(r.Context(), n))
}

func (s *Server) handleListRaw(w http.ResponseWriter, r *http.Request) {
	n, valid := nodeFromURL(r)
	if !valid {
		unknownPlatform(w)
		return
	}
	writeJSON(w, s.registry.ListRaw(r.Context(), n))
}

type setSyncRequest struct {
	pairRequest
	Sync map[string]bool `json:"sync"`
}

func parseSyncData(raw map[string]bool) (binding.SyncData, bool) {
	data := binding.SyncData{}
	for tag, v := range raw {
		p, valid := platform.Parse(tag)
		if !valid {
			return nil, false
		}
		data[p] = v
	}
	return data, true
}

func (s *Server) handleSetSync(w http.ResponseWriter, r *http.Request) {
	var req setSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	a, b, valid := req.nodes()
	if !valid {
		unknownPlatform(w)
		return
	}
	data, valid := parseSyncData(req.Sync)
	if !valid {
		unknownPlatform(w)
		return
	}
	writeJSON(w, s.registry.SetSync(r.Context(), a, b, data))
}

func (s *Server) handleSetAllSync(w http.ResponseWriter, r *http.Request) {
	n, valid := nodeFromURL(r)
	if !valid {
		unknownPlatform(w)
		return
	}
	var req struct {
		Sync map[string]bool `json:"sync"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	data, valid := parseSyncData(req.Sync)
	if !valid {
		unknownPlatform(w)
		return
	}
	writeJSON(w, s.registry.SetAllSync(r.Context(), n, data))
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 {
		pageSize = 10
	}
	return page, pageSize
}

type messagePage struct {
	Code     int                  `json:"code"`
	Msg      string               `json:"msg"`
	Total    int                  `json:"total_count"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
	Messages []msglog.Record      `json:"messages,omitempty"`
	Users    []msglog.SenderCount `json:"users,omitempty"`
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	n, valid := nodeFromURL(r)
	if !valid {
		unknownPlatform(w)
		return
	}
	page, pageSize := pageParams(r)
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "local"
	}

	resp := messagePage{Code: 0, Msg: "ok", Page: page, PageSize: pageSize}
	switch view {
	case "local":
		resp.Messages, resp.Total = s.log.Local(n, page, pageSize)
	case "sync":
		resp.Messages, resp.Total = s.log.Synced(n, page, pageSize)
	case "sensitive":
		resp.Messages, resp.Total = s.log.Sensitive(n, page, pageSize)
	case "active_users":
		resp.Users, resp.Total = s.log.ActiveSenders(n, page, pageSize)
	default:
		writeError(w, http.StatusBadRequest, "unknown view "+view)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	n, valid := nodeFromURL(r)
	if !valid {
		unknownPlatform(w)
		return
	}
	counts := s.log.CountsFor(n)
	writeJSON(w, map[string]any{"code": 0, "msg": "ok", "counts": counts})
}

func (s *Server) handleBanList(w http.ResponseWriter, r *http.Request) {
	page, pageSize := pageParams(r)
	entries, total := s.ledger.List(page, pageSize)
	writeJSON(w, map[string]any{
		"code": 0, "msg": "ok",
		"total_count": total, "page": page, "page_size": pageSize,
		"blacklist": entries,
	})
}

func (s *Server) handleBanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.ledger.Status(chi.URLParam(r, "userID")))
}

func (s *Server) handleBan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID          string `json:"user_id"`
		Reason          string `json:"reason"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	s.ledger.Ban(req.UserID, req.Reason, time.Duration(req.DurationSeconds)*time.Second)
	writeJSON(w, map[string]any{"code": 0, "msg": "banned"})
}

func (s *Server) handleUnban(w http.ResponseWriter, r *http.Request) {
	s.ledger.Unban(chi.URLParam(r, "userID"))
	writeJSON(w, map[string]any{"code": 0, "msg": "unbanned"})
}

// handleReport lets users flag a relayed message by its external id. Each
// reporter counts once; hitting the configured threshold bans the
// message's sender for the configured span.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MsgID      string `json:"msg_id"`
		ReporterID string `json:"reporter_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MsgID == "" || req.ReporterID == "" {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}

	rec, found := s.log.GetByMsgID(req.MsgID)
	if !found {
		writeJSON(w, map[string]any{"code": 1, "msg": "message not found"})
		return
	}

	usersKey := reportUsersPrefix + req.MsgID
	for _, reporter := range s.store.LRange(usersKey, 0, -1) {
		if reporter == req.ReporterID {
			writeJSON(w, map[string]any{"code": 0, "msg": "already reported"})
			return
		}
	}
	s.store.RPush(usersKey, req.ReporterID)
	count := s.store.Incr(reportCountPrefix + req.MsgID)

	if int(count) >= s.cfg.Moderation.ReportThreshold {
		s.ledger.Ban(rec.SenderID, "reported by multiple users",
			time.Duration(s.cfg.Moderation.ReportBanSeconds)*time.Second)
		logger.InfoCF("gateway", "report threshold reached", map[string]any{
			"msg_id": req.MsgID, "sender": rec.SenderID, "reports": count,
		})
		writeJSON(w, map[string]any{"code": 0, "msg": "sender banned", "reports": count})
		return
	}
	writeJSON(w, map[string]any{"code": 0, "msg": "report recorded", "reports": count})
}
