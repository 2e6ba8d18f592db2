package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amer-bots/amerlink/pkg/binding"
	"github.com/amer-bots/amerlink/pkg/bus"
	"github.com/amer-bots/amerlink/pkg/channels"
	"github.com/amer-bots/amerlink/pkg/config"
	"github.com/amer-bots/amerlink/pkg/moderation"
	"github.com/amer-bots/amerlink/pkg/msglog"
	"github.com/amer-bots/amerlink/pkg/platform"
	"github.com/amer-bots/amerlink/pkg/store"
)

type fixture struct {
	srv      *Server
	log      *msglog.Log
	ledger   *moderation.Ledger
	registry *binding.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := binding.OpenDB(":memory:")
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.AdminUserID = "admin-1"
	cfg.Channels.QQ.Enabled = false
	cfg.Channels.Yunhu.Enabled = false
	cfg.Channels.Minecraft.Enabled = false

	memstore := store.New()
	registry := binding.NewRegistry(db)
	messageLog := msglog.New(memstore)
	ledger := moderation.NewLedger(memstore)
	manager := channels.NewManager(cfg.Channels, bus.NewMessageBus())

	return &fixture{
		srv:      NewServer(*cfg, registry, messageLog, ledger, memstore, manager),
		log:      messageLog,
		ledger:   ledger,
		registry: registry,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestBindingLifecycle(t *testing.T) {
	f := newFixture(t)

	pair := map[string]string{
		"platform_a": "QQ", "id_a": "g1",
		"platform_b": "YH", "id_b": "r1",
	}
	res := decode(t, f.do(t, http.MethodPost, "/api/v1/bindings", pair, nil))
	require.EqualValues(t, binding.StatusOK, res["status"])

	res = decode(t, f.do(t, http.MethodPost, "/api/v1/bindings", pair, nil))
	require.EqualValues(t, binding.StatusAlreadyBound, res["status"])

	res = decode(t, f.do(t, http.MethodGet, "/api/v1/bindings/QQ/g1", nil, nil))
	require.EqualValues(t, binding.StatusOK, res["status"])
	data := res["data"].(map[string]any)
	require.Len(t, data["YH"], 1)

	res = decode(t, f.do(t, http.MethodDelete, "/api/v1/bindings", pair, nil))
	require.EqualValues(t, binding.StatusOK, res["status"])

	res = decode(t, f.do(t, http.MethodDelete, "/api/v1/bindings", pair, nil))
	require.EqualValues(t, binding.StatusNotBound, res["status"])
}

func TestBindUnknownPlatform(t *testing.T) {
	f := newFixture(t)
	res := decode(t, f.do(t, http.MethodPost, "/api/v1/bindings", map[string]string{
		"platform_a": "telegram", "id_a": "x", "platform_b": "QQ", "id_b": "y",
	}, nil))
	require.EqualValues(t, binding.StatusUnknownPlatform, res["status"])
}

func TestBindRejectsMalformedID(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/bindings", map[string]string{
		"platform_a": "QQ", "id_a": "a:b", "platform_b": "YH", "id_b": "r1",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetSyncEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/v1/bindings", map[string]string{
		"platform_a": "QQ", "id_a": "g1", "platform_b": "YH", "id_b": "r1",
	}, nil)

	res := decode(t, f.do(t, http.MethodPut, "/api/v1/bindings/sync", map[string]any{
		"platform_a": "QQ", "id_a": "g1", "platform_b": "YH", "id_b": "r1",
		"sync": map[string]bool{"YH": false},
	}, nil))
	require.EqualValues(t, binding.StatusOK, res["status"])

	info := decode(t, f.do(t, http.MethodGet, "/api/v1/bindings/QQ/g1", nil, nil))
	edge := info["data"].(map[string]any)["YH"].([]any)[0].(map[string]any)
	require.False(t, edge["sync"].(bool))
	require.True(t, edge["binding_sync"].(bool))
}

func TestMessageViews(t *testing.T) {
	f := newFixture(t)
	n := platform.NewNode(platform.QQ, "g1")
	for i := 0; i < 3; i++ {
		f.log.AppendLocal(n, msglog.Record{
			SenderID: "u1", Content: fmt.Sprintf("m%d", i), Timestamp: int64(i),
			PlatformFrom: "QQ", IDFrom: "g1",
		})
	}

	res := decode(t, f.do(t, http.MethodGet, "/api/v1/messages/QQ/g1?view=local&page=1&page_size=2", nil, nil))
	require.EqualValues(t, 0, res["code"])
	require.EqualValues(t, 3, res["total_count"])
	require.Len(t, res["messages"], 2)

	res = decode(t, f.do(t, http.MethodGet, "/api/v1/messages/QQ/g1?view=active_users", nil, nil))
	require.Len(t, res["users"], 1)

	w := f.do(t, http.MethodGet, "/api/v1/messages/QQ/g1?view=bogus", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	res = decode(t, f.do(t, http.MethodGet, "/api/v1/messages/counts/QQ/g1", nil, nil))
	counts := res["counts"].(map[string]any)
	require.EqualValues(t, 3, counts["local_count"])
}

func TestBlacklistAdmin(t *testing.T) {
	f := newFixture(t)
	admin := map[string]string{"X-Admin-Id": "admin-1"}

	w := f.do(t, http.MethodPost, "/api/v1/blacklist", map[string]any{
		"user_id": "u1", "reason": "spam", "duration_seconds": 600,
	}, nil)
	require.Equal(t, http.StatusForbidden, w.Code, "ban requires admin header")

	w = f.do(t, http.MethodPost, "/api/v1/blacklist", map[string]any{
		"user_id": "u1", "reason": "spam", "duration_seconds": 600,
	}, admin)
	require.Equal(t, http.StatusOK, w.Code)

	res := decode(t, f.do(t, http.MethodGet, "/api/v1/blacklist/u1", nil, nil))
	require.True(t, res["is_banned"].(bool))

	res = decode(t, f.do(t, http.MethodGet, "/api/v1/blacklist", nil, nil))
	require.EqualValues(t, 1, res["total_count"])

	f.do(t, http.MethodDelete, "/api/v1/blacklist/u1", nil, admin)
	res = decode(t, f.do(t, http.MethodGet, "/api/v1/blacklist/u1", nil, nil))
	require.False(t, res["is_banned"].(bool))
}

func TestReportFlow(t *testing.T) {
	f := newFixture(t)

	rec := msglog.Record{
		SenderID: "spammer", Content: "junk", Timestamp: 1,
		MsgID: "m-1", PlatformFrom: "QQ", IDFrom: "g1",
	}
	f.log.IndexByMsgID(rec)

	report := func(reporter string) map[string]any {
		return decode(t, f.do(t, http.MethodPost, "/api/v1/report", map[string]string{
			"msg_id": "m-1", "reporter_id": reporter,
		}, nil))
	}

	require.Equal(t, "report recorded", report("a")["msg"])
	require.Equal(t, "already reported", report("a")["msg"])
	require.Equal(t, "report recorded", report("b")["msg"])
	require.Equal(t, "sender banned", report("c")["msg"])

	require.True(t, f.ledger.Status("spammer").Banned)
}

func TestReportUnknownMessage(t *testing.T) {
	f := newFixture(t)
	res := decode(t, f.do(t, http.MethodPost, "/api/v1/report", map[string]string{
		"msg_id": "nope", "reporter_id": "a",
	}, nil))
	require.EqualValues(t, 1, res["code"])
}
