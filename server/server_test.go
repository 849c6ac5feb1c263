package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/promanage/am"
	"github.com/teranos/promanage/errors"
	"github.com/teranos/promanage/internal/util"
	"github.com/teranos/promanage/item"
	"github.com/teranos/promanage/schedule"
)

var testNow = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func defaultConfig(t *testing.T) *am.Config {
	t.Helper()
	v := viper.New()
	am.SetDefaults(v)
	cfg, err := am.LoadWithViper(v)
	require.NoError(t, err)
	return cfg
}

func workItem(value string, deadline int) item.WorkItem {
	return item.WorkItem{
		Title:    "item",
		Deadline: util.Ptr(deadline),
		Value:    decimal.NewNullDecimal(decimal.RequireFromString(value)),
	}
}

type fixture struct {
	server  *Server
	store   *schedule.MemoryStore
	handler http.Handler
}

func newFixture(t *testing.T, cfg *am.Config, items ...item.WorkItem) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = defaultConfig(t)
	}
	log := zaptest.NewLogger(t).Sugar()
	store := schedule.NewMemoryStore(items...)
	svc := schedule.NewServiceWithClock(store, schedule.DefaultSettings(), func() time.Time { return testNow }, log)
	srv := New(cfg, store, svc, log)
	srv.memStats = func() (*MemoryStatus, error) {
		return &MemoryStatus{TotalBytes: 1 << 30, AvailableBytes: 1 << 29}, nil
	}
	t.Cleanup(func() { srv.Stop(context.Background()) })
	return &fixture{server: srv, store: store, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func selectedIDs(resp ScheduleResponse) []int64 {
	out := make([]int64, len(resp.SelectedProjects))
	for i, w := range resp.SelectedProjects {
		out[i] = w.ID
	}
	return out
}

func TestHandleSchedule(t *testing.T) {
	t.Run("runs and persists", func(t *testing.T) {
		f := newFixture(t, nil, workItem("100", 2), workItem("200", 1), workItem("50", 2))

		rec := f.do(t, http.MethodPost, "/api/projects/schedule", "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[ScheduleResponse](t, rec)
		assert.Equal(t, []int64{2, 1}, selectedIDs(resp))
		assert.Equal(t, "300", resp.TotalProfit.String())
		assert.Equal(t, 5, resp.Capacity)
		assert.NotEmpty(t, resp.RunID)
		assert.Contains(t, rec.Body.String(), `"totalProfit":"300"`)

		items, err := f.store.LoadAll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, item.StatusRejected, items[2].Status)
	})

	t.Run("empty store gives an empty list", func(t *testing.T) {
		f := newFixture(t, nil)

		rec := f.do(t, http.MethodPost, "/api/projects/schedule", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"selectedProjects":[]`)
		assert.Contains(t, rec.Body.String(), `"totalProfit":"0"`)
	})

	t.Run("dry run does not persist", func(t *testing.T) {
		f := newFixture(t, nil, workItem("10", 1))

		rec := f.do(t, http.MethodPost, "/api/projects/schedule?dry_run=true", "")
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode[ScheduleResponse](t, rec)
		assert.True(t, resp.DryRun)
		assert.Len(t, resp.SelectedProjects, 1)
		assert.Equal(t, 0, f.store.SaveCalls)
	})

	t.Run("storage failure is a 500 without a schedule", func(t *testing.T) {
		f := newFixture(t, nil, workItem("10", 1))
		f.store.SaveErr = errors.New("disk full")

		rec := f.do(t, http.MethodPost, "/api/projects/schedule", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "selectedProjects")
		assert.NotContains(t, rec.Body.String(), "disk full")
	})

	t.Run("wrong method", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodGet, "/api/projects/schedule", "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("rate limited", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Server.ScheduleRunsPerMinute = 1
		f := newFixture(t, cfg, workItem("10", 1))

		assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/projects/schedule", "").Code)
		assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/projects/schedule", "").Code)
		// previews are not limited
		assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/projects/schedule?dry_run=1", "").Code)
		assert.Equal(t, 1, f.store.SaveCalls)
	})
}

func TestHandleAdd(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"full record", `{"title":"Website","deadline":2,"value":"1200.50","createdAt":"2026-10-01"}`, http.StatusCreated},
		{"numeric value", `{"title":"App","deadline":1,"value":99.5}`, http.StatusCreated},
		{"missing deadline and value is accepted", `{"title":"Later"}`, http.StatusCreated},
		{"missing title", `{"deadline":2,"value":"10"}`, http.StatusBadRequest},
		{"negative value", `{"title":"x","deadline":2,"value":"-10"}`, http.StatusBadRequest},
		{"malformed json", `{"title":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			rec := f.do(t, http.MethodPost, "/api/projects/add", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}

	t.Run("status is forced to pending", func(t *testing.T) {
		f := newFixture(t, nil)
		rec := f.do(t, http.MethodPost, "/api/projects/add", `{"title":"x","deadline":1,"value":"5","status":"SCHEDULED"}`)
		require.Equal(t, http.StatusCreated, rec.Code)

		created := decode[item.WorkItem](t, rec)
		assert.Equal(t, item.StatusPending, created.Status)
		assert.NotZero(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
	})
}

func TestHandleAll(t *testing.T) {
	f := newFixture(t, nil, workItem("1", 1), workItem("2", 2))

	rec := f.do(t, http.MethodGet, "/api/projects/all", "")
	require.Equal(t, http.StatusOK, rec.Code)

	items := decode[[]item.WorkItem](t, rec)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ID)
	assert.Equal(t, item.StatusPending, items[0].Status)

	f.store.LoadErr = errors.New("gone")
	assert.Equal(t, http.StatusInternalServerError, f.do(t, http.MethodGet, "/api/projects/all", "").Code)
}

func TestHandleRuns(t *testing.T) {
	f := newFixture(t, nil, workItem("1", 1))
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/projects/schedule", "").Code)
	}

	rec := f.do(t, http.MethodGet, "/api/projects/runs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]schedule.Run](t, rec)
	assert.Len(t, runs, 2)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/projects/runs?limit=zero", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/projects/runs?limit=0", "").Code)
}

func TestHandleMaxProfit(t *testing.T) {
	var items []item.WorkItem
	for _, v := range []string{"10", "20", "30", "40", "50", "60"} {
		items = append(items, workItem(v, 6))
	}
	f := newFixture(t, nil, items...)

	rec := f.do(t, http.MethodGet, "/api/projects/max-profit", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ScheduleResponse](t, rec)
	assert.Len(t, resp.SelectedProjects, 6)
	assert.Equal(t, "210", resp.TotalProfit.String())
	assert.Equal(t, 6, resp.Capacity)
	assert.Equal(t, 0, f.store.SaveCalls)
}

func TestHandleHealth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "running", health.State)
	require.NotNil(t, health.Memory)
	assert.Equal(t, uint64(1<<30), health.Memory.TotalBytes)

	f.server.memStats = func() (*MemoryStatus, error) { return nil, errors.New("no /proc") }
	health = decode[HealthResponse](t, f.do(t, http.MethodGet, "/health", ""))
	assert.Nil(t, health.Memory)

	require.NoError(t, f.server.Stop(context.Background()))
	rec = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware(t *testing.T) {
	t.Run("preflight", func(t *testing.T) {
		f := newFixture(t, nil)
		req := httptest.NewRequest(http.MethodOptions, "/api/projects/add", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("origin not allowed", func(t *testing.T) {
		cfg := defaultConfig(t)
		cfg.Server.AllowedOrigins = []string{"https://promanage.example"}
		f := newFixture(t, cfg)

		req := httptest.NewRequest(http.MethodGet, "/api/projects/all", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request id", func(t *testing.T) {
		f := newFixture(t, nil)

		rec := f.do(t, http.MethodGet, "/health", "")
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		rec = httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestScheduleWebSocket(t *testing.T) {
	f := newFixture(t, nil, workItem("100", 1))
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws/schedule", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.server.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/projects/schedule", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event RunEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "schedule_run", event.Type)
	assert.Equal(t, "100", event.TotalProfit.String())
	assert.Len(t, event.SelectedProjects, 1)
	assert.Equal(t, 1, event.Run.ScheduledCount)
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t).Sugar())
	c := &Client{id: "slow", hub: hub, send: make(chan interface{}, 1)}
	require.True(t, hub.register(c))

	hub.Broadcast("first")
	hub.Broadcast("second")

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, int64(1), hub.drops.Load())

	// the buffered message is still delivered before the channel reports closed
	msg, ok := <-c.send
	assert.True(t, ok)
	assert.Equal(t, "first", msg)
	_, ok = <-c.send
	assert.False(t, ok)
}

func TestStartCron(t *testing.T) {
	cfg := defaultConfig(t)
	cfg.Scheduler.Cron = "@every 1h"
	f := newFixture(t, cfg)

	require.NoError(t, f.server.startCron())
	require.NotNil(t, f.server.cron)
	assert.Len(t, f.server.cron.Entries(), 1)

	f.server.runScheduled()
	assert.Equal(t, 1, f.store.SaveCalls)

	f.server.stopCron()
}

func TestStartCron_Disabled(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.server.startCron())
	assert.Nil(t, f.server.cron)
}

func TestApplyConfig(t *testing.T) {
	f := newFixture(t, nil, workItem("10", 1))

	cfg := defaultConfig(t)
	cfg.Server.ScheduleRunsPerMinute = 1
	cfg.Server.AllowedOrigins = []string{"https://promanage.example"}
	cfg.Scheduler.BaseCapacity = 2
	require.NoError(t, f.server.ApplyConfig(cfg))

	// scheduler settings stay as started
	rec := f.do(t, http.MethodPost, "/api/projects/schedule", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decode[ScheduleResponse](t, rec).Capacity)

	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodPost, "/api/projects/schedule", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/all", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	t.Run("invalid config is refused", func(t *testing.T) {
		bad := defaultConfig(t)
		bad.Scheduler.BaseCapacity = 0
		assert.Error(t, f.server.ApplyConfig(bad))
		assert.Equal(t, []string{"https://promanage.example"}, f.server.config().GetServerAllowedOrigins())
	})
}

func TestServe_AfterStopClosesListener(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.server.Stop(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()

	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ln) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve kept listening after Stop")
	}

	_, err = net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err)
	assert.False(t, f.server.serving.Load())
}

func TestStop_ShutsDownRunningServe(t *testing.T) {
	f := newFixture(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ln) }()
	require.Eventually(t, f.server.serving.Load, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.server.Stop(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
