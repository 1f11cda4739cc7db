package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/timewarden/internal/backend"
	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/store/sqlite"
	"github.com/loykin/timewarden/pkg/client"
)

var fixedNow = time.Date(2026, 10, 15, 15, 0, 0, 0, time.UTC)

func newService(t *testing.T, probe backend.Probe) *backend.Service {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureSchema(context.Background()))
	return backend.New(db, probe, backend.WithClock(func() time.Time { return fixedNow }))
}

func setupRouter(t *testing.T, base string, probe backend.Probe, opts ...RouterOption) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(newService(t, probe), base, opts...).Handler()
}

func doReq(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e.Error
}

func TestHealth(t *testing.T) {
	h := setupRouter(t, "/api", nil)
	rec := doReq(t, h, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestUnknownCall(t *testing.T) {
	h := setupRouter(t, "", nil)
	rec := doReq(t, h, http.MethodPost, "/invoke/format_disk", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorOf(t, rec), "format_disk")
}

func TestBadArguments(t *testing.T) {
	h := setupRouter(t, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/invoke/"+gateway.CallToggleSchedule, bytes.NewBufferString(`{"id":`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doReq(t, h, http.MethodPost, "/invoke/"+gateway.CallDeleteSchedule, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "id required")
}

func TestInvalidScheduleIs400(t *testing.T) {
	h := setupRouter(t, "", nil)
	bad := schedule.NewDraft("Work")
	bad.GracePeriodSecs = 301
	rec := doReq(t, h, http.MethodPost, "/invoke/"+gateway.CallCreateSchedule, client.ScheduleArgs{Schedule: bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorOf(t, rec), "grace_period_secs")
}

func TestMissingScheduleIs404(t *testing.T) {
	h := setupRouter(t, "", nil)
	rec := doReq(t, h, http.MethodPost, "/invoke/"+gateway.CallToggleSchedule, client.ToggleArgs{ID: 42, Enabled: true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	h := setupRouter(t, "", nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(client.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(client.RequestIDHeader))

	rec = doReq(t, h, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, rec.Header().Get(client.RequestIDHeader))
}

func TestDebugProbeRequiresManualProbe(t *testing.T) {
	h := setupRouter(t, "", backend.NullProbe{})
	rec := doReq(t, h, http.MethodPost, "/debug/probe", probeReq{App: "Code"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDebugSessionsValidation(t *testing.T) {
	h := setupRouter(t, "", nil)
	rec := doReq(t, h, http.MethodPost, "/debug/sessions", map[string]any{"app_id": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsMountedOnlyWhenEnabled(t *testing.T) {
	h := setupRouter(t, "", nil)
	assert.Equal(t, http.StatusNotFound, doReq(t, h, http.MethodGet, "/metrics", nil).Code)

	h = setupRouter(t, "", nil, WithMetrics())
	assert.Equal(t, http.StatusOK, doReq(t, h, http.MethodGet, "/metrics", nil).Code)
}

// TestClientRoundTrip drives every call through the real HTTP client.
func TestClientRoundTrip(t *testing.T) {
	gin.SetMode(gin.TestMode)
	probe := &backend.ManualProbe{}
	srv := httptest.NewServer(NewRouter(newService(t, probe), "/api").Handler())
	defer srv.Close()
	c := client.New(client.Config{BaseURL: srv.URL + "/api"})
	ctx := context.Background()

	require.True(t, c.IsReachable(ctx))

	_, ok, err := c.CurrentApp(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rec := doReq(t, srv.Config.Handler, http.MethodPost, "/api/debug/probe", probeReq{App: "Code", IdleSeconds: 7})
	require.Equal(t, http.StatusOK, rec.Code)
	app, ok, err := c.CurrentApp(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Code", app)
	idle, err := c.IdleSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), idle)

	start := fixedNow.Add(-time.Hour)
	end := start.Add(20 * time.Minute)
	rec = doReq(t, srv.Config.Handler, http.MethodPost, "/api/debug/sessions",
		map[string]any{"app_id": "code", "start_time": start, "end_time": end})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	sessions, err := c.TodaySessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].StartTime.Equal(start))
	totals, err := c.AppTotalsToday(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, int64(1200), totals[0].Seconds)

	d := schedule.NewDraft("Work")
	d.Days = []schedule.Weekday{schedule.Mon, schedule.Tue}
	d.ExpectedApps = []string{"code"}
	require.NoError(t, c.CreateSchedule(ctx, d))
	all, err := c.AllSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	id := all[0].IDValue()

	edited := all[0]
	edited.Name = "Work hours"
	require.NoError(t, c.UpdateSchedule(ctx, edited))
	require.NoError(t, c.ToggleSchedule(ctx, id, false))
	all, err = c.AllSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Work hours", all[0].Name)
	assert.False(t, all[0].Enabled)
	assert.Equal(t, []schedule.Weekday{schedule.Mon, schedule.Tue}, all[0].Days)

	require.NoError(t, c.DeleteSchedule(ctx, id))
	err = c.DeleteSchedule(ctx, id)
	require.Error(t, err)
	assert.True(t, gateway.IsRemote(err))
	assert.Contains(t, err.Error(), "not found")
}

func TestNewServerStartClose(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv, err := NewServer("127.0.0.1:0", NewRouter(newService(t, nil), "/x"))
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	_ = srv.Close()
}

func TestNewTLSServerRequiresCertificate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, err := NewTLSServer("127.0.0.1:0", &tls.Config{}, NewRouter(newService(t, nil), ""))
	require.Error(t, err)
	_, err = NewTLSServer("127.0.0.1:0", nil, NewRouter(newService(t, nil), ""))
	require.Error(t, err)
}
