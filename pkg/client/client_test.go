package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/timewarden/internal/gateway"
	"github.com/loykin/timewarden/internal/schedule"
	"github.com/loykin/timewarden/internal/usage"
)

type recorded struct {
	call string
	body string
	rid  string
}

type recorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *recorder) add(rec recorded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, rec)
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.seen...)
}

// fakeBackend answers /invoke/{call} from a table of raw JSON results.
func fakeBackend(t *testing.T, results map[string]string, rec *recorder) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/health" {
			_, _ = w.Write([]byte(`{"ok":true}`))
			return
		}
		call := strings.TrimPrefix(r.URL.Path, "/api/invoke/")
		b, _ := io.ReadAll(r.Body)
		if rec != nil {
			rec.add(recorded{call: call, body: string(b), rid: r.Header.Get(RequestIDHeader)})
		}
		res, ok := results[call]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"unknown call"}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":` + res + `}`))
	}))
}

func newTestClient(url string) *Client {
	return New(Config{BaseURL: url + "/api/", Timeout: time.Second})
}

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.client.Timeout)
}

func TestCurrentApp(t *testing.T) {
	srv := fakeBackend(t, map[string]string{gateway.CallGetCurrentApp: `"Code"`}, nil)
	defer srv.Close()

	app, ok, err := newTestClient(srv.URL).CurrentApp(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Code", app)
}

func TestCurrentAppAbsent(t *testing.T) {
	srv := fakeBackend(t, map[string]string{gateway.CallGetCurrentApp: `null`}, nil)
	defer srv.Close()

	app, ok, err := newTestClient(srv.URL).CurrentApp(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, app)
}

func TestStatusAndUsageCalls(t *testing.T) {
	srv := fakeBackend(t, map[string]string{
		gateway.CallGetIdleSeconds:    `42`,
		gateway.CallGetTodaySessions:  `[{"id":1,"app_id":"code.exe","start_time":"2026-10-15T09:00:00Z","is_idle":false}]`,
		gateway.CallGetAppTotalsToday: `[{"name":"chrome","seconds":1200},{"name":"code","seconds":600}]`,
	}, nil)
	defer srv.Close()
	c := newTestClient(srv.URL)
	ctx := context.Background()

	idle, err := c.IdleSeconds(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), idle)

	sessions, err := c.TodaySessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "code.exe", sessions[0].AppID)
	assert.Nil(t, sessions[0].EndTime)

	totals, err := c.AppTotalsToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, []usage.AppTotal{{Name: "chrome", Seconds: 1200}, {Name: "code", Seconds: 600}}, totals)
}

func TestScheduleCallsSendArguments(t *testing.T) {
	rec := &recorder{}
	srv := fakeBackend(t, map[string]string{
		gateway.CallGetAllSchedules: `[{"id":7,"name":"Work","start_time":"09:00:00","end_time":"17:00:00","days":["Mon"],"expected_apps":["code"],"check_interval_secs":5,"grace_period_secs":30,"enabled":true}]`,
		gateway.CallCreateSchedule:  `null`,
		gateway.CallToggleSchedule:  `null`,
		gateway.CallDeleteSchedule:  `null`,
	}, rec)
	defer srv.Close()
	c := newTestClient(srv.URL)
	ctx := context.Background()

	all, err := c.AllSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(7), all[0].IDValue())
	assert.Equal(t, []schedule.Weekday{schedule.Mon}, all[0].Days)

	require.NoError(t, c.CreateSchedule(ctx, schedule.NewDraft("Study")))
	require.NoError(t, c.ToggleSchedule(ctx, 7, false))
	require.NoError(t, c.DeleteSchedule(ctx, 7))

	seen := rec.all()
	require.Len(t, seen, 4)
	var create ScheduleArgs
	require.NoError(t, json.Unmarshal([]byte(seen[1].body), &create))
	assert.Equal(t, "Study", create.Schedule.Name)
	assert.Nil(t, create.Schedule.ID)
	assert.JSONEq(t, `{"id":7,"enabled":false}`, seen[2].body)
	assert.JSONEq(t, `{"id":7}`, seen[3].body)

	ids := map[string]bool{}
	for _, r := range seen {
		assert.NotEmpty(t, r.rid)
		ids[r.rid] = true
	}
	assert.Len(t, ids, len(seen), "request ids must be unique")
}

func TestErrorResponseIsRemoteCallError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"database is locked"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ToggleSchedule(context.Background(), 1, true)
	require.Error(t, err)
	var rce *gateway.RemoteCallError
	require.ErrorAs(t, err, &rce)
	assert.Equal(t, gateway.CallToggleSchedule, rce.Call)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestUndecodableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).IdleSeconds(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsRemote(err))
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestMalformedResultIsRemoteCallError(t *testing.T) {
	srv := fakeBackend(t, map[string]string{gateway.CallGetIdleSeconds: `"soon"`}, nil)
	defer srv.Close()

	_, err := newTestClient(srv.URL).IdleSeconds(context.Background())
	require.Error(t, err)
	call, ok := gateway.CallOf(err)
	assert.True(t, ok)
	assert.Equal(t, gateway.CallGetIdleSeconds, call)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).AllSchedules(context.Background())
	require.Error(t, err)
	assert.True(t, gateway.IsRemote(err))
}

func TestIsReachable(t *testing.T) {
	srv := fakeBackend(t, nil, nil)
	c := newTestClient(srv.URL)
	assert.True(t, c.IsReachable(context.Background()))
	srv.Close()
	assert.False(t, c.IsReachable(context.Background()))
}

func TestInsecureTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":3}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Insecure: true})
	idle, err := c.IdleSeconds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), idle)
}
