package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davbridge/davbridge/internal/cmderr"
	"github.com/davbridge/davbridge/internal/events"
	"github.com/davbridge/davbridge/internal/history"
	"github.com/davbridge/davbridge/internal/status"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeCore struct {
	bus *events.Bus

	startPID  int
	startErr  error
	stopErr   error
	mountErr  error
	loginErr  error
	mountName string
	mounted   bool

	gotPort  int
	gotEmail string
	gotPath  string
}

func newFakeCore() *fakeCore { return &fakeCore{bus: events.NewBus(), startPID: 4321} }

func (f *fakeCore) StartSidecar(_ context.Context, port int) (int, error) {
	f.gotPort = port
	return f.startPID, f.startErr
}
func (f *fakeCore) StopSidecar(context.Context) error { return f.stopErr }
func (f *fakeCore) RestartSidecar(_ context.Context, port int) error {
	f.gotPort = port
	return f.startErr
}
func (f *fakeCore) Status(context.Context) status.StatusResponse { return status.Default() }
func (f *fakeCore) Mount(context.Context) error                  { return f.mountErr }
func (f *fakeCore) Unmount(context.Context) error                { return f.mountErr }
func (f *fakeCore) CheckMount(context.Context) (string, bool, error) {
	return f.mountName, f.mounted, nil
}
func (f *fakeCore) Login(_ context.Context, email string) error {
	f.gotEmail = email
	return f.loginErr
}
func (f *fakeCore) Logout(context.Context) error     { return nil }
func (f *fakeCore) PurgeCache(context.Context) error { return nil }
func (f *fakeCore) OpenInFiles(_ context.Context, path string) error {
	f.gotPath = path
	return nil
}
func (f *fakeCore) Bus() *events.Bus { return f.bus }

type fakeStore struct {
	rows []history.StoredEvent
	err  error
}

func (s *fakeStore) Recent(context.Context, int) ([]history.StoredEvent, error) {
	return s.rows, s.err
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterStart(t *testing.T) {
	core := newFakeCore()
	h := NewRouter(core, nil, "").Handler()

	rec := doJSON(t, h, http.MethodPost, "/sidecar/start", `{"port":9090}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9090, core.gotPort)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4321, resp["pid"])
}

func TestRouterStartNoBody(t *testing.T) {
	core := newFakeCore()
	h := NewRouter(core, nil, "").Handler()

	rec := doJSON(t, h, http.MethodPost, "/sidecar/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, core.gotPort)
}

func TestRouterErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"already running", cmderr.New(cmderr.CodeSidecarAlreadyRunning, "pid 7"), http.StatusConflict, "SIDECAR_ALREADY_RUNNING"},
		{"invalid port", cmderr.New(cmderr.CodeInvalidPort, "0"), http.StatusBadRequest, "INVALID_PORT"},
		{"mount timeout", cmderr.New(cmderr.CodeMountTimeout, "20s"), http.StatusGatewayTimeout, "MOUNT_TIMEOUT"},
		{"plain error", assert.AnError, http.StatusInternalServerError, "UNKNOWN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			core := newFakeCore()
			core.startErr = tc.err
			h := NewRouter(core, nil, "").Handler()

			rec := doJSON(t, h, http.MethodPost, "/sidecar/start", `{"port":12345}`)
			require.Equal(t, tc.want, rec.Code)

			var resp errorResp
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestRouterAuthFailedUnauthorized(t *testing.T) {
	core := newFakeCore()
	core.loginErr = cmderr.New(cmderr.CodeAuthFailed, "bad credentials")
	h := NewRouter(core, nil, "").Handler()

	rec := doJSON(t, h, http.MethodPost, "/auth/login", `{"email":"user@example.com"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "user@example.com", core.gotEmail)
}

func TestRouterStatus(t *testing.T) {
	core := newFakeCore()
	h := NewRouter(core, nil, "").Handler()

	rec := doJSON(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp status.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Server.Running)
	assert.Nil(t, resp.Server.URL)
	assert.Equal(t, 12345, resp.Config.Webdav.Port)
}

func TestRouterCheckMount(t *testing.T) {
	core := newFakeCore()
	core.mountName = "WebDAV on localhost"
	core.mounted = true
	h := NewRouter(core, nil, "").Handler()

	rec := doJSON(t, h, http.MethodGet, "/mount", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Mounted bool   `json:"mounted"`
		Name    string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Mounted)
	assert.Equal(t, "WebDAV on localhost", resp.Name)
}

func TestRouterMountConflict(t *testing.T) {
	core := newFakeCore()
	core.mountErr = cmderr.New(cmderr.CodeServerNotRunning, "start the server first")
	h := NewRouter(core, nil, "").Handler()

	rec := doJSON(t, h, http.MethodPost, "/mount", "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouterHistory(t *testing.T) {
	core := newFakeCore()
	store := &fakeStore{rows: []history.StoredEvent{
		{ID: 2, Name: events.SidecarLog, Payload: json.RawMessage(`{"level":"info","message":"ready"}`)},
		{ID: 1, Name: events.SidecarTerminated, Payload: json.RawMessage(`{"pid":7,"exitCode":0}`)},
	}}
	h := NewRouter(core, store, "").Handler()

	rec := doJSON(t, h, http.MethodGet, "/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rows []history.StoredEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, int64(2), rows[0].ID)
}

func TestRouterHistoryNoStore(t *testing.T) {
	core := newFakeCore()
	h := NewRouter(core, nil, "").Handler()

	rec := doJSON(t, h, http.MethodGet, "/history", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterBasePath(t *testing.T) {
	core := newFakeCore()
	h := NewRouter(core, nil, "api/v1/").Handler()

	rec := doJSON(t, h, http.MethodGet, "/api/v1/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":        "",
		"/":       "",
		"api":     "/api",
		"/api":    "/api",
		"/api/":   "/api",
		" /api/ ": "/api",
	}
	for in, want := range cases {
		assert.Equal(t, want, sanitizeBase(in), "input %q", in)
	}
}
