package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitecrawl/internal/crawler"
	"github.com/JakeFAU/sitecrawl/internal/frontier"
	"github.com/JakeFAU/sitecrawl/internal/session"
	"github.com/JakeFAU/sitecrawl/internal/storage/memory"
)

type fakeSession struct {
	snap session.Snapshot
}

func (f fakeSession) Snapshot() session.Snapshot { return f.snap }

type failingStatus struct{}

func (failingStatus) PutSession(context.Context, crawler.SessionRecord) error { return nil }

func (failingStatus) GetSession(context.Context, string) (crawler.SessionRecord, error) {
	return crawler.SessionRecord{}, errors.New("redis down")
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServerProbes(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, zap.NewNop())
	rec := serve(t, s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)
	s.Attach(fakeSession{})
	require.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)
}

func TestServerMetrics(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil)
	rec := serve(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "sitecrawl_")
}

func TestServerSessionSnapshot(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, zap.NewNop())
	require.Equal(t, http.StatusNotFound, serve(t, s, "/v1/session").Code)

	s.Attach(fakeSession{snap: session.Snapshot{
		ID:       "s-1",
		BaseURL:  "https://example.com/",
		State:    crawler.StateDraining,
		Pages:    12,
		Words:    3400,
		Frontier: frontier.Stats{Seen: 20, Queued: 3, InFlight: 2, Done: 15},
	}})
	rec := serve(t, s, "/v1/session")
	require.Equal(t, http.StatusOK, rec.Code)

	var got session.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "s-1", got.ID)
	require.Equal(t, crawler.StateDraining, got.State)
	require.Equal(t, 12, got.Pages)
	require.Equal(t, 20, got.Frontier.Seen)
	require.Contains(t, rec.Body.String(), `"sealed":false`)
}

func TestServerSessionRecord(t *testing.T) {
	t.Parallel()

	store := memory.NewStatusStore()
	require.NoError(t, store.PutSession(context.Background(), crawler.SessionRecord{
		ID:     "s-9",
		Status: crawler.SessionStatusSucceeded,
		Pages:  4,
	}))

	tests := []struct {
		name   string
		status crawler.StatusStore
		path   string
		code   int
		body   string
	}{
		{name: "found", status: store, path: "/v1/sessions/s-9", code: http.StatusOK, body: `"succeeded"`},
		{name: "missing", status: store, path: "/v1/sessions/nope", code: http.StatusNotFound, body: "session not found"},
		{name: "no store", status: nil, path: "/v1/sessions/s-9", code: http.StatusNotFound, body: "not configured"},
		{name: "backend error", status: failingStatus{}, path: "/v1/sessions/s-9", code: http.StatusInternalServerError, body: "lookup failed"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := serve(t, NewServer(tt.status, zap.NewNop()), tt.path)
			require.Equal(t, tt.code, rec.Code)
			require.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewServer(nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test probe
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, zap.NewNop())
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "internal server error"))
}
