package pprof

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "jobsys/pkg/logx"
)

func TestJobsEndpoint(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	h := s.Handler(Config{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, jobsPath, nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetSnapshotFunc(func() any { return map[string]int{"pending": 3} })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, jobsPath, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 3, got["pending"])
}

func TestTokenAuth(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	h := s.Handler(Config{Token: "sekret"})

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{name: "missing", target: "/healthz", want: http.StatusUnauthorized},
		{name: "bad query", target: "/healthz?token=nope", want: http.StatusUnauthorized},
		{name: "query", target: "/healthz?token=sekret", want: http.StatusOK},
		{name: "bearer", target: "/healthz", header: "Bearer sekret", want: http.StatusOK},
		{name: "bad bearer", target: "/healthz", header: "Bearer x", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestPrefixAndLoopback(t *testing.T) {
	t.Parallel()
	require.Equal(t, "/debug/pprof/", normalizePrefix(""))
	require.Equal(t, "/x/", normalizePrefix("x"))

	require.True(t, isLoopbackAddr("127.0.0.1:6060"))
	require.True(t, isLoopbackAddr("localhost:1"))
	require.True(t, isLoopbackAddr("[::1]:1"))
	require.False(t, isLoopbackAddr(":6060"))
	require.False(t, isLoopbackAddr("10.0.0.1:6060"))

	s := New(Config{}, logx.Nop())
	rec := httptest.NewRecorder()
	s.Handler(Config{Prefix: "/prof"}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/prof", nil))
	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
}

func TestStartServeStop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Addr: "127.0.0.1:0"}, logx.Nop())
	ctx := context.Background()
	s.Start(ctx)

	require.Eventually(t, func() bool { return s.Addr() != "" }, 5*time.Second, 10*time.Millisecond)
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.Stop(stopCtx)
	require.Nil(t, s.Supervisor())
	require.Empty(t, s.Addr())
}
