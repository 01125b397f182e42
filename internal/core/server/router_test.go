package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() { gin.SetMode(gin.TestMode) }

func preflight(t *testing.T, r http.Handler, origin string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewEngine_AllowListedOrigin(t *testing.T) {
	r := NewEngine([]string{"http://localhost:3000"})
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := preflight(t, r, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = preflight(t, r, "http://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewEngine_Wildcard(t *testing.T) {
	r := NewEngine([]string{"*"})
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := preflight(t, r, "http://anything.example")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAddr(t *testing.T) {
	assert.Equal(t, "0.0.0.0:5000", Addr("0.0.0.0", 5000))
}

func TestBuildServer_HeaderTimeoutSeparateFromBody(t *testing.T) {
	srv := BuildServer(":0", http.NotFoundHandler(), 5*time.Minute, 5*time.Minute, time.Minute)
	assert.Equal(t, 5*time.Minute, srv.ReadTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)

	srv = BuildServer(":0", http.NotFoundHandler(), 5*time.Second, 10*time.Second, time.Minute)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv := BuildServer("127.0.0.1:0", http.NotFoundHandler(), time.Second, time.Second, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, zap.NewNop(), time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
