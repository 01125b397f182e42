package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewEngine 裸引擎 + CORS；其余中间件由各引擎自行挂载
func NewEngine(origins []string) *gin.Engine {
	r := gin.New()
	r.Use(cors.New(corsConfig(origins)))
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Memorial-Password"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: true,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		c.AllowCredentials = false // 通配来源不允许带凭据
		return c
	}
	c.AllowOrigins = origins
	return c
}

// 请求头必须在这个时间内读完，与 body 的读超时分开
const maxHeaderTimeout = 10 * time.Second

func BuildServer(addr string, handler http.Handler, rt, wt, it time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: min(rt, maxHeaderTimeout),
		ReadTimeout:       rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
}

func Addr(host string, port int) string { return fmt.Sprintf("%s:%d", host, port) }

// Serve 启动并阻塞到 ctx 结束，然后在 grace 内优雅关闭
func Serve(ctx context.Context, srv *http.Server, l *zap.Logger, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		l.Info("http starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	l.Info("http stopped gracefully", zap.String("addr", srv.Addr))
	return nil
}
