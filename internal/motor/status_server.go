package motor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/motorctl/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusServer exposes a supervisor's state over HTTP.
type StatusServer struct {
	addr    string
	sup     *Supervisor
	router  *gin.Engine
	logger  zerolog.Logger
	started time.Time
}

func NewStatusServer(addr string, sup *Supervisor, logger zerolog.Logger) *StatusServer {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(logger))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &StatusServer{addr: addr, sup: sup, router: r, logger: logger, started: time.Now()}
	s.registerRoutes()
	return s
}

func (s *StatusServer) Handler() http.Handler {
	return s.router
}

func (s *StatusServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"session": s.sup.ID(),
		})
	})
	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.sup.Status())
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Serve listens until ctx is done, then shuts the listener down.
func (s *StatusServer) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.addr).Msg("status server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
