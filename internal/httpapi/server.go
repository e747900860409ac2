// Package httpapi serves the todos REST contract over any types.Gateway.
//
// Routes, all JSON:
//
//	GET    /api/todos         list todos with stats
//	POST   /api/todos         create from {title, description?, priority}
//	PUT    /api/todos         update from {id, title?, description?, priority?, status?}
//	DELETE /api/todos         remove {id}
//	POST   /api/todos/toggle  flip the status of {id}
//	GET    /api/health        liveness
//	GET    /metrics           Prometheus exposition
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/todos/pkg/types"
)

const shutdownTimeout = 5 * time.Second

// Server is the REST front end of a Gateway.
type Server struct {
	gateway types.Gateway
	engine  *gin.Engine
	log     zerolog.Logger
}

// NewServer builds the gin engine for gw. Request metrics are registered
// with reg and exposed on /metrics through gatherer.
func NewServer(gw types.Gateway, log zerolog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*Server, error) {
	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		gateway: gw,
		engine:  engine,
		log:     log.With().Str("component", "httpapi").Logger(),
	}
	engine.Use(s.requestLogger(), metrics.Middleware())

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	api.GET("/health", s.health)

	todos := api.Group("/todos", requireJSON())
	todos.GET("", s.listTodos)
	todos.POST("", s.createTodo)
	todos.PUT("", s.updateTodo)
	todos.DELETE("", s.removeTodo)
	todos.POST("/toggle", s.toggleTodo)

	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// requireJSON rejects request bodies that are not declared as JSON.
func requireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		if c.ContentType() != gin.MIMEJSON {
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, Response{
				Error: "content type must be application/json",
			})
			return
		}
		c.Next()
	}
}
