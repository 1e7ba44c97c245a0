// Package server exposes event intake and the admin JSON API over HTTP.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/signalbox/internal/intake"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/store"
)

// Pusher sends a manual reminder for a task.
type Pusher interface {
	Push(ctx context.Context, taskID uint, content string) (*models.Reminder, error)
}

// Opts holds configuration for the HTTP server.
type Opts struct {
	Store    *store.Store
	Pipeline *intake.Pipeline
	Pusher   Pusher // optional; push endpoint returns 503 without it
	Port     int
	Location *time.Location // defines "today" for monitoring stats
	Now      func() time.Time
	Out      io.Writer
}

// Server serves the HTTP API.
type Server struct {
	store    *store.Store
	pipeline *intake.Pipeline
	pusher   Pusher
	port     int
	loc      *time.Location
	now      func() time.Time
	out      io.Writer
	engine   *gin.Engine
}

// New creates a Server with all routes registered.
func New(opts Opts) (*Server, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("server: store is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		store:    opts.Store,
		pipeline: opts.Pipeline,
		pusher:   opts.Pusher,
		port:     opts.Port,
		loc:      opts.Location,
		now:      opts.Now,
		out:      opts.Out,
		engine:   engine,
	}
	s.registerRoutes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(s.out, "Signalbox API listening on :%d\n", s.port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// startOfDay returns local midnight for now.
func (s *Server) startOfDay() time.Time {
	now := s.now().In(s.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
}
