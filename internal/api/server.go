package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/supernova/supernova/internal/avatar"
	"github.com/supernova/supernova/internal/broll"
	"github.com/supernova/supernova/internal/config"
	"github.com/supernova/supernova/internal/progress"
	"github.com/supernova/supernova/internal/studio"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port      int
	Service   *studio.Service
	Runner    *studio.Runner
	Hub       *progress.Hub
	Catalog   *avatar.CachedCatalog
	Avatars   *avatar.AvatarUploader
	Footage   broll.Searcher
	Rules     *broll.RuleTable
	Features  config.Features
	Logger    *slog.Logger
	StartTime time.Time
	InstallID string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// avatar uploads carry whole training videos
			ReadTimeout: 5 * time.Minute,
			// event streams stay open for the whole render
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
