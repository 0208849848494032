package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vitos/crypto_token_screener/internal/domain"
	"github.com/vitos/crypto_token_screener/internal/usecase"
	"go.uber.org/zap"
)

type Server struct {
	router    *http.ServeMux
	server    *http.Server
	service   *usecase.ScreenerService
	tokenRepo domain.TokenRepository
	snapshots domain.SnapshotRepository
	logger    *zap.Logger
}

func NewServer(
	port int,
	service *usecase.ScreenerService,
	tokenRepo domain.TokenRepository,
	snapshots domain.SnapshotRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:    http.NewServeMux(),
		service:   service,
		tokenRepo: tokenRepo,
		snapshots: snapshots,
		logger:    logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Screening
	s.router.HandleFunc("POST /api/screen", s.handleRunScreening)

	// Latest snapshot
	s.router.HandleFunc("GET /api/results", s.handleLatestResults)

	// Stored tokens
	s.router.HandleFunc("GET /api/tokens", s.handleListTokens)
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
