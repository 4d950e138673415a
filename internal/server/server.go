// Package server exposes the assistant over HTTP with gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopping-assistant/internal/common/config"
	"shopping-assistant/internal/common/logger"
	"shopping-assistant/internal/models"
	"shopping-assistant/internal/pipeline"
	"shopping-assistant/internal/retrieval"
	"shopping-assistant/internal/sanitize"
)

// PipelineRunner is the answer pipeline as the handlers see it.
type PipelineRunner interface {
	Run(ctx context.Context, question string) (*pipeline.State, error)
	RunStream(ctx context.Context, question string) (<-chan pipeline.Event, error)
}

// SessionService is the session layer as the handlers see it.
type SessionService interface {
	GetOrCreate(ctx context.Context, id string) (*models.Session, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	AppendMessage(ctx context.Context, id, role, content string) error
	AddCartItem(ctx context.Context, id string, item models.CartItem) (*models.Session, error)
	Cart(ctx context.Context, id string) ([]models.CartItem, error)
	ClearCart(ctx context.Context, id string) error
	Analytics(ctx context.Context, id string) (*models.SessionAnalytics, error)
}

// Limiter decides whether a client may proceed. retryAfter is in seconds and
// only meaningful when allowed is false.
type Limiter interface {
	Allow(ctx context.Context, clientID string) (allowed bool, retryAfter int, err error)
}

// ReadinessCheck probes one backend dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps carries the collaborators the server wires into its routes.
type Deps struct {
	Pipeline  PipelineRunner
	Sessions  SessionService
	Sanitizer *sanitize.Sanitizer
	Retriever retrieval.Retriever
	Limiter   Limiter
	Readiness []ReadinessCheck
	Logger    logger.Logger
}

// Server is the HTTP front of the assistant.
type Server struct {
	cfg    *config.Config
	deps   Deps
	engine *gin.Engine
	logger logger.Logger
}

// New builds the router with all middleware and routes registered.
func New(cfg *config.Config, deps Deps) *Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		engine: gin.New(),
		logger: deps.Logger.WithFields(map[string]interface{}{"component": "server"}),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())
	s.engine.Use(s.bodySizeLimit())
	s.engine.Use(s.apiKeyAuth())
	s.engine.Use(s.rateLimit())

	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/health/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/query", s.handleQuery)
		v1.POST("/query/stream", s.handleQueryStream)
		v1.POST("/documents", s.handleIngestDocuments)
		v1.GET("/session/:id", s.handleSessionInfo)
		v1.GET("/session/:id/cart", s.handleGetCart)
		v1.POST("/session/:id/cart", s.handleAddCartItem)
		v1.DELETE("/session/:id/cart", s.handleClearCart)
	}
}

// Engine exposes the router for tests and for http.Server wiring.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// httpServer builds the net/http server from the configured timeouts. The
// write timeout must cover the longest streaming response; operators size it
// in config.
func (s *Server) httpServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.engine,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Start serves until the context is cancelled, then drains with a grace
// period.
func (s *Server) Start(ctx context.Context) error {
	srv := s.httpServer()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		grace := time.Duration(s.cfg.Server.ShutdownTimeout) * time.Second
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
