// Package api exposes the JSON HTTP interface. Every response uses the
// envelope {success, message?, ...payload}.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dharsanguruparan/pathfinder/internal/auth"
	"github.com/dharsanguruparan/pathfinder/internal/catalog"
	"github.com/dharsanguruparan/pathfinder/internal/config"
	"github.com/dharsanguruparan/pathfinder/internal/docstore"
	"github.com/dharsanguruparan/pathfinder/internal/logger"
	"github.com/dharsanguruparan/pathfinder/internal/metrics"
	"github.com/dharsanguruparan/pathfinder/internal/signing"
	"github.com/dharsanguruparan/pathfinder/internal/workflow"
)

// Deps are the services the handlers call into.
type Deps struct {
	Applications *workflow.Service
	Jobs         *catalog.Service
	Auth         *auth.Service
	Documents    docstore.Store
	Signer       *signing.Signer
}

// Server exposes HTTP endpoints for job seekers and administrators.
type Server struct {
	cfg    *config.Config
	deps   Deps
	log    zerolog.Logger
	engine *gin.Engine
	server *http.Server
	once   sync.Once
}

// New constructs a Server and registers its routes.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{cfg: cfg, deps: deps, log: logger.Get("api")}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.engine,
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info().Str("addr", s.cfg.Address).Msg("api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger(), metrics.Middleware(), corsMiddleware(), s.resolveSession())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/files/:category/:ref", s.handleDownload)

	api := r.Group("/api")
	api.POST("/applications", s.handleSubmit)
	api.GET("/jobs", s.handleListJobs)
	api.GET("/jobs/:id", s.handleGetJob)
	api.GET("/categories", s.handleCategories)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handleRegister)
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/admin-login", s.handleAdminLogin)
	authGroup.POST("/logout", s.handleLogout)
	authGroup.GET("/session", s.handleSession)

	me := api.Group("/me", requireUser())
	me.GET("/applications", s.handleMyApplications)
	me.GET("/profile", s.handleGetProfile)
	me.PUT("/profile", s.handleUpdateProfile)

	admin := api.Group("/admin", requireAdmin())
	admin.GET("/applications", s.handleListApplications)
	admin.GET("/applications/:id", s.handleGetApplication)
	admin.POST("/applications/status", s.handleUpdateStatus)
	admin.GET("/stats", s.handleApplicationStats)
	admin.GET("/jobs/stats", s.handleJobStats)
	admin.POST("/jobs", s.handleCreateJob)
	admin.GET("/jobs/:id", s.handleAdminGetJob)
	admin.PUT("/jobs/:id", s.handleUpdateJob)
	admin.DELETE("/jobs/:id", s.handleDeleteJob)
	admin.GET("/jobs/:id/applications", s.handleJobApplications)
	return r
}
