// Package server assembles the HTTP listener, middleware chain and
// background maintenance jobs.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wozozo/smpit/internal/config"
	"github.com/wozozo/smpit/pkg/api"
	"github.com/wozozo/smpit/pkg/auth"
	"github.com/wozozo/smpit/pkg/metrics"
	"github.com/wozozo/smpit/pkg/scheduler"
	"github.com/wozozo/smpit/pkg/storage"
)

// Server ties the RPC handler, authentication and background jobs
// together.
type Server struct {
	cfg    *config.Config
	store  *storage.Store
	engine *gin.Engine
}

// New builds the server and its routes.
func New(cfg *config.Config, store *storage.Store) *Server {
	if log.GetLevel() < log.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	verifier := auth.NewVerifier(auth.Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	handler := api.NewHandler(store, cfg.Region)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())
	engine.Use(metricsMiddleware())

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.POST("/", authMiddleware(verifier), handler.Handle)

	return &Server{cfg: cfg, store: store, engine: engine}
}

// Engine exposes the router, for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves requests and runs the cleanup jobs until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: s.engine,
	}

	sched := scheduler.New(
		scheduler.Job{
			Name:     "purge-deleted-secrets",
			Interval: s.cfg.CleanupInterval,
			Run:      s.purgeDeletedSecrets,
		},
		scheduler.Job{
			Name:     "purge-excess-versions",
			Interval: s.cfg.CleanupInterval,
			Run:      s.purgeExcessVersions,
		},
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithFields(log.Fields{
			"addr":  s.cfg.Addr(),
			"https": s.cfg.EnableHTTPS,
		}).Info("Server listening")

		var err error
		if s.cfg.EnableHTTPS {
			err = httpSrv.ListenAndServeTLS(s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (s *Server) purgeDeletedSecrets(ctx context.Context) {
	purged, err := s.store.PurgeDeletedSecrets(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to purge deleted secrets")
		return
	}
	metrics.ObserveJob("purge-deleted-secrets", purged)
	if purged > 0 {
		log.WithField("count", purged).Info("Purged deleted secrets")
	}
}

func (s *Server) purgeExcessVersions(ctx context.Context) {
	purged, err := s.store.PurgeExcessVersions(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to purge excess versions")
		return
	}
	metrics.ObserveJob("purge-excess-versions", purged)
	if purged > 0 {
		log.WithField("count", purged).Info("Purged excess secret versions")
	}
}
