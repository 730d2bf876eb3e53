package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	collectionsdomain "github.com/smallbiznis/collections/internal/collections/domain"
	"github.com/smallbiznis/collections/internal/config"
	"github.com/smallbiznis/collections/internal/observability"
	obsmiddleware "github.com/smallbiznis/collections/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/collections/internal/observability/metrics"
	obstracing "github.com/smallbiznis/collections/internal/observability/tracing"
	"github.com/smallbiznis/collections/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	log            *zap.Logger
	collectionsSvc collectionsdomain.Service
	writeLimiter   *ratelimit.WriteLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Log            *zap.Logger
	CollectionsSvc collectionsdomain.Service
	WriteLimiter   *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		log:            p.Log.Named("http.server"),
		collectionsSvc: p.CollectionsSvc,
		writeLimiter:   p.WriteLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.OrgContext())

	collections := api.Group("/collections")
	{
		collections.GET("/workflows", s.ListWorkflows)
		collections.GET("/summary", s.GetCollectionsSummary)
		collections.GET("/config", s.GetWorkflowConfig)

		collections.GET("/promises", s.ListPromises)
		collections.POST("/promises", s.WriteRateLimit(), s.CreatePromise)
		collections.POST("/promises/:id/fulfill", s.WriteRateLimit(), s.FulfillPromise)
		collections.POST("/promises/:id/fail", s.WriteRateLimit(), s.FailPromise)
		collections.POST("/promises/:id/partial", s.WriteRateLimit(), s.PartialPromise)

		collections.GET("/actions", s.ListActions)
		collections.POST("/actions", s.WriteRateLimit(), s.RecordAction)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
