package main

//	@title			QR Studio API
//	@version		1.0
//	@description	QR project rendering and print-pack API.
//	@schemes		http https
//	@BasePath		/api/v1

//  Bearer at owner level
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Firebase ID token (e.g., "Bearer eyJhbGciOi...")

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qrdesk/qrstudio/internal/bootstrap"
	"github.com/qrdesk/qrstudio/internal/config"
	"github.com/qrdesk/qrstudio/internal/infra/cache"
	dbpkg "github.com/qrdesk/qrstudio/internal/infra/db"
	"github.com/qrdesk/qrstudio/internal/middleware"
	"github.com/qrdesk/qrstudio/internal/modules/handler"
	"github.com/qrdesk/qrstudio/internal/modules/service"
	"github.com/qrdesk/qrstudio/internal/router"
	"github.com/qrdesk/qrstudio/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// build dependency injection container
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	db := do.MustInvoke[*gorm.DB](inj)
	rdb := do.MustInvoke[*redis.Client](inj)

	// Setup OpenTelemetry tracing (using configuration system)
	tp, err := telemetry.SetupTracing(cfg)
	if err != nil {
		log.Sugar().Warnw("failed to setup tracing, continuing without tracing", "err", err)
	} else if tp != nil {
		log.Sugar().Infow("OpenTelemetry tracing enabled", "endpoint", cfg.Telemetry.OtlpEndpoint)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(ctx); err != nil {
				log.Sugar().Errorw("failed to shutdown tracer", "err", err)
			}
		}()

		// Register GORM OpenTelemetry plugin after tracer provider is set
		if err := dbpkg.RegisterOpenTelemetryPlugin(db); err != nil {
			log.Sugar().Warnw("failed to register GORM OpenTelemetry plugin, continuing without database tracing", "err", err)
		} else {
			log.Sugar().Info("GORM OpenTelemetry plugin registered")
		}

		// Register Redis OpenTelemetry plugin after tracer provider is set
		if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
			log.Sugar().Warnw("failed to register Redis OpenTelemetry plugin, continuing without Redis tracing", "err", err)
		} else {
			log.Sugar().Info("Redis OpenTelemetry plugin registered")
		}
	}

	// init gin
	gin.SetMode(cfg.App.Env)

	verifier := do.MustInvoke[middleware.TokenVerifier](inj)
	if verifier == nil {
		log.Sugar().Warnw("no firebase project configured, all requests act as the dev owner", "owner_id", cfg.Auth.DevOwnerID)
	}
	if pub := do.MustInvoke[service.EventPublisher](inj); pub == nil {
		log.Sugar().Info("rabbitmq not configured, print pack events are not published")
	}

	engine := router.NewRouter(router.RouterDeps{
		Config:           cfg,
		Log:              log,
		Verifier:         verifier,
		RenderLimiter:    do.MustInvoke[*limiter.Limiter](inj),
		TemplateHandler:  do.MustInvoke[*handler.TemplateHandler](inj),
		ProjectHandler:   do.MustInvoke[*handler.ProjectHandler](inj),
		RenderHandler:    do.MustInvoke[*handler.RenderHandler](inj),
		PrintPackHandler: do.MustInvoke[*handler.PrintPackHandler](inj),
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	go func() {
		log.Sugar().Infow("starting http server", "addr", addr)
		log.Sugar().Infow("swagger url", "url", addr+"/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Sugar().Fatalw("listen error", "err", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Sugar().Errorw("server shutdown", "err", err)
	}
	// closes the broker channel and other shutdownable providers
	if err := inj.Shutdown(); err != nil {
		log.Sugar().Warnw("container shutdown", "err", err)
	}
	log.Sugar().Info("server exited")
}
