package bootstrap

import (
	"context"
	"time"

	"github.com/qrdesk/qrstudio/internal/config"
	"github.com/qrdesk/qrstudio/internal/infra/blob"
	"github.com/qrdesk/qrstudio/internal/infra/cache"
	"github.com/qrdesk/qrstudio/internal/infra/db"
	"github.com/qrdesk/qrstudio/internal/infra/httpclient"
	"github.com/qrdesk/qrstudio/internal/infra/identity"
	"github.com/qrdesk/qrstudio/internal/infra/logger"
	mq "github.com/qrdesk/qrstudio/internal/infra/queue"
	"github.com/qrdesk/qrstudio/internal/middleware"
	"github.com/qrdesk/qrstudio/internal/modules/handler"
	"github.com/qrdesk/qrstudio/internal/modules/model"
	"github.com/qrdesk/qrstudio/internal/modules/repo"
	"github.com/qrdesk/qrstudio/internal/modules/service"
	"github.com/qrdesk/qrstudio/internal/pkg/printpack"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		// [optional] auto migrate
		if cfg.Database.AutoMigrate {
			if err := d.AutoMigrate(
				&model.Project{},
				&model.UsageEvent{},
				&model.GenerationManifest{},
			); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		rdb := cache.New(cfg)
		return rdb, nil
	})
	do.Provide(inj, func(i *do.Injector) (service.PreviewCache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.NewPreviewCache(do.MustInvoke[*redis.Client](i), time.Duration(cfg.Render.CacheTTLSec)*time.Second), nil
	})
	do.Provide(inj, func(i *do.Injector) (*limiter.Limiter, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.Render.RateLimit == "" {
			return nil, nil
		}
		return middleware.NewRedisLimiter(do.MustInvoke[*redis.Client](i), cfg.Render.RateLimit)
	})

	// RabbitMQ is optional; without a URL no generation events are published
	do.Provide(inj, func(i *do.Injector) (service.EventPublisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.RabbitMQ.URL == "" {
			return nil, nil
		}
		conn, err := amqp.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			return nil, err
		}
		pub, err := mq.NewPublisher(conn, cfg.RabbitMQ.Queue, do.MustInvoke[*zap.Logger](i))
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		return pub, nil
	})

	// S3
	do.Provide(inj, func(i *do.Injector) (*blob.S3Deps, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return blob.NewS3(context.Background(), cfg)
	})
	// get presign expire duration
	do.Provide(inj, func(i *do.Injector) (func() time.Duration, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return func() time.Duration {
			if cfg.S3.PresignExpireSec <= 0 {
				return 15 * time.Minute
			}
			return time.Duration(cfg.S3.PresignExpireSec) * time.Second
		}, nil
	})

	// logo fetch through short-lived signed URLs
	do.Provide(inj, func(i *do.Injector) (printpack.LogoSource, error) {
		return httpclient.NewLogoClient(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})

	// ID-token verifier; nil in single-owner dev mode
	do.Provide(inj, func(i *do.Injector) (middleware.TokenVerifier, error) {
		client, err := identity.NewAuthClient(context.Background(), do.MustInvoke[*config.Config](i))
		if err != nil || client == nil {
			return nil, err
		}
		return client, nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.ProjectRepo, error) {
		return repo.NewProjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.UsageEventRepo, error) {
		return repo.NewUsageEventRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ManifestRepo, error) {
		return repo.NewManifestRepo(do.MustInvoke[*gorm.DB](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.ProjectService, error) {
		return service.NewProjectService(
			do.MustInvoke[repo.ProjectRepo](i),
			do.MustInvoke[repo.UsageEventRepo](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.RenderService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewRenderService(
			do.MustInvoke[service.ProjectService](i),
			do.MustInvoke[printpack.LogoSource](i),
			do.MustInvoke[service.PreviewCache](i),
			do.MustInvoke[*zap.Logger](i),
			cfg.Logo.DownloadMaxPx,
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.PrintPackService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		engine := printpack.NewEngine(printpack.Options{
			Concurrency: cfg.PrintPack.Concurrency,
			LogoMaxPx:   cfg.Logo.PrintMaxPx,
		})
		return service.NewPrintPackService(
			do.MustInvoke[service.ProjectService](i),
			do.MustInvoke[repo.ManifestRepo](i),
			engine,
			do.MustInvoke[printpack.LogoSource](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[service.EventPublisher](i),
			do.MustInvoke[*zap.Logger](i),
			service.PrintPackOptions{
				StoragePrefix: cfg.PrintPack.StoragePrefix,
				DownloadTTL:   do.MustInvoke[func() time.Duration](i)(),
			},
		), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.TemplateHandler, error) {
		return handler.NewTemplateHandler(), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.ProjectHandler, error) {
		return handler.NewProjectHandler(
			do.MustInvoke[service.ProjectService](i),
			do.MustInvoke[*blob.S3Deps](i),
			do.MustInvoke[func() time.Duration](i)(),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.RenderHandler, error) {
		return handler.NewRenderHandler(do.MustInvoke[service.RenderService](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.PrintPackHandler, error) {
		return handler.NewPrintPackHandler(do.MustInvoke[service.PrintPackService](i)), nil
	})

	return inj
}
