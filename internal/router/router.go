package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	_ "github.com/qrdesk/qrstudio/docs"
	"github.com/qrdesk/qrstudio/internal/config"
	"github.com/qrdesk/qrstudio/internal/middleware"
	"github.com/qrdesk/qrstudio/internal/modules/handler"
	"github.com/qrdesk/qrstudio/internal/modules/serializer"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type RouterDeps struct {
	Config           *config.Config
	Log              *zap.Logger
	Verifier         middleware.TokenVerifier
	RenderLimiter    *limiter.Limiter
	TemplateHandler  *handler.TemplateHandler
	ProjectHandler   *handler.ProjectHandler
	RenderHandler    *handler.RenderHandler
	PrintPackHandler *handler.PrintPackHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(gin.Recovery())

	// Add OpenTelemetry middleware if enabled (using configuration system)
	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		// Add trace ID to response header
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AddAllowHeaders("Authorization", d.Config.Auth.PlanHeader)
	corsCfg.AddExposeHeaders("Content-Disposition", "X-Trace-Id", "X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset")
	r.Use(cors.New(corsCfg))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Response{Msg: "ok"}) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		v1.Use(middleware.OwnerAuth(d.Config.Auth, d.Verifier))

		v1.GET("/templates", d.TemplateHandler.ListTemplates)
		v1.GET("/quota", d.ProjectHandler.GetQuota)
		v1.POST("/logos", d.ProjectHandler.CreateLogoUpload)

		project := v1.Group("/projects")
		{
			project.GET("", d.ProjectHandler.ListProjects)
			project.POST("", d.ProjectHandler.CreateProject)
			project.GET("/:project_id", d.ProjectHandler.GetProject)
			project.PATCH("/:project_id", d.ProjectHandler.EditProject)

			render := project.Group("/:project_id")
			{
				render.Use(middleware.OwnerRateLimit(d.RenderLimiter, d.Log))

				render.GET("/qr", d.RenderHandler.RenderQR)
				render.POST("/print-pack", d.PrintPackHandler.EnsurePrintPack)
			}

			project.GET("/:project_id/print-packs", d.PrintPackHandler.ListPrintPacks)
			project.GET("/:project_id/print-packs/:hash", d.PrintPackHandler.GetPrintPack)
		}
	}
	return r
}
