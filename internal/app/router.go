package app

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/enrollment-insight-api/api/swagger"
	"github.com/noah-isme/enrollment-insight-api/internal/handler"
	"github.com/noah-isme/enrollment-insight-api/internal/middleware"
	"github.com/noah-isme/enrollment-insight-api/pkg/config"
	"github.com/noah-isme/enrollment-insight-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/enrollment-insight-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enrollment-insight-api/pkg/middleware/requestid"
)

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	if a.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = a.Config.Import.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(a.Logger))
	r.Use(corsmiddleware.New(a.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(a.Metrics))

	metricsHandler := handler.NewMetricsHandler(a.Metrics, a.Store)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if a.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(a.Config.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	if a.Config.JWT.Enabled {
		api.Use(middleware.JWT(a.Auth))
	}

	importHandler := handler.NewImportHandler(a.Imports, a.Config.Import.MaxFileSizeBytes)
	comparisonHandler := handler.NewComparisonHandler(a.Comparisons, a.Exports)
	insightHandler := handler.NewInsightHandler(a.Insights)

	units := api.Group("/units/:unitId")
	units.POST("/imports", importHandler.Upload)
	units.GET("/temporal-comparison", comparisonHandler.Compare)
	units.GET("/temporal-comparison/export", comparisonHandler.Export)
	units.GET("/facets", insightHandler.Facets)
	units.GET("/kpis", insightHandler.KPIs)
	units.GET("/distribution", insightHandler.Distribution)
	units.GET("/evolution", insightHandler.Evolution)
	units.GET("/top-dates", insightHandler.TopDates)

	return r
}
