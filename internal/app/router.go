package app

import (
	"bizops_backend/docs"
	"bizops_backend/internal/config"
	"bizops_backend/internal/middleware"
	"bizops_backend/internal/model"
	"bizops_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		// OAuth redirect target; the caller is identified by the state value
		public.GET("/google/callback", c.googleAuth.Callback)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	// sessions carrying a role outside the known set are rejected
	authGroup.Use(middleware.RoleMiddleware(model.Employee, model.Manager))
	{
		a.registerGoogleRoutes(authGroup, c)
		a.registerQuestionnaireRoutes(authGroup, c)
	}
}

func (a *App) registerGoogleRoutes(rg *gin.RouterGroup, c *controllers) {
	google := rg.Group("/google")
	{
		google.GET("/auth-url", c.googleAuth.AuthURL)
		google.GET("/status", c.googleAuth.Status)
		google.DELETE("/credential", c.googleAuth.Disconnect)
	}
}

func (a *App) registerQuestionnaireRoutes(rg *gin.RouterGroup, c *controllers) {
	q := rg.Group("/questionnaires")
	{
		q.POST("", c.questionnaire.Create)
		q.GET("", c.questionnaire.List)
		q.GET("/:id", c.questionnaire.Get)
		q.DELETE("/:id", c.questionnaire.Delete)
		q.GET("/:id/responses", c.questionnaire.ListResponses)
		q.GET("/:id/sync-status", c.questionnaire.GetSyncStatus)

		q.POST("/:id/convert", c.questionnaire.Convert)
		q.POST("/:id/sync", c.questionnaire.SyncResponses)
		q.POST("/:id/export", c.questionnaire.ExportToSheet)
	}
}
