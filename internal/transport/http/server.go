package http

import (
	"github.com/gin-gonic/gin"

	"docuquery/internal/bootstrap"
	"docuquery/internal/transport/http/handler"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	documentsHandler := handler.NewDocumentsHandler(app.RAG)
	queryHandler := handler.NewQueryHandler(app.RAG)
	adminHandler := handler.NewAdminHandler(app.RAG)

	v1 := router.Group("/api/v1")
	v1.POST("/documents", documentsHandler.Create)
	v1.POST("/documents/upload", documentsHandler.Upload)
	v1.GET("/documents", documentsHandler.List)
	v1.DELETE("/documents/:id", documentsHandler.Delete)
	v1.POST("/query", queryHandler.Query)
	v1.GET("/stats", adminHandler.Stats)
	v1.POST("/reset", adminHandler.Reset)

	return router
}
