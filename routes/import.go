package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"document-archive-platform/internal/config"
	"document-archive-platform/internal/telemetry"
	"document-archive-platform/middleware"
	"document-archive-platform/models"
	"document-archive-platform/services"
	"document-archive-platform/utils"
)

func SetupImportRoutes(router *gin.Engine, cfg *config.Config, importService *services.ImportService, metrics *telemetry.Metrics) {
	api := router.Group("/api")
	api.Use(middleware.ImportAuth(cfg))

	api.POST("/import", func(c *gin.Context) {
		var batch models.ImportBatch
		if err := c.ShouldBindJSON(&batch); err != nil {
			utils.BadRequest(c, "Invalid import payload")
			return
		}

		stats, err := importService.Import(c.Request.Context(), &batch)
		if err != nil {
			// The transaction rolled back; nothing was written.
			utils.UnprocessableEntity(c, err.Error())
			return
		}
		metrics.RecordImport(stats.Documents, stats.Articles, stats.Embeddings)

		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"imported": stats,
		})
	})

	api.POST("/import/reimport_embeddings", func(c *gin.Context) {
		var batch models.ReimportBatch
		if err := c.ShouldBindJSON(&batch); err != nil {
			utils.BadRequest(c, "Invalid reimport payload")
			return
		}

		stats, err := importService.ReimportEmbeddings(c.Request.Context(), &batch)
		if err != nil {
			utils.UnprocessableEntity(c, err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"reimported": stats,
		})
	})
}
