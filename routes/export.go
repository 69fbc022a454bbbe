package routes

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"document-archive-platform/internal/logger"
	"document-archive-platform/internal/store"
	"document-archive-platform/services"
	"document-archive-platform/utils"
)

func SetupExportRoutes(router *gin.Engine, exportService *services.ExportService) {
	api := router.Group("/api")

	api.GET("/export/articles", func(c *gin.Context) {
		filter := store.ArticleFilter{
			Years:    yearRangeQuery(c),
			Category: c.Query("category"),
			Keyword:  c.Query("keyword"),
		}

		f, count, err := exportService.ArticlesWorkbook(c.Request.Context(), filter)
		if err != nil {
			utils.InternalError(c, "Failed to build export")
			return
		}
		defer f.Close()

		filename := fmt.Sprintf("articles-%s.xlsx", time.Now().Format("2006-01-02"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Status(http.StatusOK)
		if err := f.Write(c.Writer); err != nil {
			logger.Error("Failed to stream export", "error", err)
			return
		}
		logger.Info("Articles exported", "count", count)
	})
}
