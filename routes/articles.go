package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"document-archive-platform/internal/store"
	"document-archive-platform/utils"
)

func SetupArticleRoutes(router *gin.Engine, catalog store.Catalog) {
	api := router.Group("/api")

	api.GET("/articles", func(c *gin.Context) {
		filter := store.ArticleFilter{
			Years:    yearRangeQuery(c),
			Category: c.Query("category"),
			Keyword:  c.Query("keyword"),
		}

		total, articles, err := catalog.ListArticles(c.Request.Context(), filter, pageQuery(c))
		if err != nil {
			utils.InternalError(c, "Failed to list articles")
			return
		}

		documents := documentsForArticles(c.Request.Context(), catalog, articles)
		rows := make([]gin.H, 0, len(articles))
		for _, article := range articles {
			rows = append(rows, articleJSON(article, documents[article.DocumentID]))
		}
		c.JSON(http.StatusOK, gin.H{
			"total":    total,
			"articles": rows,
		})
	})
}
