package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"document-archive-platform/internal/ai"
	"document-archive-platform/internal/store"
	"document-archive-platform/internal/telemetry"
	"document-archive-platform/models"
	"document-archive-platform/services"
	"document-archive-platform/utils"
)

type searchPayload struct {
	Query     string    `json:"query"`
	Embedding []float32 `json:"embedding"`
	Limit     *int      `json:"limit"`
	Offset    *int      `json:"offset"`
	StartYear int       `json:"start_year"`
	EndYear   int       `json:"end_year"`
}

func (p *searchPayload) toRequest() services.SearchRequest {
	return services.SearchRequest{
		Query:     p.Query,
		Embedding: p.Embedding,
		Limit:     p.Limit,
		Offset:    p.Offset,
		StartYear: p.StartYear,
		EndYear:   p.EndYear,
	}
}

// respondSearchError maps service errors onto the HTTP taxonomy:
// a missing query is the caller's fault; everything else, provider
// trouble and backend failures alike, is reported as a 503 so callers
// can retry.
func respondSearchError(c *gin.Context, err error) {
	var providerErr *ai.ProviderError
	switch {
	case errors.Is(err, services.ErrQueryRequired):
		utils.BadRequest(c, "Query parameter is required")
	case errors.Is(err, ai.ErrNotConfigured):
		utils.ServiceUnavailable(c, "Embedding provider is not configured")
	case errors.As(err, &providerErr):
		utils.ServiceUnavailable(c, providerErr.Message)
	default:
		utils.ServiceUnavailable(c, err.Error())
	}
}

func SetupSearchRoutes(router *gin.Engine, catalog store.Catalog, searchService *services.SearchService, metrics *telemetry.Metrics) {
	api := router.Group("/api")

	api.POST("/search-text", func(c *gin.Context) {
		var payload searchPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			utils.BadRequest(c, "Invalid request body")
			return
		}

		start := time.Now()
		result, err := searchService.SemanticSearch(c.Request.Context(), payload.toRequest())
		metrics.RecordSearch("text", time.Since(start).Seconds(), err == nil)
		if err != nil {
			respondSearchError(c, err)
			return
		}

		articles := make([]models.Article, 0, len(result.Hits))
		for _, hit := range result.Hits {
			articles = append(articles, hit.Article)
		}
		documents := documentsForArticles(c.Request.Context(), catalog, articles)

		results := make([]gin.H, 0, len(result.Hits))
		for _, hit := range result.Hits {
			row := articleJSON(hit.Article, documents[hit.Article.DocumentID])
			row["similarity"] = hit.Similarity
			results = append(results, row)
		}

		c.JSON(http.StatusOK, gin.H{
			"total":           result.Total,
			"embedding_model": result.ModelName,
			"embedding":       result.Embedding,
			"results":         results,
		})
	})

	lexical := func(mode string, search func(c *gin.Context, req services.SearchRequest) (*services.LexicalResult, error)) gin.HandlerFunc {
		return func(c *gin.Context) {
			var payload searchPayload
			if err := c.ShouldBindJSON(&payload); err != nil {
				utils.BadRequest(c, "Invalid request body")
				return
			}

			start := time.Now()
			result, err := search(c, payload.toRequest())
			metrics.RecordSearch(mode, time.Since(start).Seconds(), err == nil)
			if err != nil {
				respondSearchError(c, err)
				return
			}

			documents := documentsForArticles(c.Request.Context(), catalog, result.Articles)
			results := make([]gin.H, 0, len(result.Articles))
			for _, article := range result.Articles {
				results = append(results, articleJSON(article, documents[article.DocumentID]))
			}
			c.JSON(http.StatusOK, gin.H{
				"total":   result.Total,
				"results": results,
			})
		}
	}

	api.POST("/search-keywords", lexical("keywords", func(c *gin.Context, req services.SearchRequest) (*services.LexicalResult, error) {
		return searchService.KeywordSearch(c.Request.Context(), req)
	}))
	api.POST("/search-categories", lexical("categories", func(c *gin.Context, req services.SearchRequest) (*services.LexicalResult, error) {
		return searchService.CategorySearch(c.Request.Context(), req)
	}))
	api.POST("/search-summary", lexical("summary", func(c *gin.Context, req services.SearchRequest) (*services.LexicalResult, error) {
		return searchService.SummarySearch(c.Request.Context(), req)
	}))
}
