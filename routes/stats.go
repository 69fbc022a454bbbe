package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"document-archive-platform/internal/config"
	"document-archive-platform/internal/store"
	"document-archive-platform/utils"
)

const statsCacheKey = "stats:counts"

type statsResponse struct {
	Documents  int64 `json:"documents"`
	Articles   int64 `json:"articles"`
	Embeddings int64 `json:"embeddings"`
}

// SetupStatsRoutes serves the corpus counts. Counts change only on
// import, so they are cached briefly in redis; with no redis client
// every request hits the store.
func SetupStatsRoutes(router *gin.Engine, cfg *config.Config, catalog store.Catalog, vectors store.VectorIndex, rdb *redis.Client) {
	api := router.Group("/api")

	api.GET("/stats", func(c *gin.Context) {
		ctx := c.Request.Context()

		if rdb != nil {
			if cached, err := rdb.Get(ctx, statsCacheKey).Result(); err == nil {
				var resp statsResponse
				if json.Unmarshal([]byte(cached), &resp) == nil {
					c.JSON(http.StatusOK, resp)
					return
				}
			}
		}

		resp, err := collectStats(ctx, catalog, vectors)
		if err != nil {
			utils.ServiceUnavailable(c, "Failed to collect stats")
			return
		}

		if rdb != nil {
			if payload, err := json.Marshal(resp); err == nil {
				rdb.Set(ctx, statsCacheKey, payload, time.Duration(cfg.StatsCacheTTL)*time.Second)
			}
		}
		c.JSON(http.StatusOK, resp)
	})
}

func collectStats(ctx context.Context, catalog store.Catalog, vectors store.VectorIndex) (*statsResponse, error) {
	counts, err := catalog.Counts(ctx)
	if err != nil {
		return nil, err
	}
	embeddings, err := vectors.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &statsResponse{
		Documents:  counts.Documents,
		Articles:   counts.Articles,
		Embeddings: embeddings,
	}, nil
}
