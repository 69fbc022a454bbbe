package routes

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"document-archive-platform/internal/store"
)

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func pageQuery(c *gin.Context) store.Page {
	limit := intQuery(c, "limit", 10)
	offset := intQuery(c, "offset", 0)
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return store.Page{Limit: limit, Offset: offset}
}

func yearRangeQuery(c *gin.Context) *store.YearRange {
	start := intQuery(c, "start_year", 0)
	end := intQuery(c, "end_year", 0)
	if start == 0 && end == 0 {
		return nil
	}
	return &store.YearRange{Start: start, End: end}
}
