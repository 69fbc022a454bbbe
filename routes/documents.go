package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-archive-platform/internal/config"
	"document-archive-platform/internal/logger"
	"document-archive-platform/internal/store"
	"document-archive-platform/middleware"
	"document-archive-platform/models"
	"document-archive-platform/utils"
)

const documentPageSize = 500

func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, catalog store.Catalog, attachments store.AttachmentStore) {
	api := router.Group("/api")

	api.GET("/documents", func(c *gin.Context) {
		years := yearRangeQuery(c)

		if _, grouped := c.GetQuery("group_by_year"); grouped {
			listDocumentsGrouped(c, catalog, years)
			return
		}

		total, docs, err := catalog.ListDocuments(c.Request.Context(), years, pageQuery(c))
		if err != nil {
			utils.InternalError(c, "Failed to list documents")
			return
		}

		counts, err := articleCountsFor(c, catalog, docs)
		if err != nil {
			utils.InternalError(c, "Failed to count articles")
			return
		}
		rows := make([]gin.H, 0, len(docs))
		for _, doc := range docs {
			rows = append(rows, documentJSON(doc, counts[doc.ID]))
		}
		c.JSON(http.StatusOK, gin.H{
			"total":     total,
			"documents": rows,
		})
	})

	api.GET("/documents/:id", func(c *gin.Context) {
		doc, ok := lookupDocument(c, catalog)
		if !ok {
			return
		}

		articles, err := catalog.ArticlesByDocument(c.Request.Context(), doc.ID)
		if err != nil {
			utils.InternalError(c, "Failed to load articles")
			return
		}

		out := documentJSON(*doc, len(articles))
		rows := make([]gin.H, 0, len(articles))
		for _, article := range articles {
			rows = append(rows, articleJSON(article, doc))
		}
		out["articles"] = rows
		c.JSON(http.StatusOK, out)
	})

	api.GET("/documents/:id/markdown", func(c *gin.Context) {
		doc, ok := lookupDocument(c, catalog)
		if !ok {
			return
		}

		att, hasMarkdown := doc.Attachments[models.SlotMarkdown]
		if !hasMarkdown {
			c.JSON(http.StatusOK, gin.H{
				"markdownContent": nil,
				"htmlContent":     nil,
			})
			return
		}

		rc, _, err := attachments.Open(c.Request.Context(), att.FileID)
		if err != nil {
			utils.InternalError(c, "Failed to read markdown attachment")
			return
		}
		defer rc.Close()

		source, err := io.ReadAll(rc)
		if err != nil {
			utils.InternalError(c, "Failed to read markdown attachment")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"markdownContent": string(source),
			"htmlContent":     utils.RenderMarkdown(source),
		})
	})

	api.DELETE("/documents/:id", middleware.ImportAuth(cfg), func(c *gin.Context) {
		doc, ok := lookupDocument(c, catalog)
		if !ok {
			return
		}

		if err := catalog.DeleteDocument(c.Request.Context(), doc.ID); err != nil {
			utils.InternalError(c, "Failed to delete document")
			return
		}
		logger.Info("Document deleted", "document_id", doc.ID.Hex(), "name", doc.Name)
		c.JSON(http.StatusOK, gin.H{
			"deleted": doc.ID.Hex(),
		})
	})

	api.GET("/attachments/:id", func(c *gin.Context) {
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			utils.NotFound(c, "Attachment not found")
			return
		}

		rc, info, err := attachments.Open(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			utils.NotFound(c, "Attachment not found")
			return
		}
		if err != nil {
			utils.InternalError(c, "Failed to open attachment")
			return
		}
		defer rc.Close()

		extraHeaders := map[string]string{
			"Content-Disposition": fmt.Sprintf("inline; filename=%q", info.Filename),
		}
		c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, extraHeaders)
	})
}

// lookupDocument resolves the :id path param, writing the 404 itself
// when the id is malformed or unknown.
func lookupDocument(c *gin.Context, catalog store.Catalog) (*models.Document, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.NotFound(c, "Document not found")
		return nil, false
	}
	doc, err := catalog.GetDocument(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		utils.NotFound(c, "Document not found")
		return nil, false
	}
	if err != nil {
		utils.InternalError(c, "Failed to load document")
		return nil, false
	}
	return doc, true
}

func articleCountsFor(c *gin.Context, catalog store.Catalog, docs []models.Document) (map[primitive.ObjectID]int, error) {
	ids := make([]primitive.ObjectID, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return catalog.ArticleCounts(c.Request.Context(), ids)
}

// listDocumentsGrouped returns the full filtered set bucketed by
// publication year, newest year first, with undated documents in a
// trailing year-0 bucket.
func listDocumentsGrouped(c *gin.Context, catalog store.Catalog, years *store.YearRange) {
	var all []models.Document
	offset := 0
	for {
		total, page, err := catalog.ListDocuments(c.Request.Context(), years, store.Page{Limit: documentPageSize, Offset: offset})
		if err != nil {
			utils.InternalError(c, "Failed to list documents")
			return
		}
		all = append(all, page...)
		offset += len(page)
		if len(page) == 0 || int64(offset) >= total {
			break
		}
	}

	counts, err := articleCountsFor(c, catalog, all)
	if err != nil {
		utils.InternalError(c, "Failed to count articles")
		return
	}

	buckets := make(map[int][]gin.H)
	for _, doc := range all {
		buckets[doc.PublicationYear] = append(buckets[doc.PublicationYear], documentJSON(doc, counts[doc.ID]))
	}

	yearKeys := make([]int, 0, len(buckets))
	for year := range buckets {
		yearKeys = append(yearKeys, year)
	}
	// Newest year first; the undated year-0 bucket lands last.
	sort.Sort(sort.Reverse(sort.IntSlice(yearKeys)))

	groups := make([]gin.H, 0, len(yearKeys))
	for _, year := range yearKeys {
		groups = append(groups, gin.H{
			"year":      year,
			"documents": buckets[year],
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   len(all),
		"grouped": true,
		"years":   groups,
	})
}
