package routes

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-archive-platform/internal/store"
	"document-archive-platform/models"
)

// JSON shapes are camelCase; attachments surface as download URLs
// under /api/attachments.

func attachmentPath(att models.Attachment) string {
	return "/api/attachments/" + att.FileID.Hex()
}

func slotURLs(doc *models.Document) gin.H {
	out := gin.H{
		"pdfUrl":      nil,
		"txtUrl":      nil,
		"markdownUrl": nil,
	}
	if doc == nil {
		return out
	}
	if att, ok := doc.Attachments[models.SlotPDF]; ok {
		out["pdfUrl"] = attachmentPath(att)
	}
	if att, ok := doc.Attachments[models.SlotTxt]; ok {
		out["txtUrl"] = attachmentPath(att)
	}
	if att, ok := doc.Attachments[models.SlotMarkdown]; ok {
		out["markdownUrl"] = attachmentPath(att)
	}
	return out
}

func articleJSON(article models.Article, doc *models.Document) gin.H {
	out := gin.H{
		"id":           article.ID.Hex(),
		"documentId":   article.DocumentID.Hex(),
		"documentName": article.DocumentName,
		"title":        article.Title,
		"summary":      article.Summary,
		"categories":   stringsOrEmpty(article.Categories),
		"keywords":     stringsOrEmpty(article.Keywords),
		"pageStart":    article.PageStart,
		"pageEnd":      article.PageEnd,
		"createdAt":    article.CreatedAt,
	}
	if article.PublicationYear != 0 {
		out["publicationYear"] = article.PublicationYear
	} else {
		out["publicationYear"] = nil
	}
	for k, v := range slotURLs(doc) {
		out[k] = v
	}
	return out
}

func documentJSON(doc models.Document, articleCount int) gin.H {
	out := gin.H{
		"id":           doc.ID.Hex(),
		"name":         doc.Name,
		"createdAt":    doc.CreatedAt,
		"articleCount": articleCount,
	}
	if doc.PublicationDate != nil {
		out["publicationDate"] = doc.PublicationDate.Format("2006-01-02")
		out["publicationYear"] = doc.PublicationDate.Year()
	} else {
		out["publicationDate"] = nil
		out["publicationYear"] = nil
	}
	for k, v := range slotURLs(&doc) {
		out[k] = v
	}
	return out
}

func stringsOrEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// documentsForArticles loads the owning documents of a result page so
// their attachment URLs can be embedded in article responses.
func documentsForArticles(ctx context.Context, catalog store.Catalog, articles []models.Article) map[primitive.ObjectID]*models.Document {
	seen := make(map[primitive.ObjectID]bool, len(articles))
	var ids []primitive.ObjectID
	for _, a := range articles {
		if !seen[a.DocumentID] {
			seen[a.DocumentID] = true
			ids = append(ids, a.DocumentID)
		}
	}
	out := make(map[primitive.ObjectID]*models.Document, len(ids))
	docs, err := catalog.GetDocumentsByIDs(ctx, ids)
	if err != nil {
		// Attachment URLs are decoration; the articles still go out.
		return out
	}
	for i := range docs {
		out[docs[i].ID] = &docs[i]
	}
	return out
}
