package models

// Import payload records. IDs here are batch-local: they are scoped to
// one payload and remapped to store-assigned ids during import. Unknown
// JSON fields are ignored.

type ImportDocument struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PublicationDate string `json:"publicationDate,omitempty"` // optional, YYYY-MM-DD
	PDFURL          string `json:"pdf_url,omitempty"`
	TxtURL          string `json:"txt_url,omitempty"`
	MarkdownURL     string `json:"markdown_url,omitempty"`
	JSONURL         string `json:"json_url,omitempty"`
}

// SlotURL returns the source URL for an attachment slot, empty if unset.
func (d *ImportDocument) SlotURL(slot string) string {
	switch slot {
	case SlotPDF:
		return d.PDFURL
	case SlotTxt:
		return d.TxtURL
	case SlotMarkdown:
		return d.MarkdownURL
	case SlotJSON:
		return d.JSONURL
	}
	return ""
}

type ImportArticle struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"documentId"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	PageStart  *int     `json:"pageStart,omitempty"`
	PageEnd    *int     `json:"pageEnd,omitempty"`
}

type ImportEmbedding struct {
	ArticleID string    `json:"articleId"`
	Vector    []float32 `json:"vector"`
	ModelName string    `json:"modelName,omitempty"`
}

type ImportBatch struct {
	Documents  []ImportDocument  `json:"documents,omitempty"`
	Articles   []ImportArticle   `json:"articles,omitempty"`
	Embeddings []ImportEmbedding `json:"embeddings,omitempty"`
}

// ImportStats counts successful creations per category. Skipped records
// (unresolved batch-local references, failed attachment fetches) simply
// do not increment their counter.
type ImportStats struct {
	Documents   int `json:"documents"`
	Articles    int `json:"articles"`
	Embeddings  int `json:"embeddings"`
	Attachments int `json:"attachments"`
}

// ReimportBatch re-embeds existing articles. Entries resolve either by
// store id directly, or by (DocumentName, article title) through the
// Articles list when batch-local ids are used.
type ReimportBatch struct {
	DocumentName string            `json:"document_name,omitempty"`
	Articles     []ImportArticle   `json:"articles,omitempty"`
	Embeddings   []ImportEmbedding `json:"embeddings"`
}

type ReimportStats struct {
	Updated int `json:"updated"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Errored int `json:"errored"`
}
