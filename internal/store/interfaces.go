// Package store defines the data-access contracts the query engine and
// import pipeline are written against, so the backing database can be
// swapped without touching either. The mongo subpackage is the
// production backend; the memory subpackage backs tests.
package store

import (
	"context"
	"errors"
	"io"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-archive-platform/models"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch is returned when an upserted vector does not
	// match the index's configured dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// SearchField selects which article field a lexical search matches on.
type SearchField string

const (
	FieldKeywords   SearchField = "keywords"
	FieldCategories SearchField = "categories"
	FieldSummary    SearchField = "summary"
)

// YearRange filters by publication year, inclusive. A zero bound is
// unbounded on that side. Records without a publication date never
// match a bounded range.
type YearRange struct {
	Start int
	End   int
}

// Matches reports whether a publication year (0 = unknown) falls in the
// range.
func (r *YearRange) Matches(year int) bool {
	if r == nil || (r.Start == 0 && r.End == 0) {
		return true
	}
	if year == 0 {
		return false
	}
	if r.Start != 0 && year < r.Start {
		return false
	}
	if r.End != 0 && year > r.End {
		return false
	}
	return true
}

// Page is applied after filtering and ordering.
type Page struct {
	Limit  int
	Offset int
}

// ArticleFilter narrows article listings. Category and Keyword are
// case-insensitive substring matches against the array fields.
type ArticleFilter struct {
	Years    *YearRange
	Category string
	Keyword  string
}

// Neighbor is one nearest-neighbor hit, ascending cosine distance.
type Neighbor struct {
	ArticleID primitive.ObjectID
	Distance  float64
}

// Stats are the catalog row counts.
type Stats struct {
	Documents int64
	Articles  int64
}

// Catalog is the document/article relational store.
//
// Listing order is most recently created first. Totals always count the
// full filtered set, independent of pagination.
type Catalog interface {
	CreateDocument(ctx context.Context, doc *models.Document) (primitive.ObjectID, error)
	GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error)
	GetDocumentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Document, error)
	ListDocuments(ctx context.Context, years *YearRange, page Page) (int64, []models.Document, error)
	// DeleteDocument removes the document, its articles and their
	// embeddings (cascade), and its attachment blobs.
	DeleteDocument(ctx context.Context, id primitive.ObjectID) error
	SetAttachment(ctx context.Context, docID primitive.ObjectID, slot string, att models.Attachment) error

	CreateArticle(ctx context.Context, article *models.Article) (primitive.ObjectID, error)
	GetArticle(ctx context.Context, id primitive.ObjectID) (*models.Article, error)
	GetArticlesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Article, error)
	ArticlesByDocument(ctx context.Context, docID primitive.ObjectID) ([]models.Article, error)
	// ArticleCounts returns the number of articles per document id.
	ArticleCounts(ctx context.Context, docIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error)
	ListArticles(ctx context.Context, filter ArticleFilter, page Page) (int64, []models.Article, error)
	// FindArticlesByField matches an article when any element of the
	// array field (or the summary) contains, case-insensitively, any of
	// the terms.
	FindArticlesByField(ctx context.Context, field SearchField, terms []string, years *YearRange, page Page) (int64, []models.Article, error)
	// FindArticleByTitle resolves an article by its owning document's
	// name plus its title, for re-embedding batches keyed that way.
	FindArticleByTitle(ctx context.Context, documentName, title string) (*models.Article, error)

	Counts(ctx context.Context) (Stats, error)
}

// VectorIndex stores (article, vector) pairs and answers
// nearest-neighbor queries by cosine distance.
type VectorIndex interface {
	// Upsert replaces any existing row for the article. It reports
	// whether a new row was created. ErrDimensionMismatch when the
	// vector length differs from the configured dimensionality.
	Upsert(ctx context.Context, emb *models.Embedding) (bool, error)
	GetByArticle(ctx context.Context, articleID primitive.ObjectID) (*models.Embedding, error)
	// Nearest returns the total number of rows matching the filter and
	// the page of neighbors ordered by ascending cosine distance.
	// Limit/offset apply after the filter.
	Nearest(ctx context.Context, query []float32, years *YearRange, page Page) (int64, []Neighbor, error)
	DeleteByArticles(ctx context.Context, articleIDs []primitive.ObjectID) error
	Count(ctx context.Context) (int64, error)
}

// AttachmentInfo describes a stored blob.
type AttachmentInfo struct {
	Filename    string
	ContentType string
	Size        int64
}

// AttachmentStore is an opaque blob store addressed by id.
type AttachmentStore interface {
	Put(ctx context.Context, filename, contentType string, data []byte) (primitive.ObjectID, error)
	Open(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, *AttachmentInfo, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// TxRunner runs fn inside one unit of work: any error aborts and rolls
// back every write made through the ctx it passes to fn.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
