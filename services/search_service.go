package services

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"document-archive-platform/internal/store"
	"document-archive-platform/models"
)

// ErrQueryRequired is returned when a search request carries neither a
// query string nor a precomputed embedding.
var ErrQueryRequired = errors.New("query parameter is required")

const defaultSearchLimit = 10

// Embedder turns query text into a vector. Satisfied by
// ai.EmbeddingClient; tests substitute a stub.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// SearchRequest is the common shape of all four search endpoints.
// Limit and Offset distinguish absent from zero; absent means the
// defaults (10 and 0). StartYear/EndYear of 0 leave that side of the
// publication-year filter open.
type SearchRequest struct {
	Query     string
	Embedding []float32
	Limit     *int
	Offset    *int
	StartYear int
	EndYear   int
}

func (r *SearchRequest) page() store.Page {
	limit := defaultSearchLimit
	if r.Limit != nil {
		limit = *r.Limit
	}
	offset := 0
	if r.Offset != nil {
		offset = *r.Offset
	}
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	return store.Page{Limit: limit, Offset: offset}
}

func (r *SearchRequest) years() *store.YearRange {
	if r.StartYear == 0 && r.EndYear == 0 {
		return nil
	}
	return &store.YearRange{Start: r.StartYear, End: r.EndYear}
}

// SemanticHit pairs an article with its similarity to the query,
// where similarity is 1 minus the cosine distance.
type SemanticHit struct {
	Article    models.Article
	Similarity float64
}

// SemanticResult carries everything the semantic endpoint returns,
// including the query vector so callers can re-run the search without
// paying for another embedding.
type SemanticResult struct {
	Total     int64
	ModelName string
	Embedding []float32
	Hits      []SemanticHit
}

// LexicalResult is the response shape of the keyword, category and
// summary searches.
type LexicalResult struct {
	Total    int64
	Articles []models.Article
}

// SearchService answers the four search modes against the catalog and
// the vector index.
type SearchService struct {
	catalog  store.Catalog
	vectors  store.VectorIndex
	embedder Embedder
}

func NewSearchService(catalog store.Catalog, vectors store.VectorIndex, embedder Embedder) *SearchService {
	return &SearchService{catalog: catalog, vectors: vectors, embedder: embedder}
}

// SemanticSearch embeds the query (or reuses a precomputed vector) and
// ranks articles by cosine similarity. A provided embedding wins over
// the query string, and in that case no provider call is made.
func (s *SearchService) SemanticSearch(ctx context.Context, req SearchRequest) (*SemanticResult, error) {
	ctx, span := otel.Tracer("search-service").Start(ctx, "semantic_search")
	defer span.End()

	vector := req.Embedding
	modelName := ""
	if len(vector) == 0 {
		if strings.TrimSpace(req.Query) == "" {
			return nil, ErrQueryRequired
		}
		embedded, err := s.embedder.Embed(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		vector = embedded
		modelName = s.embedder.ModelName()
	}

	total, neighbors, err := s.vectors.Nearest(ctx, vector, req.years(), req.page())
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("search.total", total))

	ids := make([]primitive.ObjectID, 0, len(neighbors))
	for _, n := range neighbors {
		ids = append(ids, n.ArticleID)
	}
	articles, err := s.catalog.GetArticlesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	hits := make([]SemanticHit, 0, len(neighbors))
	for _, n := range neighbors {
		article, ok := byID[n.ArticleID]
		if !ok {
			// Orphaned vector; the article was deleted underneath it.
			continue
		}
		hits = append(hits, SemanticHit{
			Article:    article,
			Similarity: 1 - n.Distance,
		})
	}

	return &SemanticResult{
		Total:     total,
		ModelName: modelName,
		Embedding: vector,
		Hits:      hits,
	}, nil
}

// KeywordSearch matches query terms against article keywords.
func (s *SearchService) KeywordSearch(ctx context.Context, req SearchRequest) (*LexicalResult, error) {
	return s.searchByField(ctx, store.FieldKeywords, req)
}

// CategorySearch matches query terms against article categories.
func (s *SearchService) CategorySearch(ctx context.Context, req SearchRequest) (*LexicalResult, error) {
	return s.searchByField(ctx, store.FieldCategories, req)
}

// SummarySearch matches query terms against article summaries.
func (s *SearchService) SummarySearch(ctx context.Context, req SearchRequest) (*LexicalResult, error) {
	return s.searchByField(ctx, store.FieldSummary, req)
}

// searchByField lowercases the query, splits it on whitespace, and
// matches an article when any element of the target field contains any
// of the terms.
func (s *SearchService) searchByField(ctx context.Context, field store.SearchField, req SearchRequest) (*LexicalResult, error) {
	ctx, span := otel.Tracer("search-service").Start(ctx, "lexical_search")
	defer span.End()
	span.SetAttributes(attribute.String("search.field", string(field)))

	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrQueryRequired
	}
	terms := strings.Fields(strings.ToLower(req.Query))

	total, articles, err := s.catalog.FindArticlesByField(ctx, field, terms, req.years(), req.page())
	if err != nil {
		return nil, err
	}
	return &LexicalResult{Total: total, Articles: articles}, nil
}
