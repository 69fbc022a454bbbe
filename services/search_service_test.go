package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"document-archive-platform/internal/store/memory"
	"document-archive-platform/models"
)

type stubEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) ModelName() string { return "test-embedding-model" }

func intPtr(n int) *int { return &n }

func seedArticle(t *testing.T, st *memory.Store, doc *models.Document, title string, year int, keywords, categories []string, summary string, vector []float32) models.Article {
	t.Helper()
	ctx := context.Background()
	article := models.Article{
		DocumentID:      doc.ID,
		DocumentName:    doc.Name,
		Title:           title,
		Summary:         summary,
		Categories:      categories,
		Keywords:        keywords,
		PublicationYear: year,
	}
	id, err := st.CreateArticle(ctx, &article)
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	article.ID = id
	if vector != nil {
		if _, err := st.Upsert(ctx, &models.Embedding{
			ArticleID:       id,
			Vector:          vector,
			PublicationYear: year,
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return article
}

func seedDocument(t *testing.T, st *memory.Store, name string, year int) *models.Document {
	t.Helper()
	doc := &models.Document{Name: name}
	if year != 0 {
		date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		doc.PublicationDate = &date
	}
	if _, err := st.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	return doc
}

func TestSemanticSearchRanksBySimilarity(t *testing.T) {
	st := memory.NewStore(3)
	doc := seedDocument(t, st, "Eph79_06", 1979)
	far := seedArticle(t, st, doc, "Far", 1979, nil, nil, "", []float32{0, 1, 0})
	near := seedArticle(t, st, doc, "Near", 1979, nil, nil, "", []float32{1, 0, 0})

	embedder := &stubEmbedder{vector: []float32{1, 0, 0}}
	svc := NewSearchService(st, st, embedder)

	res, err := svc.SemanticSearch(context.Background(), SearchRequest{Query: "orbits"})
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if res.Total != 2 || len(res.Hits) != 2 {
		t.Fatalf("got total %d, %d hits, want 2 and 2", res.Total, len(res.Hits))
	}
	if res.Hits[0].Article.ID != near.ID || res.Hits[1].Article.ID != far.ID {
		t.Fatalf("wrong order: %v then %v", res.Hits[0].Article.Title, res.Hits[1].Article.Title)
	}
	if got := res.Hits[0].Similarity; got < 0.999 {
		t.Fatalf("identical vectors should have similarity 1, got %f", got)
	}
	if res.ModelName != "test-embedding-model" {
		t.Fatalf("model name %q", res.ModelName)
	}
	if len(res.Embedding) != 3 {
		t.Fatalf("expected the query vector to be echoed back, got %d dims", len(res.Embedding))
	}
}

func TestSemanticSearchPrecomputedVectorSkipsEmbedder(t *testing.T) {
	st := memory.NewStore(3)
	doc := seedDocument(t, st, "Doc", 2000)
	seedArticle(t, st, doc, "A", 2000, nil, nil, "", []float32{1, 0, 0})

	embedder := &stubEmbedder{err: errors.New("should not be called")}
	svc := NewSearchService(st, st, embedder)

	res, err := svc.SemanticSearch(context.Background(), SearchRequest{
		Embedding: []float32{1, 0, 0},
	})
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if embedder.calls != 0 {
		t.Fatalf("embedder called %d times with a precomputed vector", embedder.calls)
	}
	if res.ModelName != "" {
		t.Fatalf("no provider call, model name should be empty, got %q", res.ModelName)
	}
	if len(res.Hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(res.Hits))
	}
}

func TestSemanticSearchEmptyQueryRejected(t *testing.T) {
	st := memory.NewStore(3)
	svc := NewSearchService(st, st, &stubEmbedder{vector: []float32{1, 0, 0}})

	_, err := svc.SemanticSearch(context.Background(), SearchRequest{Query: "   "})
	if !errors.Is(err, ErrQueryRequired) {
		t.Fatalf("got %v, want ErrQueryRequired", err)
	}
}

func TestSemanticSearchEmbedderFailureSurfaces(t *testing.T) {
	st := memory.NewStore(3)
	wantErr := errors.New("provider down")
	svc := NewSearchService(st, st, &stubEmbedder{err: wantErr})

	_, err := svc.SemanticSearch(context.Background(), SearchRequest{Query: "orbits"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want wrapped provider error", err)
	}
}

func TestSemanticSearchYearFilter(t *testing.T) {
	st := memory.NewStore(3)
	old := seedDocument(t, st, "Old", 1961)
	recent := seedDocument(t, st, "Recent", 1999)
	seedArticle(t, st, old, "OldArticle", 1961, nil, nil, "", []float32{1, 0, 0})
	kept := seedArticle(t, st, recent, "RecentArticle", 1999, nil, nil, "", []float32{0.9, 0.1, 0})

	svc := NewSearchService(st, st, &stubEmbedder{vector: []float32{1, 0, 0}})
	res, err := svc.SemanticSearch(context.Background(), SearchRequest{
		Query:     "orbits",
		StartYear: 1990,
	})
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if res.Total != 1 || len(res.Hits) != 1 || res.Hits[0].Article.ID != kept.ID {
		t.Fatalf("year filter leaked: total=%d hits=%d", res.Total, len(res.Hits))
	}
}

func TestKeywordSearchSplitsTermsAndMatchesSubstrings(t *testing.T) {
	st := memory.NewStore(3)
	doc := seedDocument(t, st, "Doc", 1999)
	hit := seedArticle(t, st, doc, "Hit", 1999, []string{"Database Systems"}, nil, "", nil)
	seedArticle(t, st, doc, "Miss", 1999, []string{"astronomy"}, nil, "", nil)

	svc := NewSearchService(st, st, &stubEmbedder{})
	res, err := svc.KeywordSearch(context.Background(), SearchRequest{Query: "DATA unrelated"})
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if res.Total != 1 || len(res.Articles) != 1 || res.Articles[0].ID != hit.ID {
		t.Fatalf("got total=%d articles=%d", res.Total, len(res.Articles))
	}
}

func TestSummarySearchMatchesAnyTerm(t *testing.T) {
	st := memory.NewStore(3)
	doc := seedDocument(t, st, "Doc", 1999)
	seedArticle(t, st, doc, "A", 1999, nil, nil, "Observations of Jupiter", nil)
	seedArticle(t, st, doc, "B", 1999, nil, nil, "Notes on Saturn", nil)
	seedArticle(t, st, doc, "C", 1999, nil, nil, "Lens grinding", nil)

	svc := NewSearchService(st, st, &stubEmbedder{})
	res, err := svc.SummarySearch(context.Background(), SearchRequest{Query: "jupiter saturn"})
	if err != nil {
		t.Fatalf("SummarySearch: %v", err)
	}
	if res.Total != 2 {
		t.Fatalf("OR semantics across terms: got total %d, want 2", res.Total)
	}
}

func TestCategorySearchEmptyQueryRejected(t *testing.T) {
	st := memory.NewStore(3)
	svc := NewSearchService(st, st, &stubEmbedder{})
	if _, err := svc.CategorySearch(context.Background(), SearchRequest{}); !errors.Is(err, ErrQueryRequired) {
		t.Fatalf("got %v, want ErrQueryRequired", err)
	}
}

func TestSearchPaginationInvariants(t *testing.T) {
	st := memory.NewStore(3)
	doc := seedDocument(t, st, "Doc", 1999)
	for i := 0; i < 5; i++ {
		seedArticle(t, st, doc, "Article", 1999, []string{"comet"}, nil, "", nil)
	}
	svc := NewSearchService(st, st, &stubEmbedder{})

	res, err := svc.KeywordSearch(context.Background(), SearchRequest{
		Query: "comet",
		Limit: intPtr(2),
	})
	if err != nil {
		t.Fatalf("KeywordSearch: %v", err)
	}
	if res.Total != 5 || len(res.Articles) != 2 {
		t.Fatalf("total must count the full filtered set: total=%d page=%d", res.Total, len(res.Articles))
	}

	res, err = svc.KeywordSearch(context.Background(), SearchRequest{
		Query:  "comet",
		Offset: intPtr(10),
	})
	if err != nil {
		t.Fatalf("KeywordSearch offset past end: %v", err)
	}
	if res.Total != 5 || len(res.Articles) != 0 {
		t.Fatalf("offset past end must be empty, got %d", len(res.Articles))
	}

	res, err = svc.KeywordSearch(context.Background(), SearchRequest{
		Query:  "comet",
		Limit:  intPtr(-3),
		Offset: intPtr(-7),
	})
	if err != nil {
		t.Fatalf("negative paging must not error: %v", err)
	}
	if len(res.Articles) != 0 {
		t.Fatalf("negative limit clamps to 0, got %d articles", len(res.Articles))
	}
}
