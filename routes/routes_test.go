package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"document-archive-platform/internal/ai"
	"document-archive-platform/internal/config"
	"document-archive-platform/internal/store"
	"document-archive-platform/internal/store/memory"
	"document-archive-platform/models"
	"document-archive-platform/services"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) ModelName() string { return "stub-model" }

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
	cfg    *config.Config
}

func newTestEnv(t *testing.T, embedder services.Embedder) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memory.NewStore(3)
	cfg := &config.Config{
		ImportAPIToken: "secret-token",
		StatsCacheTTL:  30,
	}

	searchService := services.NewSearchService(st, st, embedder)
	importService := services.NewImportService(st, st, st, st, nil, 5*time.Second, 1<<20)
	exportService := services.NewExportService(st)

	router := gin.New()
	SetupSearchRoutes(router, st, searchService, nil)
	SetupArticleRoutes(router, st)
	SetupDocumentRoutes(router, cfg, st, st)
	SetupStatsRoutes(router, cfg, st, st, nil)
	SetupImportRoutes(router, cfg, importService, nil)
	SetupExportRoutes(router, exportService)

	return &testEnv{router: router, store: st, cfg: cfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func seedArticleWithVector(t *testing.T, st *memory.Store, docName, title string, year int, vector []float32) models.Article {
	t.Helper()
	ctx := context.Background()
	doc := &models.Document{Name: docName}
	if year != 0 {
		date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		doc.PublicationDate = &date
	}
	if _, err := st.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	article := models.Article{
		DocumentID:      doc.ID,
		DocumentName:    doc.Name,
		Title:           title,
		Keywords:        []string{"comet"},
		PublicationYear: year,
	}
	if _, err := st.CreateArticle(ctx, &article); err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	if vector != nil {
		if _, err := st.Upsert(ctx, &models.Embedding{
			ArticleID:       article.ID,
			Vector:          vector,
			PublicationYear: year,
		}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	return article
}

func TestSearchTextEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{vector: []float32{1, 0, 0}})
	seedArticleWithVector(t, env.store, "Eph79_06", "Lunar Notes", 1979, []float32{1, 0, 0})

	rec := env.do(t, http.MethodPost, "/api/search-text", gin.H{"query": "moon"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total"].(float64) != 1 {
		t.Fatalf("total = %v", body["total"])
	}
	if body["embedding_model"] != "stub-model" {
		t.Fatalf("embedding_model = %v", body["embedding_model"])
	}
	results := body["results"].([]interface{})
	first := results[0].(map[string]interface{})
	if first["title"] != "Lunar Notes" || first["documentName"] != "Eph79_06" {
		t.Fatalf("result = %v", first)
	}
	if sim := first["similarity"].(float64); sim < 0.999 {
		t.Fatalf("similarity = %f", sim)
	}
}

func TestSearchTextEmptyQueryIs400(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{vector: []float32{1, 0, 0}})
	rec := env.do(t, http.MethodPost, "/api/search-text", gin.H{"query": ""}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	if decodeBody(t, rec)["error"] == nil {
		t.Fatal("error body missing")
	}
}

func TestSearchTextProviderFailureIs503(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{err: &ai.ProviderError{StatusCode: 500, Message: "upstream exploded"}})
	rec := env.do(t, http.MethodPost, "/api/search-text", gin.H{"query": "moon"}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["error"] != "upstream exploded" {
		t.Fatalf("error = %v", decodeBody(t, rec)["error"])
	}
}

func TestSearchTextNotConfiguredIs503(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{err: ai.ErrNotConfigured})
	rec := env.do(t, http.MethodPost, "/api/search-text", gin.H{"query": "moon"}, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestSearchKeywordsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	seedArticleWithVector(t, env.store, "Doc", "Comet Watch", 1999, nil)

	rec := env.do(t, http.MethodPost, "/api/search-keywords", gin.H{"query": "comet"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["total"].(float64) != 1 {
		t.Fatalf("total = %v", body["total"])
	}
}

// failingCatalog breaks every field search, standing in for a backend
// outage.
type failingCatalog struct {
	*memory.Store
}

func (f *failingCatalog) FindArticlesByField(context.Context, store.SearchField, []string, *store.YearRange, store.Page) (int64, []models.Article, error) {
	return 0, nil, errors.New("catalog offline")
}

func TestSearchBackendFailureIs503(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := &failingCatalog{Store: memory.NewStore(3)}
	searchService := services.NewSearchService(st, st.Store, &stubEmbedder{})
	router := gin.New()
	SetupSearchRoutes(router, st, searchService, nil)

	body, err := json.Marshal(gin.H{"query": "comet"})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/search-keywords", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if decodeBody(t, rec)["error"] != "catalog offline" {
		t.Fatalf("error = %v", decodeBody(t, rec)["error"])
	}
}

func TestImportRequiresAuth(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	batch := gin.H{"documents": []gin.H{{"id": "d1", "name": "Doc"}}}

	rec := env.do(t, http.MethodPost, "/api/import", batch, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/import", batch, map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/import", batch, map[string]string{"Authorization": "Bearer secret-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("good token: status %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	imported := body["imported"].(map[string]interface{})
	if imported["documents"].(float64) != 1 {
		t.Fatalf("imported = %v", imported)
	}
}

func TestImportUnconfiguredTokenIs503(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	env.cfg.ImportAPIToken = ""

	rec := env.do(t, http.MethodPost, "/api/import", gin.H{}, map[string]string{"Authorization": "Bearer anything"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestDocumentDetailAnd404(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	article := seedArticleWithVector(t, env.store, "Eph79_06", "Lunar Notes", 1979, nil)

	rec := env.do(t, http.MethodGet, "/api/documents/"+article.DocumentID.Hex(), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["name"] != "Eph79_06" || body["articleCount"].(float64) != 1 {
		t.Fatalf("body = %v", body)
	}
	articles := body["articles"].([]interface{})
	if len(articles) != 1 {
		t.Fatalf("articles = %v", articles)
	}

	rec = env.do(t, http.MethodGet, "/api/documents/000000000000000000000000", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/documents/not-hex", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("malformed id: status %d", rec.Code)
	}
}

func TestDocumentMarkdownEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	article := seedArticleWithVector(t, env.store, "Doc", "A", 1999, nil)
	ctx := context.Background()

	// Without a markdown attachment both fields are null.
	rec := env.do(t, http.MethodGet, "/api/documents/"+article.DocumentID.Hex()+"/markdown", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["markdownContent"] != nil || body["htmlContent"] != nil {
		t.Fatalf("body = %v", body)
	}

	fileID, err := env.store.Put(ctx, "doc.md", "text/markdown", []byte("# Heading"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := env.store.SetAttachment(ctx, article.DocumentID, models.SlotMarkdown, models.Attachment{
		FileID:      fileID,
		Filename:    "doc.md",
		ContentType: "text/markdown",
	}); err != nil {
		t.Fatalf("SetAttachment: %v", err)
	}

	rec = env.do(t, http.MethodGet, "/api/documents/"+article.DocumentID.Hex()+"/markdown", nil, nil)
	body = decodeBody(t, rec)
	if body["markdownContent"] != "# Heading" {
		t.Fatalf("markdownContent = %v", body["markdownContent"])
	}
	if html, _ := body["htmlContent"].(string); html == "" || !bytes.Contains([]byte(html), []byte("<h1")) {
		t.Fatalf("htmlContent = %v", body["htmlContent"])
	}
}

func TestAttachmentServing(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	fileID, err := env.store.Put(context.Background(), "doc.txt", "text/plain", []byte("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/attachments/"+fileID.Hex(), nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "hello" {
		t.Fatalf("status %d body %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Fatalf("content type %q", ct)
	}

	rec = env.do(t, http.MethodGet, "/api/attachments/000000000000000000000000", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown attachment: status %d", rec.Code)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	article := seedArticleWithVector(t, env.store, "Doc", "A", 1999, []float32{1, 0, 0})

	rec := env.do(t, http.MethodDelete, "/api/documents/"+article.DocumentID.Hex(), nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("delete without token: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/documents/"+article.DocumentID.Hex(), nil,
		map[string]string{"Authorization": "Bearer secret-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	counts, _ := env.store.Counts(context.Background())
	if counts.Documents != 0 || counts.Articles != 0 {
		t.Fatalf("cascade incomplete: %+v", counts)
	}
	if n, _ := env.store.Count(context.Background()); n != 0 {
		t.Fatalf("embeddings left behind: %d", n)
	}
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	seedArticleWithVector(t, env.store, "Doc", "A", 1999, []float32{1, 0, 0})

	rec := env.do(t, http.MethodGet, "/api/stats", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["documents"].(float64) != 1 || body["articles"].(float64) != 1 || body["embeddings"].(float64) != 1 {
		t.Fatalf("body = %v", body)
	}
}

func TestArticlesListingWithFilters(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	seedArticleWithVector(t, env.store, "Old", "OldArticle", 1961, nil)
	seedArticleWithVector(t, env.store, "New", "NewArticle", 1999, nil)

	rec := env.do(t, http.MethodGet, "/api/articles?start_year=1990", nil, nil)
	body := decodeBody(t, rec)
	if body["total"].(float64) != 1 {
		t.Fatalf("total = %v", body["total"])
	}
	articles := body["articles"].([]interface{})
	if articles[0].(map[string]interface{})["title"] != "NewArticle" {
		t.Fatalf("articles = %v", articles)
	}
}

func TestDocumentsGroupedByYear(t *testing.T) {
	env := newTestEnv(t, &stubEmbedder{})
	seedArticleWithVector(t, env.store, "Doc61", "A", 1961, nil)
	seedArticleWithVector(t, env.store, "Doc99", "B", 1999, nil)
	if _, err := env.store.CreateDocument(context.Background(), &models.Document{Name: "Undated"}); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/documents?group_by_year", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["grouped"] != true || body["total"].(float64) != 3 {
		t.Fatalf("body = %v", body)
	}
	years := body["years"].([]interface{})
	got := make([]float64, 0, len(years))
	for _, y := range years {
		got = append(got, y.(map[string]interface{})["year"].(float64))
	}
	if len(got) != 3 || got[0] != 1999 || got[1] != 1961 || got[2] != 0 {
		t.Fatalf("year order = %v", got)
	}
}
