package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-archive-platform/internal/store"
	"document-archive-platform/models"
)

func mustCreateArticle(t *testing.T, st *Store, title string, year int) primitive.ObjectID {
	t.Helper()
	doc := &models.Document{Name: title + "-doc"}
	if year != 0 {
		date := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		doc.PublicationDate = &date
	}
	if _, err := st.CreateDocument(context.Background(), doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	id, err := st.CreateArticle(context.Background(), &models.Article{
		DocumentID:      doc.ID,
		DocumentName:    doc.Name,
		Title:           title,
		PublicationYear: year,
	})
	if err != nil {
		t.Fatalf("CreateArticle: %v", err)
	}
	return id
}

func TestUpsertCreatedThenUpdated(t *testing.T) {
	st := NewStore(3)
	ctx := context.Background()
	articleID := mustCreateArticle(t, st, "A", 1999)

	created, err := st.Upsert(ctx, &models.Embedding{ArticleID: articleID, Vector: []float32{1, 0, 0}})
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}
	created, err = st.Upsert(ctx, &models.Embedding{ArticleID: articleID, Vector: []float32{0, 1, 0}})
	if err != nil || created {
		t.Fatalf("second upsert must update in place: created=%v err=%v", created, err)
	}

	if n, _ := st.Count(ctx); n != 1 {
		t.Fatalf("article to embedding must stay 1:1, got %d rows", n)
	}
	emb, err := st.GetByArticle(ctx, articleID)
	if err != nil || emb.Vector[1] != 1 {
		t.Fatalf("vector not replaced: %v %v", emb, err)
	}
}

func TestUpsertDimensionMismatch(t *testing.T) {
	st := NewStore(3)
	articleID := mustCreateArticle(t, st, "A", 1999)

	_, err := st.Upsert(context.Background(), &models.Embedding{ArticleID: articleID, Vector: []float32{1, 0}})
	if !errors.Is(err, store.ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestNearestOrderingAndPagination(t *testing.T) {
	st := NewStore(3)
	ctx := context.Background()

	vectors := [][]float32{
		{0, 1, 0},   // orthogonal, distance 1
		{1, 0, 0},   // identical, distance 0
		{1, 1, 0},   // in between
		{-1, 0, 0},  // opposite, distance 2
		{0.9, 1, 0}, // in between, slightly closer
	}
	ids := make([]primitive.ObjectID, len(vectors))
	for i, vec := range vectors {
		ids[i] = mustCreateArticle(t, st, string(rune('A'+i)), 1999)
		if _, err := st.Upsert(ctx, &models.Embedding{ArticleID: ids[i], Vector: vec, PublicationYear: 1999}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	query := []float32{1, 0, 0}
	total, neighbors, err := st.Nearest(ctx, query, nil, store.Page{Limit: 10})
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if total != 5 || len(neighbors) != 5 {
		t.Fatalf("total=%d len=%d", total, len(neighbors))
	}
	if neighbors[0].ArticleID != ids[1] || neighbors[len(neighbors)-1].ArticleID != ids[3] {
		t.Fatalf("ordering wrong: %v", neighbors)
	}
	for i := 1; i < len(neighbors); i++ {
		if neighbors[i].Distance < neighbors[i-1].Distance {
			t.Fatalf("distances not ascending at %d", i)
		}
	}

	// Paging applies after the filter; total is unaffected.
	total, page2, err := st.Nearest(ctx, query, nil, store.Page{Limit: 2, Offset: 2})
	if err != nil || total != 5 || len(page2) != 2 {
		t.Fatalf("page: total=%d len=%d err=%v", total, len(page2), err)
	}
	if page2[0].ArticleID != neighbors[2].ArticleID {
		t.Fatal("offset did not line up with the full ordering")
	}

	total, empty, err := st.Nearest(ctx, query, nil, store.Page{Limit: 10, Offset: 10})
	if err != nil || total != 5 || len(empty) != 0 {
		t.Fatalf("offset past end: total=%d len=%d err=%v", total, len(empty), err)
	}
}

func TestNearestYearFilterExcludesUndated(t *testing.T) {
	st := NewStore(3)
	ctx := context.Background()

	dated := mustCreateArticle(t, st, "Dated", 1979)
	undated := mustCreateArticle(t, st, "Undated", 0)
	st.Upsert(ctx, &models.Embedding{ArticleID: dated, Vector: []float32{1, 0, 0}, PublicationYear: 1979})
	st.Upsert(ctx, &models.Embedding{ArticleID: undated, Vector: []float32{1, 0, 0}})

	total, neighbors, err := st.Nearest(ctx, []float32{1, 0, 0}, &store.YearRange{Start: 1970, End: 1980}, store.Page{Limit: 10})
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if total != 1 || len(neighbors) != 1 || neighbors[0].ArticleID != dated {
		t.Fatalf("undated rows leaked into a bounded range: total=%d", total)
	}
}

func TestWithTransactionRollsBack(t *testing.T) {
	st := NewStore(3)
	ctx := context.Background()
	mustCreateArticle(t, st, "Existing", 1999)

	err := st.WithTransaction(ctx, func(ctx context.Context) error {
		mustCreateArticle(t, st, "Doomed", 2000)
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected the error to surface")
	}

	counts, _ := st.Counts(ctx)
	if counts.Documents != 1 || counts.Articles != 1 {
		t.Fatalf("rollback incomplete: %+v", counts)
	}
}

func TestWithTransactionRollsBackBlobs(t *testing.T) {
	st := NewStore(3)
	ctx := context.Background()

	var blobID primitive.ObjectID
	err := st.WithTransaction(ctx, func(ctx context.Context) error {
		id, err := st.Put(ctx, "doc.pdf", "application/pdf", []byte("payload"))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		blobID = id
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected the error to surface")
	}

	if _, _, err := st.Open(ctx, blobID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("blob survived rollback: %v", err)
	}
}

func TestListArticlesFilterAndOrder(t *testing.T) {
	st := NewStore(3)
	ctx := context.Background()

	first := mustCreateArticle(t, st, "First", 1961)
	second := mustCreateArticle(t, st, "Second", 1999)

	total, all, err := st.ListArticles(ctx, store.ArticleFilter{}, store.Page{Limit: 10})
	if err != nil || total != 2 {
		t.Fatalf("total=%d err=%v", total, err)
	}
	// Most recently created first.
	if all[0].ID != second || all[1].ID != first {
		t.Fatalf("order wrong: %v", all)
	}

	total, filtered, err := st.ListArticles(ctx, store.ArticleFilter{Years: &store.YearRange{Start: 1990}}, store.Page{Limit: 10})
	if err != nil || total != 1 || filtered[0].ID != second {
		t.Fatalf("year filter: total=%d err=%v", total, err)
	}
}
