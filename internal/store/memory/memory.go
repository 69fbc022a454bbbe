// Package memory is an in-memory implementation of the store contracts.
// It backs service and handler tests and doubles as the executable
// description of the store semantics the mongodb backend provides.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"document-archive-platform/internal/store"
	"document-archive-platform/models"
)

// Interface guards.
var (
	_ store.Catalog         = (*Store)(nil)
	_ store.VectorIndex     = (*Store)(nil)
	_ store.AttachmentStore = (*Store)(nil)
	_ store.TxRunner        = (*Store)(nil)
)

type blob struct {
	info store.AttachmentInfo
	data []byte
}

// Store keeps everything in maps guarded by one mutex. seq preserves
// insertion order for created-at ties and nearest-neighbor tie breaks.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	seq        int

	documents  map[primitive.ObjectID]models.Document
	docSeq     map[primitive.ObjectID]int
	articles   map[primitive.ObjectID]models.Article
	articleSeq map[primitive.ObjectID]int
	embeddings map[primitive.ObjectID]models.Embedding // keyed by article id
	embSeq     map[primitive.ObjectID]int
	blobs      map[primitive.ObjectID]blob

	// FailCreateArticleTitle aborts CreateArticle for a matching title,
	// standing in for a constraint violation in transaction tests.
	FailCreateArticleTitle string
}

func NewStore(dimensions int) *Store {
	return &Store{
		dimensions: dimensions,
		documents:  make(map[primitive.ObjectID]models.Document),
		docSeq:     make(map[primitive.ObjectID]int),
		articles:   make(map[primitive.ObjectID]models.Article),
		articleSeq: make(map[primitive.ObjectID]int),
		embeddings: make(map[primitive.ObjectID]models.Embedding),
		embSeq:     make(map[primitive.ObjectID]int),
		blobs:      make(map[primitive.ObjectID]blob),
	}
}

// WithTransaction snapshots the maps and restores them when fn fails.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.restoreLocked(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	seq        int
	documents  map[primitive.ObjectID]models.Document
	docSeq     map[primitive.ObjectID]int
	articles   map[primitive.ObjectID]models.Article
	articleSeq map[primitive.ObjectID]int
	embeddings map[primitive.ObjectID]models.Embedding
	embSeq     map[primitive.ObjectID]int
	blobs      map[primitive.ObjectID]blob
}

func (s *Store) snapshotLocked() snapshot {
	return snapshot{
		seq:        s.seq,
		documents:  copyMap(s.documents),
		docSeq:     copyMap(s.docSeq),
		articles:   copyMap(s.articles),
		articleSeq: copyMap(s.articleSeq),
		embeddings: copyMap(s.embeddings),
		embSeq:     copyMap(s.embSeq),
		blobs:      copyMap(s.blobs),
	}
}

func (s *Store) restoreLocked(snap snapshot) {
	s.seq = snap.seq
	s.documents = snap.documents
	s.docSeq = snap.docSeq
	s.articles = snap.articles
	s.articleSeq = snap.articleSeq
	s.embeddings = snap.embeddings
	s.embSeq = snap.embSeq
	s.blobs = snap.blobs
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// --- Catalog ---

func (s *Store) CreateDocument(_ context.Context, doc *models.Document) (primitive.ObjectID, error) {
	if doc.Name == "" {
		return primitive.NilObjectID, fmt.Errorf("document name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.PublicationYear = doc.Year()
	s.seq++
	s.documents[doc.ID] = *doc
	s.docSeq[doc.ID] = s.seq
	return doc.ID, nil
}

func (s *Store) GetDocument(_ context.Context, id primitive.ObjectID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func (s *Store) GetDocumentsByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Document
	for _, id := range ids {
		if doc, ok := s.documents[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *Store) ListDocuments(_ context.Context, years *store.YearRange, page store.Page) (int64, []models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []models.Document
	for _, doc := range s.documents {
		if years.Matches(doc.PublicationYear) {
			docs = append(docs, doc)
		}
	}
	sortByCreatedDesc(docs, func(d models.Document) (time.Time, int) {
		return d.CreatedAt, s.docSeq[d.ID]
	})
	total := int64(len(docs))
	return total, paginate(docs, page), nil
}

func (s *Store) DeleteDocument(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[id]
	if !ok {
		return store.ErrNotFound
	}
	for articleID, article := range s.articles {
		if article.DocumentID == id {
			delete(s.articles, articleID)
			delete(s.articleSeq, articleID)
			delete(s.embeddings, articleID)
			delete(s.embSeq, articleID)
		}
	}
	for _, att := range doc.Attachments {
		delete(s.blobs, att.FileID)
	}
	delete(s.documents, id)
	delete(s.docSeq, id)
	return nil
}

func (s *Store) SetAttachment(_ context.Context, docID primitive.ObjectID, slot string, att models.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[docID]
	if !ok {
		return store.ErrNotFound
	}
	if doc.Attachments == nil {
		doc.Attachments = make(map[string]models.Attachment)
	} else {
		doc.Attachments = copyMap(doc.Attachments)
	}
	doc.Attachments[slot] = att
	s.documents[docID] = doc
	return nil
}

func (s *Store) CreateArticle(_ context.Context, article *models.Article) (primitive.ObjectID, error) {
	if article.Title == "" {
		return primitive.NilObjectID, fmt.Errorf("article title must not be empty")
	}
	if article.DocumentID.IsZero() {
		return primitive.NilObjectID, fmt.Errorf("article document id must be set")
	}
	if s.FailCreateArticleTitle != "" && article.Title == s.FailCreateArticleTitle {
		return primitive.NilObjectID, fmt.Errorf("constraint violation on article %q", article.Title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if article.ID.IsZero() {
		article.ID = primitive.NewObjectID()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}
	s.seq++
	s.articles[article.ID] = *article
	s.articleSeq[article.ID] = s.seq
	return article.ID, nil
}

func (s *Store) GetArticle(_ context.Context, id primitive.ObjectID) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	article, ok := s.articles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &article, nil
}

func (s *Store) GetArticlesByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Article
	for _, id := range ids {
		if article, ok := s.articles[id]; ok {
			out = append(out, article)
		}
	}
	return out, nil
}

func (s *Store) ArticlesByDocument(_ context.Context, docID primitive.ObjectID) ([]models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Article
	for _, article := range s.articles {
		if article.DocumentID == docID {
			out = append(out, article)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.articleSeq[out[i].ID] < s.articleSeq[out[j].ID]
	})
	return out, nil
}

func (s *Store) ArticleCounts(_ context.Context, docIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[primitive.ObjectID]int, len(docIDs))
	wanted := make(map[primitive.ObjectID]bool, len(docIDs))
	for _, id := range docIDs {
		wanted[id] = true
	}
	for _, article := range s.articles {
		if wanted[article.DocumentID] {
			counts[article.DocumentID]++
		}
	}
	return counts, nil
}

func (s *Store) ListArticles(_ context.Context, filter store.ArticleFilter, page store.Page) (int64, []models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Article
	for _, article := range s.articles {
		if !filter.Years.Matches(article.PublicationYear) {
			continue
		}
		if filter.Category != "" && !anyContains(article.Categories, filter.Category) {
			continue
		}
		if filter.Keyword != "" && !anyContains(article.Keywords, filter.Keyword) {
			continue
		}
		out = append(out, article)
	}
	sortByCreatedDesc(out, func(a models.Article) (time.Time, int) {
		return a.CreatedAt, s.articleSeq[a.ID]
	})
	return int64(len(out)), paginate(out, page), nil
}

func (s *Store) FindArticlesByField(_ context.Context, field store.SearchField, terms []string, years *store.YearRange, page store.Page) (int64, []models.Article, error) {
	if len(terms) == 0 {
		return 0, nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Article
	for _, article := range s.articles {
		if !years.Matches(article.PublicationYear) {
			continue
		}
		var matched bool
		switch field {
		case store.FieldKeywords:
			matched = anyContainsAny(article.Keywords, terms)
		case store.FieldCategories:
			matched = anyContainsAny(article.Categories, terms)
		case store.FieldSummary:
			matched = containsAny(article.Summary, terms)
		default:
			return 0, nil, fmt.Errorf("unknown search field %q", field)
		}
		if matched {
			out = append(out, article)
		}
	}
	sortByCreatedDesc(out, func(a models.Article) (time.Time, int) {
		return a.CreatedAt, s.articleSeq[a.ID]
	})
	return int64(len(out)), paginate(out, page), nil
}

func (s *Store) FindArticleByTitle(_ context.Context, documentName, title string) (*models.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := -1
	var found models.Article
	for _, article := range s.articles {
		if article.Title != title {
			continue
		}
		if documentName != "" && article.DocumentName != documentName {
			continue
		}
		if best == -1 || s.articleSeq[article.ID] < best {
			best = s.articleSeq[article.ID]
			found = article
		}
	}
	if best == -1 {
		return nil, store.ErrNotFound
	}
	return &found, nil
}

func (s *Store) Counts(_ context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return store.Stats{
		Documents: int64(len(s.documents)),
		Articles:  int64(len(s.articles)),
	}, nil
}

// --- VectorIndex ---

func (s *Store) Upsert(_ context.Context, emb *models.Embedding) (bool, error) {
	if len(emb.Vector) != s.dimensions {
		return false, fmt.Errorf("%w: got %d, index configured for %d",
			store.ErrDimensionMismatch, len(emb.Vector), s.dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	existing, exists := s.embeddings[emb.ArticleID]
	row := models.Embedding{
		ArticleID:       emb.ArticleID,
		Vector:          append([]float32(nil), emb.Vector...),
		ModelName:       emb.ModelName,
		PublicationYear: emb.PublicationYear,
		UpdatedAt:       now,
	}
	if exists {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else {
		row.ID = primitive.NewObjectID()
		row.CreatedAt = now
		s.seq++
		s.embSeq[emb.ArticleID] = s.seq
	}
	s.embeddings[emb.ArticleID] = row
	return !exists, nil
}

func (s *Store) GetByArticle(_ context.Context, articleID primitive.ObjectID) (*models.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emb, ok := s.embeddings[articleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &emb, nil
}

func (s *Store) Nearest(_ context.Context, query []float32, years *store.YearRange, page store.Page) (int64, []store.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type row struct {
		neighbor store.Neighbor
		seq      int
	}
	var rows []row
	for articleID, emb := range s.embeddings {
		if !years.Matches(emb.PublicationYear) {
			continue
		}
		rows = append(rows, row{
			neighbor: store.Neighbor{
				ArticleID: articleID,
				Distance:  store.CosineDistance(query, emb.Vector),
			},
			seq: s.embSeq[articleID],
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].neighbor.Distance != rows[j].neighbor.Distance {
			return rows[i].neighbor.Distance < rows[j].neighbor.Distance
		}
		return rows[i].seq < rows[j].seq
	})

	neighbors := make([]store.Neighbor, len(rows))
	for i, r := range rows {
		neighbors[i] = r.neighbor
	}
	return int64(len(neighbors)), paginate(neighbors, page), nil
}

func (s *Store) DeleteByArticles(_ context.Context, articleIDs []primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range articleIDs {
		delete(s.embeddings, id)
		delete(s.embSeq, id)
	}
	return nil
}

func (s *Store) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.embeddings)), nil
}

// --- AttachmentStore ---

func (s *Store) Put(_ context.Context, filename, contentType string, data []byte) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := primitive.NewObjectID()
	s.blobs[id] = blob{
		info: store.AttachmentInfo{
			Filename:    filename,
			ContentType: contentType,
			Size:        int64(len(data)),
		},
		data: append([]byte(nil), data...),
	}
	return id, nil
}

func (s *Store) Open(_ context.Context, id primitive.ObjectID) (io.ReadCloser, *store.AttachmentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[id]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	info := b.info
	return io.NopCloser(bytes.NewReader(b.data)), &info, nil
}

func (s *Store) Delete(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.blobs, id)
	return nil
}

// --- helpers ---

func sortByCreatedDesc[T any](items []T, key func(T) (time.Time, int)) {
	sort.Slice(items, func(i, j int) bool {
		ti, si := key(items[i])
		tj, sj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return si > sj
	})
}

func paginate[T any](items []T, page store.Page) []T {
	if page.Offset >= len(items) || page.Limit <= 0 {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Offset:end]
}

func anyContains(values []string, term string) bool {
	term = strings.ToLower(term)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), term) {
			return true
		}
	}
	return false
}

func anyContainsAny(values []string, terms []string) bool {
	for _, term := range terms {
		if anyContains(values, term) {
			return true
		}
	}
	return false
}

func containsAny(value string, terms []string) bool {
	lower := strings.ToLower(value)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}
