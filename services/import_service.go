package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"document-archive-platform/internal/logger"
	"document-archive-platform/internal/store"
	"document-archive-platform/internal/telemetry"
	"document-archive-platform/models"
)

// ImportService loads export payloads into the store. Documents,
// articles and embeddings are created inside one transaction; any
// constraint violation rolls the whole batch back. Records whose
// batch-local references cannot be resolved are skipped and logged,
// they never abort the batch. Attachment fetches are best-effort.
type ImportService struct {
	catalog     store.Catalog
	vectors     store.VectorIndex
	attachments store.AttachmentStore
	tx          store.TxRunner

	httpClient   *http.Client
	fetchTimeout time.Duration
	maxBlobSize  int64
	metrics      *telemetry.Metrics
}

func NewImportService(catalog store.Catalog, vectors store.VectorIndex, attachments store.AttachmentStore, tx store.TxRunner, metrics *telemetry.Metrics, fetchTimeout time.Duration, maxBlobSize int64) *ImportService {
	return &ImportService{
		catalog:     catalog,
		vectors:     vectors,
		attachments: attachments,
		tx:          tx,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
		fetchTimeout: fetchTimeout,
		maxBlobSize:  maxBlobSize,
		metrics:      metrics,
	}
}

// Import runs one payload through the pipeline and returns per-category
// creation counts.
func (s *ImportService) Import(ctx context.Context, batch *models.ImportBatch) (*models.ImportStats, error) {
	ctx, span := otel.Tracer("import-service").Start(ctx, "import_batch")
	defer span.End()

	batchID := uuid.NewString()
	span.SetAttributes(attribute.String("import.batch_id", batchID))
	logger.Info("Starting import batch",
		"batch_id", batchID,
		"documents", len(batch.Documents),
		"articles", len(batch.Articles),
		"embeddings", len(batch.Embeddings))

	stats := &models.ImportStats{}
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		// The transaction callback may be retried; start from scratch.
		*stats = models.ImportStats{}

		docIDs := make(map[string]primitive.ObjectID, len(batch.Documents))
		docs := make(map[string]*models.Document, len(batch.Documents))
		for i := range batch.Documents {
			in := &batch.Documents[i]
			doc, err := s.createDocument(ctx, in, stats)
			if err != nil {
				return err
			}
			docIDs[in.ID] = doc.ID
			docs[in.ID] = doc
		}

		articleIDs := make(map[string]primitive.ObjectID, len(batch.Articles))
		articleYears := make(map[string]int, len(batch.Articles))
		for _, in := range batch.Articles {
			parent, ok := docs[in.DocumentID]
			if !ok {
				logger.Warn("Skipping article with unresolved document reference",
					"batch_id", batchID, "document_ref", in.DocumentID, "title", in.Title)
				continue
			}
			article := &models.Article{
				DocumentID:      docIDs[in.DocumentID],
				DocumentName:    parent.Name,
				Title:           in.Title,
				Summary:         in.Summary,
				Categories:      in.Categories,
				Keywords:        in.Keywords,
				PageStart:       in.PageStart,
				PageEnd:         in.PageEnd,
				PublicationYear: parent.Year(),
			}
			id, err := s.catalog.CreateArticle(ctx, article)
			if err != nil {
				return fmt.Errorf("creating article %q: %w", in.Title, err)
			}
			articleIDs[in.ID] = id
			articleYears[in.ID] = article.PublicationYear
			stats.Articles++
		}

		for _, in := range batch.Embeddings {
			articleID, ok := articleIDs[in.ArticleID]
			if !ok {
				logger.Warn("Skipping embedding with unresolved article reference",
					"batch_id", batchID, "article_ref", in.ArticleID)
				continue
			}
			if _, err := s.vectors.Upsert(ctx, &models.Embedding{
				ArticleID:       articleID,
				Vector:          in.Vector,
				ModelName:       in.ModelName,
				PublicationYear: articleYears[in.ArticleID],
			}); err != nil {
				return fmt.Errorf("storing embedding for article ref %q: %w", in.ArticleID, err)
			}
			stats.Embeddings++
		}
		return nil
	})
	if err != nil {
		logger.Error("Import batch failed, rolled back", "batch_id", batchID, "error", err)
		return nil, err
	}

	logger.Info("Import batch committed",
		"batch_id", batchID,
		"documents", stats.Documents,
		"articles", stats.Articles,
		"embeddings", stats.Embeddings,
		"attachments", stats.Attachments)
	return stats, nil
}

func (s *ImportService) createDocument(ctx context.Context, in *models.ImportDocument, stats *models.ImportStats) (*models.Document, error) {
	doc := &models.Document{Name: in.Name}
	if in.PublicationDate != "" {
		parsed, err := time.Parse("2006-01-02", in.PublicationDate)
		if err != nil {
			logger.Warn("Ignoring malformed publication date",
				"document", in.Name, "publication_date", in.PublicationDate)
		} else {
			doc.PublicationDate = &parsed
		}
	}
	if doc.PublicationDate == nil {
		doc.PublicationDate = ParsePublicationDate(in.Name)
	}

	if _, err := s.catalog.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("creating document %q: %w", in.Name, err)
	}
	stats.Documents++

	for _, slot := range models.AttachmentSlots {
		src := in.SlotURL(slot)
		if src == "" {
			continue
		}
		err := s.attachFromURL(ctx, doc, slot, src)
		s.metrics.RecordAttachmentFetch(slot, err == nil)
		if err != nil {
			logger.Warn("Attachment fetch failed, continuing",
				"document", doc.Name, "slot", slot, "url", src, "error", err)
			continue
		}
		stats.Attachments++
	}
	return doc, nil
}

// attachFromURL downloads one source file, stores the blob, and records
// it on the document. Failures leave the slot empty.
func (s *ImportService) attachFromURL(ctx context.Context, doc *models.Document, slot, src string) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBlobSize+1))
	if err != nil {
		return err
	}
	if int64(len(data)) > s.maxBlobSize {
		return fmt.Errorf("attachment exceeds %d bytes", s.maxBlobSize)
	}

	att := models.Attachment{
		Filename:    attachmentFilename(src, doc.Name, slot),
		ContentType: models.SlotContentType(slot),
		Size:        int64(len(data)),
	}
	if slot == models.SlotPDF {
		if pages, err := pdfPageCount(data); err == nil {
			att.Pages = pages
		} else {
			logger.Debug("Could not count PDF pages", "document", doc.Name, "error", err)
		}
	}

	fileID, err := s.attachments.Put(ctx, att.Filename, att.ContentType, data)
	if err != nil {
		return err
	}
	att.FileID = fileID
	return s.catalog.SetAttachment(ctx, doc.ID, slot, att)
}

func attachmentFilename(src, docName, slot string) string {
	if u, err := url.Parse(src); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return docName + "." + slot
}

func pdfPageCount(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

// ReimportEmbeddings replaces or creates vectors for articles that
// already exist. Each entry resolves independently: by batch-local id
// through the payload's article list (matched on document name plus
// title), or by store id when the reference parses as one. No
// transaction; each upsert stands alone.
func (s *ImportService) ReimportEmbeddings(ctx context.Context, batch *models.ReimportBatch) (*models.ReimportStats, error) {
	ctx, span := otel.Tracer("import-service").Start(ctx, "reimport_embeddings")
	defer span.End()

	titles := make(map[string]string, len(batch.Articles))
	for _, a := range batch.Articles {
		titles[a.ID] = a.Title
	}

	stats := &models.ReimportStats{}
	for _, in := range batch.Embeddings {
		article, err := s.resolveArticle(ctx, in.ArticleID, titles, batch.DocumentName)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("Skipping embedding for unknown article",
					"article_ref", in.ArticleID, "document_name", batch.DocumentName)
				stats.Skipped++
			} else {
				logger.Error("Failed to resolve article for re-embedding",
					"article_ref", in.ArticleID, "error", err)
				stats.Errored++
			}
			continue
		}

		created, err := s.vectors.Upsert(ctx, &models.Embedding{
			ArticleID:       article.ID,
			Vector:          in.Vector,
			ModelName:       in.ModelName,
			PublicationYear: article.PublicationYear,
		})
		if err != nil {
			logger.Error("Failed to upsert embedding",
				"article_id", article.ID.Hex(), "error", err)
			stats.Errored++
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	logger.Info("Re-embedding batch finished",
		"updated", stats.Updated, "created", stats.Created,
		"skipped", stats.Skipped, "errored", stats.Errored)
	return stats, nil
}

func (s *ImportService) resolveArticle(ctx context.Context, ref string, titles map[string]string, documentName string) (*models.Article, error) {
	if title, ok := titles[ref]; ok {
		return s.catalog.FindArticleByTitle(ctx, documentName, title)
	}
	id, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return s.catalog.GetArticle(ctx, id)
}
