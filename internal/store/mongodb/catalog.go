package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"document-archive-platform/internal/store"
	"document-archive-platform/models"
)

// yearFilter builds the publication_year clause for a bounded range.
// Records without a publication year never match a bounded range.
func yearFilter(years *store.YearRange) bson.M {
	if years == nil || (years.Start == 0 && years.End == 0) {
		return nil
	}
	clause := bson.M{"$gt": 0}
	if years.Start != 0 {
		clause["$gte"] = years.Start
		delete(clause, "$gt")
	}
	if years.End != 0 {
		clause["$lte"] = years.End
	}
	return bson.M{"publication_year": clause}
}

func containsPattern(term string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) (primitive.ObjectID, error) {
	if doc.Name == "" {
		return primitive.NilObjectID, fmt.Errorf("document name must not be empty")
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.PublicationYear = doc.Year()
	_, err := s.documents.InsertOne(ctx, doc)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return doc.ID, nil
}

func (s *Store) GetDocument(ctx context.Context, id primitive.ObjectID) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) GetDocumentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.documents.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) ListDocuments(ctx context.Context, years *store.YearRange, page store.Page) (int64, []models.Document, error) {
	filter := bson.M{}
	if yf := yearFilter(years); yf != nil {
		filter = yf
	}

	total, err := s.documents.CountDocuments(ctx, filter)
	if err != nil {
		return 0, nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := s.documents.Find(ctx, filter, opts)
	if err != nil {
		return 0, nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return 0, nil, err
	}
	return total, docs, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id primitive.ObjectID) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	articles, err := s.ArticlesByDocument(ctx, id)
	if err != nil {
		return err
	}
	articleIDs := make([]primitive.ObjectID, 0, len(articles))
	for _, a := range articles {
		articleIDs = append(articleIDs, a.ID)
	}

	// Cascade: embeddings, then articles, then the document itself.
	if err := s.DeleteByArticles(ctx, articleIDs); err != nil {
		return err
	}
	if len(articleIDs) > 0 {
		if _, err := s.articles.DeleteMany(ctx, bson.M{"document_id": id}); err != nil {
			return err
		}
	}
	if _, err := s.documents.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}

	// Blob cleanup is best-effort; orphaned GridFS files are harmless.
	for _, att := range doc.Attachments {
		_ = s.Delete(ctx, att.FileID)
	}
	return nil
}

func (s *Store) SetAttachment(ctx context.Context, docID primitive.ObjectID, slot string, att models.Attachment) error {
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": docID},
		bson.M{"$set": bson.M{"attachments." + slot: att}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateArticle(ctx context.Context, article *models.Article) (primitive.ObjectID, error) {
	if article.Title == "" {
		return primitive.NilObjectID, fmt.Errorf("article title must not be empty")
	}
	if article.DocumentID.IsZero() {
		return primitive.NilObjectID, fmt.Errorf("article document id must be set")
	}
	if article.ID.IsZero() {
		article.ID = primitive.NewObjectID()
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now().UTC()
	}
	_, err := s.articles.InsertOne(ctx, article)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return article.ID, nil
}

func (s *Store) GetArticle(ctx context.Context, id primitive.ObjectID) (*models.Article, error) {
	var article models.Article
	err := s.articles.FindOne(ctx, bson.M{"_id": id}).Decode(&article)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *Store) GetArticlesByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cursor, err := s.articles.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var articles []models.Article
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *Store) ArticlesByDocument(ctx context.Context, docID primitive.ObjectID) ([]models.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.articles.Find(ctx, bson.M{"document_id": docID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var articles []models.Article
	if err := cursor.All(ctx, &articles); err != nil {
		return nil, err
	}
	return articles, nil
}

func (s *Store) ArticleCounts(ctx context.Context, docIDs []primitive.ObjectID) (map[primitive.ObjectID]int, error) {
	counts := make(map[primitive.ObjectID]int, len(docIDs))
	if len(docIDs) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"document_id": bson.M{"$in": docIDs}}}},
		{{Key: "$group", Value: bson.M{"_id": "$document_id", "count": bson.M{"$sum": 1}}}},
	}
	cursor, err := s.articles.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.ID] = row.Count
	}
	return counts, nil
}

func (s *Store) ListArticles(ctx context.Context, filter store.ArticleFilter, page store.Page) (int64, []models.Article, error) {
	query := bson.M{}
	if yf := yearFilter(filter.Years); yf != nil {
		for k, v := range yf {
			query[k] = v
		}
	}
	if filter.Category != "" {
		query["categories"] = containsPattern(filter.Category)
	}
	if filter.Keyword != "" {
		query["keywords"] = containsPattern(filter.Keyword)
	}

	total, err := s.articles.CountDocuments(ctx, query)
	if err != nil {
		return 0, nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := s.articles.Find(ctx, query, opts)
	if err != nil {
		return 0, nil, err
	}
	defer cursor.Close(ctx)

	var articles []models.Article
	if err := cursor.All(ctx, &articles); err != nil {
		return 0, nil, err
	}
	return total, articles, nil
}

func (s *Store) FindArticlesByField(ctx context.Context, field store.SearchField, terms []string, years *store.YearRange, page store.Page) (int64, []models.Article, error) {
	if len(terms) == 0 {
		return 0, nil, nil
	}

	var fieldName string
	switch field {
	case store.FieldKeywords:
		fieldName = "keywords"
	case store.FieldCategories:
		fieldName = "categories"
	case store.FieldSummary:
		fieldName = "summary"
	default:
		return 0, nil, fmt.Errorf("unknown search field %q", field)
	}

	// OR across terms; regex against an array field matches any element.
	or := make([]bson.M, 0, len(terms))
	for _, term := range terms {
		or = append(or, bson.M{fieldName: containsPattern(term)})
	}
	query := bson.M{"$or": or}
	if yf := yearFilter(years); yf != nil {
		for k, v := range yf {
			query[k] = v
		}
	}

	total, err := s.articles.CountDocuments(ctx, query)
	if err != nil {
		return 0, nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(page.Offset)).
		SetLimit(int64(page.Limit))
	cursor, err := s.articles.Find(ctx, query, opts)
	if err != nil {
		return 0, nil, err
	}
	defer cursor.Close(ctx)

	var articles []models.Article
	if err := cursor.All(ctx, &articles); err != nil {
		return 0, nil, err
	}
	return total, articles, nil
}

func (s *Store) FindArticleByTitle(ctx context.Context, documentName, title string) (*models.Article, error) {
	query := bson.M{"title": title}
	if documentName != "" {
		query["document_name"] = documentName
	}
	var article models.Article
	err := s.articles.FindOne(ctx, query).Decode(&article)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *Store) Counts(ctx context.Context) (store.Stats, error) {
	docs, err := s.documents.CountDocuments(ctx, bson.M{})
	if err != nil {
		return store.Stats{}, err
	}
	articles, err := s.articles.CountDocuments(ctx, bson.M{})
	if err != nil {
		return store.Stats{}, err
	}
	return store.Stats{Documents: docs, Articles: articles}, nil
}
