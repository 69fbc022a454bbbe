package mongodb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"document-archive-platform/internal/store"
	"document-archive-platform/models"
)

func (s *Store) Upsert(ctx context.Context, emb *models.Embedding) (bool, error) {
	if len(emb.Vector) != s.dimensions {
		return false, fmt.Errorf("%w: got %d, index configured for %d",
			store.ErrDimensionMismatch, len(emb.Vector), s.dimensions)
	}

	now := time.Now().UTC()
	res, err := s.embeddings.UpdateOne(ctx,
		bson.M{"article_id": emb.ArticleID},
		bson.M{
			"$set": bson.M{
				"vector":           emb.Vector,
				"model_name":       emb.ModelName,
				"publication_year": emb.PublicationYear,
				"updated_at":       now,
			},
			"$setOnInsert": bson.M{
				"article_id": emb.ArticleID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

func (s *Store) GetByArticle(ctx context.Context, articleID primitive.ObjectID) (*models.Embedding, error) {
	var emb models.Embedding
	err := s.embeddings.FindOne(ctx, bson.M{"article_id": articleID}).Decode(&emb)
	if err == mongo.ErrNoDocuments {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &emb, nil
}

// Nearest scans the filtered rows and ranks them by cosine distance in
// process. The corpus is a bounded archive, so a full scan stays cheap;
// swapping in a server-side vector index only touches this method.
func (s *Store) Nearest(ctx context.Context, query []float32, years *store.YearRange, page store.Page) (int64, []store.Neighbor, error) {
	filter := bson.M{}
	if yf := yearFilter(years); yf != nil {
		filter = yf
	}

	opts := options.Find().
		SetProjection(bson.M{"article_id": 1, "vector": 1}).
		SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.embeddings.Find(ctx, filter, opts)
	if err != nil {
		return 0, nil, err
	}
	defer cursor.Close(ctx)

	var neighbors []store.Neighbor
	for cursor.Next(ctx) {
		var row struct {
			ArticleID primitive.ObjectID `bson:"article_id"`
			Vector    []float32          `bson:"vector"`
		}
		if err := cursor.Decode(&row); err != nil {
			return 0, nil, err
		}
		neighbors = append(neighbors, store.Neighbor{
			ArticleID: row.ArticleID,
			Distance:  store.CosineDistance(query, row.Vector),
		})
	}
	if err := cursor.Err(); err != nil {
		return 0, nil, err
	}

	total := int64(len(neighbors))
	// Stable keeps insertion order on distance ties.
	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})

	return total, paginateNeighbors(neighbors, page), nil
}

func paginateNeighbors(neighbors []store.Neighbor, page store.Page) []store.Neighbor {
	if page.Offset >= len(neighbors) || page.Limit <= 0 {
		return nil
	}
	end := page.Offset + page.Limit
	if end > len(neighbors) {
		end = len(neighbors)
	}
	return neighbors[page.Offset:end]
}

func (s *Store) DeleteByArticles(ctx context.Context, articleIDs []primitive.ObjectID) error {
	if len(articleIDs) == 0 {
		return nil
	}
	_, err := s.embeddings.DeleteMany(ctx, bson.M{"article_id": bson.M{"$in": articleIDs}})
	return err
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.embeddings.CountDocuments(ctx, bson.M{})
}
