// Package mongodb backs the store contracts with MongoDB: documents,
// articles and embeddings collections plus a GridFS bucket for
// attachment blobs.
package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	client     *mongo.Client
	documents  *mongo.Collection
	articles   *mongo.Collection
	embeddings *mongo.Collection
	bucket     *gridfs.Bucket
	dimensions int
}

// NewStore wires the collections. dimensions is the vector index's
// configured dimensionality; every upserted vector must match it.
func NewStore(client *mongo.Client, dbName string, dimensions int) (*Store, error) {
	db := client.Database(dbName)
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName("attachments"))
	if err != nil {
		return nil, err
	}
	return &Store{
		client:     client,
		documents:  db.Collection("documents"),
		articles:   db.Collection("articles"),
		embeddings: db.Collection("embeddings"),
		bucket:     bucket,
		dimensions: dimensions,
	}, nil
}

// WithTransaction runs fn in a multi-document transaction. The session
// context passed to fn must be used for every write that should roll
// back together.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
