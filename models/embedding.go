package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Embedding is the semantic vector for one article (at most one per
// article). Every stored vector must match the index's configured
// dimensionality; changing the dimensionality requires re-embedding.
type Embedding struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	ArticleID       primitive.ObjectID `bson:"article_id"`
	Vector          []float32          `bson:"vector"`
	ModelName       string             `bson:"model_name,omitempty"`
	PublicationYear int                `bson:"publication_year,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at"`
}
