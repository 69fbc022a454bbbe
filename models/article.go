package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Article is a structured excerpt belonging to exactly one document.
// DocumentName and PublicationYear are denormalized from the owning
// document so search results and year filters never need a join.
type Article struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	DocumentID      primitive.ObjectID `bson:"document_id"`
	DocumentName    string             `bson:"document_name,omitempty"`
	Title           string             `bson:"title"`
	Summary         string             `bson:"summary,omitempty"`
	Categories      []string           `bson:"categories,omitempty"`
	Keywords        []string           `bson:"keywords,omitempty"`
	PageStart       *int               `bson:"page_start,omitempty"`
	PageEnd         *int               `bson:"page_end,omitempty"`
	PublicationYear int                `bson:"publication_year,omitempty"`
	CreatedAt       time.Time          `bson:"created_at"`
}
