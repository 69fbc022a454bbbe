package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attachment slots a document can carry. Each slot holds at most one blob.
const (
	SlotPDF      = "pdf"
	SlotTxt      = "txt"
	SlotMarkdown = "markdown"
	SlotJSON     = "json"
)

// AttachmentSlots in fetch order.
var AttachmentSlots = []string{SlotPDF, SlotTxt, SlotMarkdown, SlotJSON}

// SlotContentType returns the content type stored for a given slot.
func SlotContentType(slot string) string {
	switch slot {
	case SlotPDF:
		return "application/pdf"
	case SlotTxt:
		return "text/plain"
	case SlotMarkdown:
		return "text/markdown"
	case SlotJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Attachment references a blob in the attachment store.
type Attachment struct {
	FileID      primitive.ObjectID `bson:"file_id"`
	Filename    string             `bson:"filename"`
	ContentType string             `bson:"content_type"`
	Size        int64              `bson:"size,omitempty"`
	Pages       int                `bson:"pages,omitempty"` // PDFs only
}

// Document is an archived source file owning zero or more articles.
// PublicationDate is set once at creation (explicit or inferred from the
// name) and never recomputed. PublicationYear is denormalized for range
// filters.
type Document struct {
	ID              primitive.ObjectID    `bson:"_id,omitempty"`
	Name            string                `bson:"name"`
	PublicationDate *time.Time            `bson:"publication_date,omitempty"`
	PublicationYear int                   `bson:"publication_year,omitempty"`
	CreatedAt       time.Time             `bson:"created_at"`
	Attachments     map[string]Attachment `bson:"attachments,omitempty"`
}

// Year returns the publication year, or 0 when the date is unknown.
func (d *Document) Year() int {
	if d.PublicationDate == nil {
		return 0
	}
	return d.PublicationDate.Year()
}
