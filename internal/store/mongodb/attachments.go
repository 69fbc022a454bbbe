package mongodb

import (
	"bytes"
	"context"
	"io"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"document-archive-platform/internal/store"
)

// GridFS bucket calls in driver v1 do not take a context; deadlines are
// propagated from ctx when present.

func (s *Store) Put(ctx context.Context, filename, contentType string, data []byte) (primitive.ObjectID, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetWriteDeadline(deadline)
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	fileID, err := s.bucket.UploadFromStream(filename, bytes.NewReader(data), opts)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return fileID, nil
}

func (s *Store) Open(ctx context.Context, id primitive.ObjectID) (io.ReadCloser, *store.AttachmentInfo, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetReadDeadline(deadline)
	}
	stream, err := s.bucket.OpenDownloadStream(id)
	if err != nil {
		if err == gridfs.ErrFileNotFound {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, err
	}

	file := stream.GetFile()
	info := &store.AttachmentInfo{
		Filename:    file.Name,
		ContentType: "application/octet-stream",
		Size:        file.Length,
	}
	if len(file.Metadata) > 0 {
		var md struct {
			ContentType string `bson:"content_type"`
		}
		if err := bson.Unmarshal(file.Metadata, &md); err == nil && md.ContentType != "" {
			info.ContentType = md.ContentType
		}
	}
	return stream, info, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetWriteDeadline(deadline)
	}
	err := s.bucket.Delete(id)
	if err == gridfs.ErrFileNotFound {
		return store.ErrNotFound
	}
	return err
}
