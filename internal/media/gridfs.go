package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("media not found")

const metaContentType = "content_type"

// Object is an open media file. Callers must Close it.
type Object struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// GridFSStore keeps product images and videos in a MongoDB GridFS bucket.
type GridFSStore struct {
	db     *mongo.Database
	bucket string
	logger *zap.Logger
}

func NewGridFSStore(db *mongo.Database, bucket string, logger *zap.Logger) *GridFSStore {
	return &GridFSStore{
		db:     db,
		bucket: bucket,
		logger: logger,
	}
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(20)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

// openBucket returns a bucket handle bounded by the deadline of ctx.
// Deadlines are bucket state, so every call gets its own handle.
func (s *GridFSStore) openBucket(ctx context.Context) (*gridfs.Bucket, error) {
	b, err := gridfs.NewBucket(s.db, options.GridFSBucket().SetName(s.bucket))
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := b.SetWriteDeadline(deadline); err != nil {
			return nil, err
		}
		if err := b.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// PutImage stores a resized JPEG rendition of the uploaded image.
func (s *GridFSStore) PutImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	thumb, err := Thumbnail(r)
	if err != nil {
		return "", err
	}
	return s.PutFile(ctx, filename, "image/jpeg", bytes.NewReader(thumb))
}

func (s *GridFSStore) PutFile(ctx context.Context, filename, contentType string, r io.Reader) (string, error) {
	b, err := s.openBucket(ctx)
	if err != nil {
		return "", err
	}

	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: metaContentType, Value: contentType}})
	id, err := b.UploadFromStream(filename, r, opts)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}

	s.logger.Debug("media stored",
		zap.String("media_id", id.Hex()),
		zap.String("filename", filename),
		zap.String("content_type", contentType),
	)
	return id.Hex(), nil
}

func (s *GridFSStore) Open(ctx context.Context, id string) (*Object, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	b, err := s.openBucket(ctx)
	if err != nil {
		return nil, err
	}

	stream, err := b.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}

	file := stream.GetFile()
	contentType := "application/octet-stream"
	if file.Metadata != nil {
		if ct, ok := file.Metadata.Lookup(metaContentType).StringValueOK(); ok && ct != "" {
			contentType = ct
		}
	}
	return &Object{
		ReadCloser:  stream,
		ContentType: contentType,
		Size:        file.Length,
	}, nil
}

func (s *GridFSStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	b, err := s.openBucket(ctx)
	if err != nil {
		return err
	}

	err = b.DeleteContext(ctx, oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return ErrNotFound
	}
	return err
}
