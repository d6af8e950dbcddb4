package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/FileShelf/internal/config"
	"github.com/dharsanguruparan/FileShelf/internal/snapshot"
)

// Storage wraps MinIO/S3 interactions. Uploaded bytes live in the blob bucket;
// persisted collections live in the state bucket, one object per collection.
type Storage struct {
	client      *minio.Client
	blobBucket  string
	stateBucket string
	region      string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		Secure: cfg.S3.UseSSL,
		Region: cfg.S3.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:      client,
		blobBucket:  cfg.S3.BlobBucket,
		stateBucket: cfg.S3.StateBucket,
		region:      cfg.S3.Region,
	}, nil
}

// EnsureBuckets makes sure the blob/state buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.blobBucket, s.stateBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// Put uploads a blob into the blob bucket.
func (s *Storage) Put(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.blobBucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload blob: %w", err)
	}
	return nil
}

// Open streams a blob from the blob bucket.
func (s *Storage) Open(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.blobBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get blob: %w", err)
	}
	return obj, nil
}

// Head fetches at most n leading bytes of a blob using a ranged GET.
func (s *Storage) Head(ctx context.Context, objectKey string, n int64) ([]byte, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(0, n-1); err != nil {
		return nil, fmt.Errorf("set range: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.blobBucket, objectKey, opts)
	if err != nil {
		return nil, fmt.Errorf("get blob head: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(io.LimitReader(obj, n))
	if err != nil {
		return nil, fmt.Errorf("read blob head: %w", err)
	}
	return buf, nil
}

// Read implements snapshot.Backend over the state bucket.
func (s *Storage) Read(ctx context.Context, collection string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.stateBucket, stateKey(collection), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", collection, err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("read state %s: %w", collection, err)
	}
	return buf, nil
}

// Write implements snapshot.Backend over the state bucket.
func (s *Storage) Write(ctx context.Context, collection string, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	_, err := s.client.PutObject(ctx, s.stateBucket, stateKey(collection), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("put state %s: %w", collection, err)
	}
	return nil
}

func stateKey(collection string) string {
	return "state/" + collection + ".json"
}

var _ snapshot.Backend = (*Storage)(nil)
