package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOSink archives journal exports as objects in an S3-compatible bucket.
type MinIOSink struct {
	client *minio.Client
	bucket string
}

// NewMinIOSink connects to endpoint and creates the bucket if it is missing.
func NewMinIOSink(ctx context.Context, endpoint, bucket, accessKey, secretKey string, useSSL bool) (*MinIOSink, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", bucket, err)
		}
	}

	return &MinIOSink{client: cli, bucket: bucket}, nil
}

func (s *MinIOSink) Name() string { return "minio" }

// Put uploads data as {bucket}/{name} and returns the object URL.
func (s *MinIOSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", name, err)
	}
	return objectURL(s.client.EndpointURL().String(), s.bucket, name), nil
}

// Get downloads {bucket}/{name}.
func (s *MinIOSink) Get(ctx context.Context, name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", name, err)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only shows up on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrExportNotFound, name)
		}
		return nil, fmt.Errorf("downloading %s: %w", name, err)
	}
	return data, nil
}

func objectURL(endpoint, bucket, name string) string {
	return fmt.Sprintf("%s/%s/%s", endpoint, bucket, name)
}
