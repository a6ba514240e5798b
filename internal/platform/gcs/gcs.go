package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Client wraps a GCS bucket with the byte-level Put/Get/Remove surface
// the document services need. Remove treats missing objects as already
// removed so cleanup stays idempotent.
type Client struct {
	client *storage.Client
	bucket string
}

func New(ctx context.Context, bucket, credentialsFile string) (*Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client failed: %w", err)
	}

	return &Client{client: client, bucket: bucket}, nil
}

func (c *Client) Put(ctx context.Context, path string, data []byte, contentType string) error {
	writer := c.client.Bucket(c.bucket).Object(path).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("write object %s failed: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s failed: %w", path, err)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	reader, err := c.client.Bucket(c.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s failed: %w", path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read object %s failed: %w", path, err)
	}
	return data, nil
}

func (c *Client) Remove(ctx context.Context, paths []string) error {
	for _, path := range paths {
		err := c.client.Bucket(c.bucket).Object(path).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("delete object %s failed: %w", path, err)
		}
	}
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
