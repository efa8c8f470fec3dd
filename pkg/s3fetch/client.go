// Package s3fetch opens duplicate reports stored in S3.
package s3fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client fetches report objects from S3.
type Client struct {
	s3Client   *s3.Client
	downloader *Downloader
}

// NewClient creates a new S3 client using default AWS configuration.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(cfg), nil
}

// NewClientWithConfig creates a new S3 client with a custom AWS config.
func NewClientWithConfig(cfg aws.Config) *Client {
	s3Client := s3.NewFromConfig(cfg)
	return &Client{
		s3Client:   s3Client,
		downloader: NewDownloader(s3Client, DefaultDownloaderConfig()),
	}
}

// StreamObject returns a reader for an S3 object. CSV reports are read this way.
func (c *Client) StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// DownloadObject copies an S3 object to a local temp file that supports
// random access. Parquet reports are read this way.
func (c *Client) DownloadObject(ctx context.Context, bucket, key string) (*TempObject, error) {
	return c.downloader.Download(ctx, bucket, key)
}

// IsS3URI reports whether location uses the s3:// scheme.
func IsS3URI(location string) bool {
	return strings.HasPrefix(location, "s3://")
}

// ParseS3URI parses an S3 URI (s3://bucket/key) into bucket and key components.
// Both parts are required since a report is always a single object.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", errors.New("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	bucket, key, _ = strings.Cut(path, "/")
	if bucket == "" {
		return "", "", errors.New("invalid S3 URI: missing bucket name")
	}
	if key == "" {
		return "", "", fmt.Errorf("invalid S3 URI %q: missing object key", uri)
	}
	return bucket, key, nil
}
