package s3fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eunmann/lineup/pkg/logging"
)

// DownloaderConfig configures the S3 Download Manager.
type DownloaderConfig struct {
	// Concurrency is the number of concurrent download parts.
	// Default: NumCPU clamped to [2, 8].
	Concurrency int

	// PartSize is the size of each download part in bytes. Default: 8MB.
	PartSize int64

	// TempDir is the directory for temporary download files.
	// If empty, os.TempDir() is used.
	TempDir string
}

// DefaultDownloaderConfig returns defaults based on the current machine.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Concurrency: min(max(runtime.NumCPU(), 2), 8),
		PartSize:    8 * 1024 * 1024,
	}
}

// Downloader wraps the AWS S3 Download Manager for parallel range downloads.
type Downloader struct {
	manager *manager.Downloader
	config  DownloaderConfig
}

// NewDownloader creates an S3 Downloader from an existing S3 client.
// Zero config values are filled from DefaultDownloaderConfig.
func NewDownloader(s3Client *s3.Client, cfg DownloaderConfig) *Downloader {
	def := DefaultDownloaderConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PartSize <= 0 {
		cfg.PartSize = def.PartSize
	}

	mgr := manager.NewDownloader(s3Client, func(d *manager.Downloader) {
		d.Concurrency = cfg.Concurrency
		d.PartSize = cfg.PartSize
	})
	return &Downloader{manager: mgr, config: cfg}
}

// Config returns the downloader configuration.
func (d *Downloader) Config() DownloaderConfig {
	return d.config
}

// Download fetches an object into a temp file. The caller must Close the
// result, which removes the file.
func (d *Downloader) Download(ctx context.Context, bucket, key string) (*TempObject, error) {
	start := time.Now()

	tempFile, err := os.CreateTemp(d.config.TempDir, "lineup-report-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	n, err := d.manager.Download(ctx, tempFile, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return nil, fmt.Errorf("download s3://%s/%s: %w", bucket, key, err)
	}

	logging.L().Debug().
		Str("bucket", bucket).
		Str("key", key).
		Int64("bytes", n).
		Dur("elapsed", time.Since(start)).
		Msg("report downloaded")

	return &TempObject{file: tempFile, path: tempFile.Name(), size: n}, nil
}

// TempObject is a downloaded object backed by a temp file that is
// deleted on Close.
type TempObject struct {
	file *os.File
	path string
	size int64
}

// OpenTempObject wraps an existing file as a TempObject. Close deletes it.
func OpenTempObject(path string) (*TempObject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open temp object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat temp object: %w", err)
	}
	return &TempObject{file: f, path: path, size: info.Size()}, nil
}

// Read reads sequentially from the start of the object.
func (o *TempObject) Read(p []byte) (int, error) {
	n, err := o.file.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read temp file: %w", err)
	}
	return n, err
}

// ReadAt implements io.ReaderAt for Parquet.
func (o *TempObject) ReadAt(p []byte, off int64) (int, error) {
	n, err := o.file.ReadAt(p, off)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("read temp file at offset %d: %w", off, err)
	}
	return n, err
}

// Size returns the object size in bytes.
func (o *TempObject) Size() int64 {
	return o.size
}

// Close closes and deletes the temp file.
func (o *TempObject) Close() error {
	err := o.file.Close()
	os.Remove(o.path)
	if err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}
