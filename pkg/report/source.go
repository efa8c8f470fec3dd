package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/eunmann/lineup/pkg/s3fetch"
)

// Row is one raw report row. Cells align with the source's Columns.
type Row struct {
	Line  int
	Cells []string
}

// RowSource yields raw report rows.
type RowSource interface {
	// Columns returns the header names.
	Columns() []string
	// Next returns the next row, io.EOF at the end. A *RowError means the
	// row could not be parsed and reading may continue.
	Next() (Row, error)
	// Close releases resources.
	Close() error
}

// Format is a report file format.
type Format int

const (
	FormatCSV Format = iota
	FormatParquet
)

func (f Format) String() string {
	if f == FormatParquet {
		return "parquet"
	}
	return "csv"
}

// DetectFormat infers the format from a location's extension. A trailing
// .gz marks gzip compression.
func DetectFormat(location string) (Format, bool) {
	name := strings.ToLower(path.Base(location))
	gz := strings.HasSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gz")
	if strings.HasSuffix(name, ".parquet") {
		return FormatParquet, gz
	}
	return FormatCSV, gz
}

// Open opens a report at a local path or an s3:// URI.
func Open(ctx context.Context, location string) (RowSource, error) {
	format, gz := DetectFormat(location)

	if s3fetch.IsS3URI(location) {
		return openS3(ctx, location, format, gz)
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	if format == FormatParquet && !gz {
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat report: %w", err)
		}
		return NewParquetSource(f, info.Size(), f)
	}
	return openStream(f, format, gz)
}

func openS3(ctx context.Context, location string, format Format, gz bool) (RowSource, error) {
	bucket, key, err := s3fetch.ParseS3URI(location)
	if err != nil {
		return nil, err
	}
	client, err := s3fetch.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	if format == FormatParquet && !gz {
		obj, err := client.DownloadObject(ctx, bucket, key)
		if err != nil {
			return nil, err
		}
		return NewParquetSource(obj, obj.Size(), obj)
	}

	body, err := client.StreamObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return openStream(body, format, gz)
}

// openStream handles sequential inputs. Gzipped Parquet is buffered to a
// temp file since Parquet needs random access.
func openStream(r io.ReadCloser, format Format, gz bool) (RowSource, error) {
	if format == FormatCSV {
		return NewCSVSourceFromStream(r, gz)
	}

	stream, err := decompress(r, gz)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	tmp, err := os.CreateTemp("", "lineup-report-*.parquet")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, stream); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("buffer parquet data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	obj, err := s3fetch.OpenTempObject(tmp.Name())
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}
	return NewParquetSource(obj, obj.Size(), obj)
}
