package report

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/eunmann/lineup/pkg/catalog"
)

func ptr[T any](v T) *T { return &v }

func sampleRecords() []catalog.ImageRecord {
	taken := time.Date(2021, 6, 1, 12, 30, 0, 0, time.UTC)
	return []catalog.ImageRecord{
		{
			GroupID: "g1", Algorithm: ptr("phash"), IsMaster: true, File: "a.jpg", Name: ptr("A"),
			Path: "/photos/a.jpg", SizeBytes: ptr(int64(1572864)), DateTaken: &taken, CreatedAt: &taken,
			Width: ptr(int32(4000)), Height: ptr(int32(3000)), FileType: ptr("JPEG"),
			CameraMake: ptr("Canon"), CameraModel: ptr("EOS R5"), QualityScore: ptr(9.25),
			SimilarityScore: ptr(0.5), IPTCKeywords: ptr("beach, \"summer\""), MatchReasons: ptr("hash"),
		},
		{GroupID: "g1", File: "b.jpg", Path: "/photos/b,copy.jpg", SourceRow: 1},
	}
}

// reportable clears fields a report cannot carry.
func reportable(recs []catalog.ImageRecord) []catalog.ImageRecord {
	out := make([]catalog.ImageRecord, len(recs))
	for i, r := range recs {
		r.FileExists = false
		r.SourceRow = i
		out[i] = r
	}
	return out
}

func writeAll(t *testing.T, w Writer, recs []catalog.ImageRecord) {
	t.Helper()
	for i := range recs {
		if err := w.Write(&recs[i]); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readAll(t *testing.T, location string) []catalog.ImageRecord {
	t.Helper()
	src, err := Open(context.Background(), location)
	if err != nil {
		t.Fatalf("Open(%s): %v", location, err)
	}
	defer src.Close()
	res, err := Normalize(context.Background(), src)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dropped != 0 {
		t.Fatalf("dropped %d rows: %+v", res.Dropped, res.RowErrors)
	}
	return res.Records
}

func TestRoundTrip(t *testing.T) {
	want := reportable(sampleRecords())

	tests := []struct {
		name   string
		file   string
		format Format
		gzip   bool
	}{
		{"csv", "report.csv", FormatCSV, false},
		{"csv gzip", "report.csv.gz", FormatCSV, true},
		{"parquet", "report.parquet", FormatParquet, false},
		{"parquet gzip", "report.parquet.gz", FormatParquet, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if f, gz := DetectFormat(tt.file); f != tt.format || gz != tt.gzip {
				t.Fatalf("DetectFormat(%s) = %v, %v", tt.file, f, gz)
			}

			var buf bytes.Buffer
			writeAll(t, NewWriter(&buf, tt.format), sampleRecords())
			data := buf.Bytes()
			if tt.gzip {
				var zbuf bytes.Buffer
				zw := gzip.NewWriter(&zbuf)
				if _, err := zw.Write(data); err != nil {
					t.Fatalf("gzip: %v", err)
				}
				if err := zw.Close(); err != nil {
					t.Fatalf("gzip close: %v", err)
				}
				data = zbuf.Bytes()
			}

			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}

			got := readAll(t, path)
			if !reflect.DeepEqual(reportable(got), want) {
				t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
			}
		})
	}
}

func TestCSVWriterLayout(t *testing.T) {
	var buf bytes.Buffer
	writeAll(t, NewCSVWriter(&buf), sampleRecords()[1:])

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0] != strings.Join(Columns, ",") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], `g1,,false,b.jpg,,"/photos/b,copy.jpg",`) {
		t.Errorf("row = %q", lines[1])
	}
}

func TestFormatRecordTimestamp(t *testing.T) {
	cells := FormatRecord(&sampleRecords()[0])
	if got := cells[14]; got != "2021-06-01 12:30:00" {
		t.Errorf("DateTaken cell = %q", got)
	}
	if got := cells[6]; got != "1572864" {
		t.Errorf("Size cell = %q", got)
	}
	if got := cells[15]; got != "9.25" {
		t.Errorf("QualityScore cell = %q", got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing report")
	}
}
