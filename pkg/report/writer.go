package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/lineup/pkg/catalog"
)

// Writer writes catalog records as report rows.
type Writer interface {
	Write(rec *catalog.ImageRecord) error
	// Close flushes buffered rows. It does not close the underlying writer.
	Close() error
}

// NewWriter returns a writer for the given format.
func NewWriter(w io.Writer, format Format) Writer {
	if format == FormatParquet {
		return NewParquetWriter(w)
	}
	return NewCSVWriter(w)
}

// FormatRecord renders rec as cells in Columns order. Absent values are
// empty, so the output normalizes back to the same record.
func FormatRecord(rec *catalog.ImageRecord) []string {
	return []string{
		rec.GroupID,
		str(rec.Algorithm),
		strconv.FormatBool(rec.IsMaster),
		rec.File,
		str(rec.Name),
		rec.Path,
		formatInt(rec.SizeBytes),
		formatTime(rec.CreatedAt),
		formatTime(rec.ModifiedAt),
		formatInt32(rec.Width),
		formatInt32(rec.Height),
		str(rec.FileType),
		str(rec.CameraMake),
		str(rec.CameraModel),
		formatTime(rec.DateTaken),
		formatFloat(rec.QualityScore),
		str(rec.IPTCKeywords),
		str(rec.IPTCCaption),
		str(rec.XMPKeywords),
		str(rec.XMPTitle),
		formatFloat(rec.SimilarityScore),
		str(rec.MatchReasons),
	}
}

type csvWriter struct {
	w *csv.Writer
}

// NewCSVWriter writes a header row followed by one row per record.
func NewCSVWriter(w io.Writer) Writer {
	cw := &csvWriter{w: csv.NewWriter(w)}
	// Header errors resurface from Flush in Close.
	_ = cw.w.Write(Columns)
	return cw
}

func (c *csvWriter) Write(rec *catalog.ImageRecord) error {
	if err := c.w.Write(FormatRecord(rec)); err != nil {
		return fmt.Errorf("write CSV row: %w", err)
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}
	return nil
}

// parquetRow mirrors the report columns. Every column is an optional string
// so a Parquet export reads back exactly like the CSV form.
type parquetRow struct {
	GroupID         *string `parquet:"GroupID,optional"`
	Algorithm       *string `parquet:"Algorithm,optional"`
	Master          *string `parquet:"Master,optional"`
	File            *string `parquet:"File,optional"`
	Name            *string `parquet:"Name,optional"`
	Path            *string `parquet:"Path,optional"`
	Size            *string `parquet:"Size,optional"`
	Created         *string `parquet:"Created,optional"`
	Modified        *string `parquet:"Modified,optional"`
	Width           *string `parquet:"Width,optional"`
	Height          *string `parquet:"Height,optional"`
	FileType        *string `parquet:"FileType,optional"`
	CameraMake      *string `parquet:"CameraMake,optional"`
	CameraModel     *string `parquet:"CameraModel,optional"`
	DateTaken       *string `parquet:"DateTaken,optional"`
	QualityScore    *string `parquet:"QualityScore,optional"`
	IPTCKeywords    *string `parquet:"IPTCKeywords,optional"`
	IPTCCaption     *string `parquet:"IPTCCaption,optional"`
	XMPKeywords     *string `parquet:"XMPKeywords,optional"`
	XMPTitle        *string `parquet:"XMPTitle,optional"`
	SimilarityScore *string `parquet:"SimilarityScore,optional"`
	MatchReasons    *string `parquet:"MatchReasons,optional"`
}

// parquetFlushRows bounds the rows buffered before a write call.
const parquetFlushRows = 4096

type parquetWriter struct {
	w   *parquet.GenericWriter[parquetRow]
	buf []parquetRow
}

// NewParquetWriter writes records as a single Parquet file.
func NewParquetWriter(w io.Writer) Writer {
	return &parquetWriter{
		w:   parquet.NewGenericWriter[parquetRow](w),
		buf: make([]parquetRow, 0, parquetFlushRows),
	}
}

func (p *parquetWriter) Write(rec *catalog.ImageRecord) error {
	cells := FormatRecord(rec)
	opt := func(i int) *string {
		if cells[i] == "" {
			return nil
		}
		return &cells[i]
	}
	p.buf = append(p.buf, parquetRow{
		GroupID: opt(0), Algorithm: opt(1), Master: opt(2), File: opt(3),
		Name: opt(4), Path: opt(5), Size: opt(6), Created: opt(7),
		Modified: opt(8), Width: opt(9), Height: opt(10), FileType: opt(11),
		CameraMake: opt(12), CameraModel: opt(13), DateTaken: opt(14),
		QualityScore: opt(15), IPTCKeywords: opt(16), IPTCCaption: opt(17),
		XMPKeywords: opt(18), XMPTitle: opt(19), SimilarityScore: opt(20),
		MatchReasons: opt(21),
	})
	if len(p.buf) >= parquetFlushRows {
		return p.flush()
	}
	return nil
}

func (p *parquetWriter) flush() error {
	if len(p.buf) == 0 {
		return nil
	}
	if _, err := p.w.Write(p.buf); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	p.buf = p.buf[:0]
	return nil
}

func (p *parquetWriter) Close() error {
	if err := p.flush(); err != nil {
		return err
	}
	if err := p.w.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}

func formatInt32(n *int32) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(int64(*n), 10)
}

func formatFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return catalog.FormatTimestamp(*t)
}
