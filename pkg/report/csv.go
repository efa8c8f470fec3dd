package report

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

type csvSource struct {
	csvReader *csv.Reader
	header    []string
	closers   []io.Closer
}

// NewCSVSource reads a report from uncompressed CSV data. The first record
// is the header; an empty input yields a source with no columns.
func NewCSVSource(r io.Reader) (RowSource, error) {
	return newCSVSource(r, nil)
}

// NewCSVSourceFromStream reads a CSV report, decompressing when gz is set.
// Closing the source closes r.
func NewCSVSourceFromStream(r io.ReadCloser, gz bool) (RowSource, error) {
	stream, err := decompress(r, gz)
	if err != nil {
		return nil, err
	}
	return newCSVSource(stream, []io.Closer{stream})
}

func newCSVSource(r io.Reader, closers []io.Closer) (RowSource, error) {
	csvr := csv.NewReader(r)
	csvr.ReuseRecord = true
	csvr.FieldsPerRecord = -1
	csvr.LazyQuotes = true

	src := &csvSource{csvReader: csvr, closers: closers}
	header, err := csvr.Read()
	switch {
	case errors.Is(err, io.EOF):
		return src, nil
	case err != nil:
		src.Close()
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	src.header = append([]string(nil), header...)
	return src, nil
}

func (s *csvSource) Columns() []string {
	return s.header
}

func (s *csvSource) Next() (Row, error) {
	if s.header == nil {
		return Row{}, io.EOF
	}
	fields, err := s.csvReader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Row{}, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return Row{}, &RowError{Line: pe.StartLine, Reason: pe.Err.Error()}
		}
		return Row{}, fmt.Errorf("read CSV row: %w", err)
	}
	line, _ := s.csvReader.FieldPos(0)
	return Row{Line: line, Cells: fields}, nil
}

func (s *csvSource) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	return errors.Join(errs...)
}

// gzipStream closes both the gzip reader and the underlying stream.
type gzipStream struct {
	*gzip.Reader
	src io.Closer
}

func (g *gzipStream) Close() error {
	return errors.Join(g.Reader.Close(), g.src.Close())
}

func decompress(r io.ReadCloser, gz bool) (io.ReadCloser, error) {
	if !gz {
		return r, nil
	}
	gzr, err := gzip.NewReader(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	return &gzipStream{Reader: gzr, src: r}, nil
}
