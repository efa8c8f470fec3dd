package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// parquetSource reads report rows by iterating through row groups.
// Columns are the top-level schema fields; nested schemas are not supported.
type parquetSource struct {
	file    *parquet.File
	closer  io.Closer
	columns []string

	rowGroups    []parquet.RowGroup
	currentRGIdx int
	currentRows  parquet.Rows
	rowBuf       []parquet.Row
	bufIdx       int
	bufLen       int
	ordinal      int
	cells        []string
}

// NewParquetSource reads a Parquet report from random-access data. closer
// is closed with the source and may be nil.
func NewParquetSource(r io.ReaderAt, size int64, closer io.Closer) (RowSource, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	fields := file.Schema().Fields()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name()
	}

	return &parquetSource{
		file:         file,
		closer:       closer,
		columns:      columns,
		rowGroups:    file.RowGroups(),
		currentRGIdx: -1,
		rowBuf:       make([]parquet.Row, 1024),
		cells:        make([]string, len(columns)),
	}, nil
}

func (s *parquetSource) Columns() []string {
	return s.columns
}

func (s *parquetSource) Next() (Row, error) {
	for {
		if s.bufIdx < s.bufLen {
			row := s.rowBuf[s.bufIdx]
			s.bufIdx++
			s.ordinal++
			return Row{Line: s.ordinal, Cells: s.toCells(row)}, nil
		}

		if s.currentRows != nil {
			n, err := s.currentRows.ReadRows(s.rowBuf)
			if n > 0 {
				s.bufIdx = 0
				s.bufLen = n
				continue
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return Row{}, fmt.Errorf("read parquet rows: %w", err)
			}
			s.currentRows.Close()
			s.currentRows = nil
		}

		s.currentRGIdx++
		if s.currentRGIdx >= len(s.rowGroups) {
			return Row{}, io.EOF
		}
		s.currentRows = s.rowGroups[s.currentRGIdx].Rows()
	}
}

// toCells renders each column value as text. Nulls become "".
// The returned slice is reused across calls.
func (s *parquetSource) toCells(row parquet.Row) []string {
	clear(s.cells)
	for _, val := range row {
		col := val.Column()
		if col < 0 || col >= len(s.cells) || val.IsNull() {
			continue
		}
		s.cells[col] = val.String()
	}
	return s.cells
}

func (s *parquetSource) Close() error {
	if s.currentRows != nil {
		s.currentRows.Close()
		s.currentRows = nil
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
