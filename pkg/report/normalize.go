package report

import (
	"context"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/humanfmt"
)

// maxRowErrors caps how many dropped-row details a Result keeps.
const maxRowErrors = 1000

// naTokens are cell values read as "absent", matching what common
// dataframe tooling writes for missing data.
var naTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

var masterTrue = map[string]struct{}{"true": {}, "1": {}, "yes": {}, "y": {}}

// timestampLayouts are tried in order for non-numeric timestamps. Values
// without a zone are read as UTC.
var timestampLayouts = []string{
	catalog.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006:01:02 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Result is the output of Normalize.
type Result struct {
	Records []catalog.ImageRecord
	// Dropped counts rows removed for missing mandatory values or parse failures.
	Dropped int
	// RowErrors holds details for up to the first 1000 dropped rows.
	RowErrors []RowError
}

// Normalize reads every row of src and coerces it into an ImageRecord.
// A header without the mandatory columns fails with *SchemaError before
// any row is read. Rows missing GroupID, File or Path are dropped and
// counted. Each record's SourceRow is its position among all data rows.
func Normalize(ctx context.Context, src RowSource) (*Result, error) {
	log := logctx.FromContext(ctx)

	cols := indexColumns(src.Columns())
	if missing := cols.missing(); len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	res := &Result{}
	drop := func(line int, reason string) {
		res.Dropped++
		if len(res.RowErrors) < maxRowErrors {
			res.RowErrors = append(res.RowErrors, RowError{Line: line, Reason: reason})
		}
		log.Debug().Int("line", line).Str("reason", reason).Msg("dropped report row")
	}

	for seq := 0; ; seq++ {
		row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				drop(rowErr.Line, rowErr.Reason)
				continue
			}
			return nil, err
		}

		rec, reason := cols.record(row.Cells)
		if reason != "" {
			drop(row.Line, reason)
			continue
		}
		rec.SourceRow = seq
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func (ci columnIndex) cell(cells []string, col string) string {
	i, ok := ci[col]
	if !ok || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// record builds one ImageRecord. A non-empty reason means the row is dropped.
func (ci columnIndex) record(cells []string) (catalog.ImageRecord, string) {
	text := func(col string) *string { return parseText(ci.cell(cells, col)) }

	var rec catalog.ImageRecord
	groupID := parseText(strings.TrimSpace(ci.cell(cells, ColGroupID)))
	file := text(ColFile)
	path := text(ColPath)
	switch {
	case groupID == nil:
		return rec, "missing GroupID"
	case file == nil:
		return rec, "missing File"
	case path == nil:
		return rec, "missing Path"
	}

	rec.GroupID = *groupID
	rec.File = *file
	rec.Path = *path
	rec.IsMaster = ParseMaster(ci.cell(cells, ColMaster))
	rec.Algorithm = text(ColAlgorithm)
	rec.Name = text(ColName)
	rec.SizeBytes = parseSize(ci.cell(cells, ColSize))
	rec.CreatedAt = ParseTimestamp(ci.cell(cells, ColCreated))
	rec.ModifiedAt = ParseTimestamp(ci.cell(cells, ColModified))
	rec.DateTaken = ParseTimestamp(ci.cell(cells, ColDateTaken))
	rec.Width = parseDimension(ci.cell(cells, ColWidth))
	rec.Height = parseDimension(ci.cell(cells, ColHeight))
	rec.FileType = text(ColFileType)
	rec.CameraMake = text(ColCameraMake)
	rec.CameraModel = text(ColCameraModel)
	rec.QualityScore = parseFloat(ci.cell(cells, ColQualityScore))
	rec.SimilarityScore = parseFloat(ci.cell(cells, ColSimilarityScore))
	rec.IPTCKeywords = text(ColIPTCKeywords)
	rec.IPTCCaption = text(ColIPTCCaption)
	rec.XMPKeywords = text(ColXMPKeywords)
	rec.XMPTitle = text(ColXMPTitle)
	rec.MatchReasons = text(ColMatchReasons)
	return rec, ""
}

func isNA(v string) bool {
	_, ok := naTokens[v]
	return ok
}

// parseText returns nil for an empty or NA cell. Other values are kept verbatim.
func parseText(v string) *string {
	if isNA(v) {
		return nil
	}
	return &v
}

// ParseMaster reports whether a master flag cell means true: one of
// true, 1, yes, y in any case. Anything else, including empty, is false.
func ParseMaster(v string) bool {
	_, ok := masterTrue[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

func parseFloat(v string) *float64 {
	v = strings.TrimSpace(v)
	if isNA(v) {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseDimension reads a pixel count written as any number, truncating
// fractions. Values outside int32 are absent.
func parseDimension(v string) *int32 {
	f := parseFloat(v)
	if f == nil || *f > math.MaxInt32 || *f < math.MinInt32 {
		return nil
	}
	n := int32(*f)
	return &n
}

func parseSize(v string) *int64 {
	v = strings.TrimSpace(v)
	if isNA(v) {
		return nil
	}
	n, err := humanfmt.ParseSize(v)
	if err != nil {
		return nil
	}
	return &n
}

// ParseTimestamp reads a Unix epoch number or a date string and returns it
// in UTC truncated to whole seconds. Epoch values are scaled by magnitude:
// seconds below 1e11, then milliseconds, microseconds and nanoseconds.
// Unparsable values return nil.
func ParseTimestamp(v string) *time.Time {
	v = strings.TrimSpace(v)
	if isNA(v) {
		return nil
	}

	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return epoch(f)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC().Truncate(time.Second)
			return &t
		}
	}
	return nil
}

func epoch(f float64) *time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	abs := math.Abs(f)
	var t time.Time
	switch {
	case abs >= 1e17:
		t = time.Unix(0, int64(f))
	case abs >= 1e14:
		t = time.UnixMicro(int64(f))
	case abs >= 1e11:
		t = time.UnixMilli(int64(f))
	default:
		sec, frac := math.Modf(f)
		t = time.Unix(int64(sec), int64(frac*1e9))
	}
	t = t.UTC().Truncate(time.Second)
	return &t
}
