package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/eunmann/lineup/pkg/catalog"
)

// imageColumns are written and read in this order.
var imageColumns = []string{
	"group_id", "algorithm", "is_master", "file", "name", "path", "size_bytes",
	"created_date", "modified_date", "width", "height", "file_type",
	"camera_make", "camera_model", "date_taken", "quality_score",
	"iptc_keywords", "iptc_caption", "xmp_keywords", "xmp_title",
	"similarity_score", "match_reasons", "file_exists", "source_row",
}

var selectImageColumns = strings.Join(imageColumns, ", ")

// appendArgs appends rec's column values to args.
func appendArgs(args []any, rec *catalog.ImageRecord) []any {
	return append(args,
		rec.GroupID,
		nullString(rec.Algorithm),
		rec.IsMaster,
		rec.File,
		nullString(rec.Name),
		rec.Path,
		nullInt64(rec.SizeBytes),
		nullTime(rec.CreatedAt),
		nullTime(rec.ModifiedAt),
		nullInt32(rec.Width),
		nullInt32(rec.Height),
		nullString(rec.FileType),
		nullString(rec.CameraMake),
		nullString(rec.CameraModel),
		nullTime(rec.DateTaken),
		nullFloat(rec.QualityScore),
		nullString(rec.IPTCKeywords),
		nullString(rec.IPTCCaption),
		nullString(rec.XMPKeywords),
		nullString(rec.XMPTitle),
		nullFloat(rec.SimilarityScore),
		nullString(rec.MatchReasons),
		rec.FileExists,
		rec.SourceRow,
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc rowScanner) (catalog.ImageRecord, error) {
	var (
		rec                                          catalog.ImageRecord
		algorithm, name, fileType, camMake, camModel sql.NullString
		created, modified, taken                     sql.NullString
		iptcKeywords, iptcCaption, xmpKw, xmpTitle   sql.NullString
		reasons                                      sql.NullString
		size                                         sql.NullInt64
		width, height                                sql.NullInt32
		quality, similarity                          sql.NullFloat64
	)
	err := sc.Scan(
		&rec.GroupID, &algorithm, &rec.IsMaster, &rec.File, &name, &rec.Path, &size,
		&created, &modified, &width, &height, &fileType,
		&camMake, &camModel, &taken, &quality,
		&iptcKeywords, &iptcCaption, &xmpKw, &xmpTitle,
		&similarity, &reasons, &rec.FileExists, &rec.SourceRow,
	)
	if err != nil {
		return rec, fmt.Errorf("scan image row: %w", err)
	}

	rec.Algorithm = fromNullString(algorithm)
	rec.Name = fromNullString(name)
	rec.SizeBytes = fromNullInt64(size)
	rec.Width = fromNullInt32(width)
	rec.Height = fromNullInt32(height)
	rec.FileType = fromNullString(fileType)
	rec.CameraMake = fromNullString(camMake)
	rec.CameraModel = fromNullString(camModel)
	rec.QualityScore = fromNullFloat(quality)
	rec.SimilarityScore = fromNullFloat(similarity)
	rec.IPTCKeywords = fromNullString(iptcKeywords)
	rec.IPTCCaption = fromNullString(iptcCaption)
	rec.XMPKeywords = fromNullString(xmpKw)
	rec.XMPTitle = fromNullString(xmpTitle)
	rec.MatchReasons = fromNullString(reasons)
	if rec.CreatedAt, err = fromNullTime(created); err != nil {
		return rec, err
	}
	if rec.ModifiedAt, err = fromNullTime(modified); err != nil {
		return rec, err
	}
	if rec.DateTaken, err = fromNullTime(taken); err != nil {
		return rec, err
	}
	return rec, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt64(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullInt32(n *int32) any {
	if n == nil {
		return nil
	}
	return int64(*n)
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return catalog.FormatTimestamp(*t)
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func fromNullInt32(v sql.NullInt32) *int32 {
	if !v.Valid {
		return nil
	}
	return &v.Int32
}

func fromNullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func fromNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := catalog.ParseTimestamp(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
