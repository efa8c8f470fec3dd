package catalog

import (
	"fmt"
	"iter"
	"strings"

	"golang.org/x/text/cases"
)

// DefaultSearchLimit applies when a query carries no positive limit.
const DefaultSearchLimit = 100

// SearchField names a searchable text column.
type SearchField string

// Searchable fields, named by their storage column.
const (
	FieldAll          SearchField = ""
	FieldFile         SearchField = "file"
	FieldName         SearchField = "name"
	FieldPath         SearchField = "path"
	FieldCameraMake   SearchField = "camera_make"
	FieldCameraModel  SearchField = "camera_model"
	FieldIPTCKeywords SearchField = "iptc_keywords"
	FieldIPTCCaption  SearchField = "iptc_caption"
	FieldXMPKeywords  SearchField = "xmp_keywords"
	FieldXMPTitle     SearchField = "xmp_title"
	FieldMatchReasons SearchField = "match_reasons"
	FieldFileType     SearchField = "file_type"
	FieldAlgorithm    SearchField = "algorithm"
)

// TextFields is the union searched when no field is given.
var TextFields = []SearchField{
	FieldFile, FieldName, FieldPath,
	FieldCameraMake, FieldCameraModel,
	FieldIPTCKeywords, FieldIPTCCaption,
	FieldXMPKeywords, FieldXMPTitle,
	FieldMatchReasons,
}

var reportFieldNames = map[string]SearchField{
	"file":         FieldFile,
	"name":         FieldName,
	"path":         FieldPath,
	"cameramake":   FieldCameraMake,
	"cameramodel":  FieldCameraModel,
	"iptckeywords": FieldIPTCKeywords,
	"iptccaption":  FieldIPTCCaption,
	"xmpkeywords":  FieldXMPKeywords,
	"xmptitle":     FieldXMPTitle,
	"matchreasons": FieldMatchReasons,
	"filetype":     FieldFileType,
	"algorithm":    FieldAlgorithm,
}

// ParseSearchField accepts either a storage column name (camera_make) or a
// report column name (CameraMake). Empty selects every text field.
func ParseSearchField(s string) (SearchField, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	if key == "" || key == "all" {
		return FieldAll, nil
	}
	if f, ok := reportFieldNames[key]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Value returns the field's text on r, "" when absent.
func (f SearchField) Value(r *ImageRecord) string {
	switch f {
	case FieldFile:
		return r.File
	case FieldName:
		return deref(r.Name)
	case FieldPath:
		return r.Path
	case FieldCameraMake:
		return deref(r.CameraMake)
	case FieldCameraModel:
		return deref(r.CameraModel)
	case FieldIPTCKeywords:
		return deref(r.IPTCKeywords)
	case FieldIPTCCaption:
		return deref(r.IPTCCaption)
	case FieldXMPKeywords:
		return deref(r.XMPKeywords)
	case FieldXMPTitle:
		return deref(r.XMPTitle)
	case FieldMatchReasons:
		return deref(r.MatchReasons)
	case FieldFileType:
		return deref(r.FileType)
	case FieldAlgorithm:
		return deref(r.Algorithm)
	}
	return ""
}

// Fields returns the columns a query with this field searches.
func (f SearchField) Fields() []SearchField {
	if f == FieldAll {
		return TextFields
	}
	return []SearchField{f}
}

// SearchQuery is a case-insensitive substring search.
type SearchQuery struct {
	Text  string
	Field SearchField
	Limit int
}

// EffectiveLimit returns Limit, or DefaultSearchLimit when Limit <= 0.
func (q SearchQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultSearchLimit
	}
	return q.Limit
}

// Fold applies Unicode case folding. Every backend folds through this
// function so matches agree between them. A Caser keeps state, so one is
// made per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether needle is a case-insensitive substring of haystack.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}

// ScanSearch evaluates q by full scan. records must be in canonical order;
// results keep that order and stop at the effective limit.
func ScanSearch(records iter.Seq[ImageRecord], q SearchQuery) []ImageRecord {
	limit := q.EffectiveLimit()
	needle := Fold(q.Text)
	fields := q.Field.Fields()

	out := []ImageRecord{}
	for r := range records {
		for _, f := range fields {
			if strings.Contains(Fold(f.Value(&r)), needle) {
				out = append(out, r)
				break
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
