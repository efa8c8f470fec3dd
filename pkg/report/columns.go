// Package report reads flat duplicate reports (CSV, gzip CSV, Parquet),
// normalizes their rows into catalog records and writes catalogs back out
// in the same layout.
package report

import "strings"

// Report column names.
const (
	ColGroupID         = "GroupID"
	ColAlgorithm       = "Algorithm"
	ColMaster          = "Master"
	ColFile            = "File"
	ColName            = "Name"
	ColPath            = "Path"
	ColSize            = "Size"
	ColCreated         = "Created"
	ColModified        = "Modified"
	ColWidth           = "Width"
	ColHeight          = "Height"
	ColFileType        = "FileType"
	ColCameraMake      = "CameraMake"
	ColCameraModel     = "CameraModel"
	ColDateTaken       = "DateTaken"
	ColQualityScore    = "QualityScore"
	ColIPTCKeywords    = "IPTCKeywords"
	ColIPTCCaption     = "IPTCCaption"
	ColXMPKeywords     = "XMPKeywords"
	ColXMPTitle        = "XMPTitle"
	ColSimilarityScore = "SimilarityScore"
	ColMatchReasons    = "MatchReasons"
)

// MandatoryColumns must all be present in a report header.
var MandatoryColumns = []string{ColGroupID, ColMaster, ColFile, ColPath}

// Columns lists every recognized column in export order.
var Columns = []string{
	ColGroupID, ColAlgorithm, ColMaster, ColFile, ColName, ColPath, ColSize,
	ColCreated, ColModified, ColWidth, ColHeight, ColFileType,
	ColCameraMake, ColCameraModel, ColDateTaken, ColQualityScore,
	ColIPTCKeywords, ColIPTCCaption, ColXMPKeywords, ColXMPTitle,
	ColSimilarityScore, ColMatchReasons,
}

// columnIndex maps recognized column names to their position in a header.
// Matching ignores case and surrounding whitespace; the first occurrence wins.
type columnIndex map[string]int

func indexColumns(header []string) columnIndex {
	known := make(map[string]string, len(Columns))
	for _, c := range Columns {
		known[strings.ToLower(c)] = c
	}

	idx := make(columnIndex, len(Columns))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		name, ok := known[h]
		if !ok {
			continue
		}
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return idx
}

func (ci columnIndex) missing() []string {
	var out []string
	for _, c := range MandatoryColumns {
		if _, ok := ci[c]; !ok {
			out = append(out, c)
		}
	}
	return out
}
