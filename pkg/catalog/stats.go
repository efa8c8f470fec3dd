package catalog

import (
	"cmp"
	"iter"
	"slices"
	"strings"
)

// Statistics defaults.
const (
	DefaultLowQualityThreshold = 5.0
	DefaultTopCameras          = 10
)

// StatsOptions parameterises AdvancedStatistics.
type StatsOptions struct {
	LowQualityThreshold float64
	TopCameras          int
}

// DefaultStatsOptions returns the stock threshold and camera count.
func DefaultStatsOptions() StatsOptions {
	return StatsOptions{
		LowQualityThreshold: DefaultLowQualityThreshold,
		TopCameras:          DefaultTopCameras,
	}
}

// Normalized fills an unset camera count with the default.
func (o StatsOptions) Normalized() StatsOptions {
	if o.TopCameras <= 0 {
		o.TopCameras = DefaultTopCameras
	}
	return o
}

// QualityStats summarises quality scores.
type QualityStats struct {
	Count           int     `json:"count" yaml:"count"`
	Avg             float64 `json:"avg" yaml:"avg"`
	Min             float64 `json:"min" yaml:"min"`
	Max             float64 `json:"max" yaml:"max"`
	LowQualityCount int     `json:"low_quality_count" yaml:"low_quality_count"`
}

// CameraCount is one make/model pair. Model is "" when the report had none.
type CameraCount struct {
	Make  string `json:"make" yaml:"make"`
	Model string `json:"model" yaml:"model"`
	Count int    `json:"count" yaml:"count"`
}

// FileTypeCount is one file type histogram bucket.
type FileTypeCount struct {
	FileType string `json:"file_type" yaml:"file_type"`
	Count    int    `json:"count" yaml:"count"`
}

// SizeStats summarises file sizes in bytes.
type SizeStats struct {
	Count int     `json:"count" yaml:"count"`
	Avg   float64 `json:"avg" yaml:"avg"`
	Min   int64   `json:"min" yaml:"min"`
	Max   int64   `json:"max" yaml:"max"`
	Sum   int64   `json:"sum" yaml:"sum"`
}

// AdvancedStats is the statistical roll-up of a catalog. A section with no
// populated rows is nil (Quality, Size) or empty (Cameras, FileTypes).
type AdvancedStats struct {
	Quality   *QualityStats   `json:"quality,omitempty" yaml:"quality,omitempty"`
	Cameras   []CameraCount   `json:"cameras" yaml:"cameras"`
	FileTypes []FileTypeCount `json:"file_types" yaml:"file_types"`
	Size      *SizeStats      `json:"size,omitempty" yaml:"size,omitempty"`
}

// SortCameras orders by count descending, then make and model ascending.
func SortCameras(cams []CameraCount) {
	slices.SortFunc(cams, func(a, b CameraCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := strings.Compare(a.Make, b.Make); c != 0 {
			return c
		}
		return strings.Compare(a.Model, b.Model)
	})
}

// SortFileTypes orders by count descending, then file type ascending.
func SortFileTypes(types []FileTypeCount) {
	slices.SortFunc(types, func(a, b FileTypeCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.FileType, b.FileType)
	})
}

// ScanStatistics computes AdvancedStats by full scan. Aggregates accumulate
// in iteration order, so canonical order gives reproducible float sums.
func ScanStatistics(records iter.Seq[ImageRecord], opts StatsOptions) AdvancedStats {
	opts = opts.Normalized()

	var (
		quality    QualityStats
		qualitySum float64
		size       SizeStats
		cameras    = make(map[[2]string]int)
		fileTypes  = make(map[string]int)
	)

	for r := range records {
		if q := r.QualityScore; q != nil {
			if quality.Count == 0 || *q < quality.Min {
				quality.Min = *q
			}
			if quality.Count == 0 || *q > quality.Max {
				quality.Max = *q
			}
			quality.Count++
			qualitySum += *q
			if *q < opts.LowQualityThreshold {
				quality.LowQualityCount++
			}
		}
		if s := r.SizeBytes; s != nil {
			if size.Count == 0 || *s < size.Min {
				size.Min = *s
			}
			if size.Count == 0 || *s > size.Max {
				size.Max = *s
			}
			size.Count++
			size.Sum += *s
		}
		if r.CameraMake != nil {
			cameras[[2]string{*r.CameraMake, deref(r.CameraModel)}]++
		}
		if r.FileType != nil {
			fileTypes[*r.FileType]++
		}
	}

	out := AdvancedStats{
		Cameras:   make([]CameraCount, 0, len(cameras)),
		FileTypes: make([]FileTypeCount, 0, len(fileTypes)),
	}
	if quality.Count > 0 {
		quality.Avg = qualitySum / float64(quality.Count)
		out.Quality = &quality
	}
	if size.Count > 0 {
		size.Avg = float64(size.Sum) / float64(size.Count)
		out.Size = &size
	}
	for k, n := range cameras {
		out.Cameras = append(out.Cameras, CameraCount{Make: k[0], Model: k[1], Count: n})
	}
	SortCameras(out.Cameras)
	if len(out.Cameras) > opts.TopCameras {
		out.Cameras = out.Cameras[:opts.TopCameras]
	}
	for ft, n := range fileTypes {
		out.FileTypes = append(out.FileTypes, FileTypeCount{FileType: ft, Count: n})
	}
	SortFileTypes(out.FileTypes)
	return out
}
