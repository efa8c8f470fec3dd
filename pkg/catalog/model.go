// Package catalog defines the duplicate-photo catalog model, the grouping and
// master-selection engine, and the contract shared by every catalog store backend.
package catalog

import (
	"fmt"
	"iter"
	"time"
)

// TimestampLayout is the canonical storage form for parsed report timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in the canonical storage layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp reads a timestamp written by FormatTimestamp.
func ParseTimestamp(v string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t, nil
}

// ImageRecord is one normalized row of a duplicate report.
//
// Optional report columns are pointers: nil means the value was absent or
// unparsable in the source, which is distinct from a zero value.
type ImageRecord struct {
	GroupID   string
	Algorithm *string
	IsMaster  bool
	File      string
	Name      *string
	Path      string
	SizeBytes *int64

	CreatedAt  *time.Time
	ModifiedAt *time.Time
	DateTaken  *time.Time

	Width  *int32
	Height *int32

	FileType    *string
	CameraMake  *string
	CameraModel *string

	QualityScore    *float64
	SimilarityScore *float64

	IPTCKeywords *string
	IPTCCaption  *string
	XMPKeywords  *string
	XMPTitle     *string
	MatchReasons *string

	// FileExists is always recomputed by an existence check, never read from a report.
	FileExists bool

	// SourceRow is the zero-based position of the row in the source report.
	// It breaks ordering ties so grouping is deterministic.
	SourceRow int
}

// Group is the set of records sharing a group id, in canonical order:
// master first, then by descending quality score when the group has any,
// otherwise by ascending file name, ties broken by SourceRow.
type Group struct {
	ID      string
	Records []ImageRecord
}

// Master returns the group's master record.
func (g *Group) Master() (ImageRecord, bool) {
	for _, r := range g.Records {
		if r.IsMaster {
			return r, true
		}
	}
	return ImageRecord{}, false
}

// Summary computes the derived counts for the group.
func (g *Group) Summary() GroupSummary {
	s := GroupSummary{
		GroupID:      g.ID,
		TotalImages:  len(g.Records),
		MatchReasons: []string{},
	}
	seen := make(map[string]struct{})
	for _, r := range g.Records {
		if r.FileExists {
			s.ExistingImages++
		}
		if r.IsMaster {
			s.MasterCount++
		}
		if s.Algorithm == "" && r.Algorithm != nil {
			s.Algorithm = *r.Algorithm
		}
		if r.MatchReasons != nil {
			if _, ok := seen[*r.MatchReasons]; !ok {
				seen[*r.MatchReasons] = struct{}{}
				s.MatchReasons = append(s.MatchReasons, *r.MatchReasons)
			}
		}
	}
	s.MissingImages = s.TotalImages - s.ExistingImages
	s.HasMaster = s.MasterCount > 0
	return s
}

// GroupSummary holds the per-group roll-up served to presentation layers.
type GroupSummary struct {
	GroupID        string   `json:"group_id" yaml:"group_id"`
	Algorithm      string   `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	TotalImages    int      `json:"total_images" yaml:"total_images"`
	ExistingImages int      `json:"existing_images" yaml:"existing_images"`
	MissingImages  int      `json:"missing_images" yaml:"missing_images"`
	MasterCount    int      `json:"master_count" yaml:"master_count"`
	HasMaster      bool     `json:"has_master" yaml:"has_master"`
	MatchReasons   []string `json:"match_reasons" yaml:"match_reasons"`
}

// Trivial reports whether at most one file of the group still exists.
func (s GroupSummary) Trivial() bool {
	return s.ExistingImages <= 1
}

// OverallSummary holds catalog-wide totals.
type OverallSummary struct {
	TotalGroups    int `json:"total_groups" yaml:"total_groups"`
	TotalImages    int `json:"total_images" yaml:"total_images"`
	ExistingImages int `json:"existing_images" yaml:"existing_images"`
	MissingImages  int `json:"missing_images" yaml:"missing_images"`
	TotalMasters   int `json:"total_masters" yaml:"total_masters"`
}

// Catalog is the full result of one ingestion: groups sorted by id plus the
// observability counters gathered while building them.
type Catalog struct {
	Groups []Group

	// Source names the report the catalog was built from.
	Source string
	// DroppedRows counts report rows removed during normalization.
	DroppedRows int
	// Warnings lists consistency problems corrected while grouping.
	Warnings []ConsistencyWarning
}

// TotalImages returns the number of records across all groups.
func (c *Catalog) TotalImages() int {
	n := 0
	for i := range c.Groups {
		n += len(c.Groups[i].Records)
	}
	return n
}

// Summary computes catalog-wide totals.
func (c *Catalog) Summary() OverallSummary {
	s := OverallSummary{TotalGroups: len(c.Groups)}
	for i := range c.Groups {
		for _, r := range c.Groups[i].Records {
			s.TotalImages++
			if r.FileExists {
				s.ExistingImages++
			}
			if r.IsMaster {
				s.TotalMasters++
			}
		}
	}
	s.MissingImages = s.TotalImages - s.ExistingImages
	return s
}

// Records iterates every record in canonical order: groups by id, members in group order.
func (c *Catalog) Records() iter.Seq[ImageRecord] {
	return func(yield func(ImageRecord) bool) {
		for i := range c.Groups {
			for _, r := range c.Groups[i].Records {
				if !yield(r) {
					return
				}
			}
		}
	}
}
