package memstore

import (
	"iter"
	"slices"
	"unsafe"

	"github.com/eunmann/lineup/pkg/catalog"
)

// snapshot is an immutable columnar view of one loaded catalog. Records of
// group i are records[offsets[i]:offsets[i+1]], in canonical order.
type snapshot struct {
	loadID  string
	ids     []string
	offsets []int
	records []catalog.ImageRecord
	index   *groupIndex
	summary catalog.OverallSummary
	bytes   uint64
}

func newSnapshot(cat *catalog.Catalog, loadID string) (*snapshot, error) {
	n := cat.TotalImages()
	s := &snapshot{
		loadID:  loadID,
		ids:     make([]string, len(cat.Groups)),
		offsets: make([]int, 0, len(cat.Groups)+1),
		records: make([]catalog.ImageRecord, 0, n),
	}
	for i := range cat.Groups {
		s.ids[i] = cat.Groups[i].ID
		s.offsets = append(s.offsets, len(s.records))
		s.records = append(s.records, cat.Groups[i].Records...)
	}
	s.offsets = append(s.offsets, len(s.records))

	idx, err := newGroupIndex(s.ids)
	if err != nil {
		return nil, err
	}
	s.index = idx
	s.summary = cat.Summary()
	s.bytes = s.estimateBytes()
	return s, nil
}

// withExistence returns a copy of s whose records carry new FileExists
// values. The id table and index are shared.
func (s *snapshot) withExistence(exists []bool) *snapshot {
	next := *s
	next.records = slices.Clone(s.records)
	next.summary.ExistingImages = 0
	for i := range next.records {
		next.records[i].FileExists = exists[i]
		if exists[i] {
			next.summary.ExistingImages++
		}
	}
	next.summary.MissingImages = next.summary.TotalImages - next.summary.ExistingImages
	return &next
}

func (s *snapshot) group(i int) catalog.Group {
	return catalog.Group{
		ID:      s.ids[i],
		Records: slices.Clone(s.records[s.offsets[i]:s.offsets[i+1]]),
	}
}

func (s *snapshot) all() iter.Seq[catalog.ImageRecord] {
	return slices.Values(s.records)
}

var recordSize = uint64(unsafe.Sizeof(catalog.ImageRecord{}))

// estimateBytes approximates heap use: fixed record size plus string
// payloads and the boxed optional values.
func (s *snapshot) estimateBytes() uint64 {
	total := uint64(len(s.ids))*(16+8+4) + uint64(len(s.offsets))*8
	for _, id := range s.ids {
		total += uint64(len(id))
	}
	for i := range s.records {
		r := &s.records[i]
		total += recordSize + uint64(len(r.GroupID)+len(r.File)+len(r.Path))
		for _, p := range []*string{r.Algorithm, r.Name, r.FileType, r.CameraMake, r.CameraModel,
			r.IPTCKeywords, r.IPTCCaption, r.XMPKeywords, r.XMPTitle, r.MatchReasons} {
			if p != nil {
				total += 16 + uint64(len(*p))
			}
		}
		for _, p := range []bool{r.SizeBytes != nil, r.QualityScore != nil, r.SimilarityScore != nil} {
			if p {
				total += 8
			}
		}
		for _, p := range []bool{r.CreatedAt != nil, r.ModifiedAt != nil, r.DateTaken != nil} {
			if p {
				total += 24
			}
		}
	}
	return total
}
