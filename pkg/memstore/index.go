package memstore

import (
	"hash/fnv"
	"slices"

	"github.com/relab/bbhash"
)

// groupIndex maps a group id to its position in a snapshot. It uses a
// minimal perfect hash over the 64-bit FNV-1a hash of each id; hits are
// verified against the id table since absent ids still hash to a slot.
// When two ids share a 64-bit hash the index falls back to a map.
type groupIndex struct {
	ids      []string
	mph      *bbhash.BBHash2
	slots    []int32
	fallback map[string]int
}

func hashID(id string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64()
}

func newGroupIndex(ids []string) (*groupIndex, error) {
	idx := &groupIndex{ids: ids}
	if len(ids) == 0 {
		return idx, nil
	}

	keys := make([]uint64, len(ids))
	for i, id := range ids {
		keys[i] = hashID(id)
	}
	if hasDuplicates(keys) {
		idx.fallback = make(map[string]int, len(ids))
		for i, id := range ids {
			idx.fallback[id] = i
		}
		return idx, nil
	}

	mph, err := bbhash.New(keys, bbhash.Gamma(2.0))
	if err != nil {
		return nil, err
	}
	idx.mph = mph
	idx.slots = make([]int32, len(ids))
	for i, k := range keys {
		// Find is 1-indexed; 0 means not found.
		idx.slots[mph.Find(k)-1] = int32(i)
	}
	return idx, nil
}

func hasDuplicates(keys []uint64) bool {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return true
		}
	}
	return false
}

// lookup returns the position of id, or false if it is not indexed.
func (x *groupIndex) lookup(id string) (int, bool) {
	if x.fallback != nil {
		i, ok := x.fallback[id]
		return i, ok
	}
	if x.mph == nil {
		return 0, false
	}
	pos := x.mph.Find(hashID(id))
	if pos == 0 || pos > uint64(len(x.slots)) {
		return 0, false
	}
	i := int(x.slots[pos-1])
	if x.ids[i] != id {
		return 0, false
	}
	return i, true
}
