package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/eunmann/lineup/internal/logctx"
	"github.com/eunmann/lineup/pkg/existence"
)

// DuplicateMasterPolicy selects which flagged master survives when a report
// marks more than one master in a group.
type DuplicateMasterPolicy string

const (
	// KeepFirst keeps the first flagged master in report order.
	KeepFirst DuplicateMasterPolicy = "keep-first"
	// KeepHighestQuality keeps the flagged master with the best quality score,
	// ties broken by shortest path, then report order.
	KeepHighestQuality DuplicateMasterPolicy = "keep-highest-quality"
)

// ParseDuplicateMasterPolicy validates a policy name. Empty means KeepFirst.
func ParseDuplicateMasterPolicy(s string) (DuplicateMasterPolicy, error) {
	switch DuplicateMasterPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeepFirst:
		return KeepFirst, nil
	case KeepHighestQuality:
		return KeepHighestQuality, nil
	}
	return "", fmt.Errorf("unknown duplicate master policy %q", s)
}

// BuildOptions configures BuildGroups.
type BuildOptions struct {
	DuplicateMasters DuplicateMasterPolicy
	// Validator computes FileExists for every record. Nil uses existence.NewOS().
	Validator existence.Validator
}

// BuildGroups partitions normalized records by group id, enforces exactly one
// master per group and orders every group canonically. Records must carry the
// SourceRow they were read from; input order is used for first-seen ties.
func BuildGroups(ctx context.Context, records []ImageRecord, opts BuildOptions) *Catalog {
	log := logctx.FromContext(ctx)
	validator := opts.Validator
	if validator == nil {
		validator = existence.NewOS()
	}
	policy := opts.DuplicateMasters
	if policy == "" {
		policy = KeepFirst
	}

	byID := make(map[string][]ImageRecord)
	for _, r := range records {
		byID[r.GroupID] = append(byID[r.GroupID], r)
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	cat := &Catalog{Groups: make([]Group, 0, len(ids))}
	for _, id := range ids {
		members := byID[id]
		for i := range members {
			members[i].FileExists = validator.Exists(members[i].Path)
		}

		if w, ok := enforceSingleMaster(id, members, policy); ok {
			log.Warn().
				Str("group_id", w.GroupID).
				Str("kind", w.Kind).
				Str("detail", w.Detail).
				Msg("consistency warning")
			cat.Warnings = append(cat.Warnings, w)
		}
		SortGroup(members)
		cat.Groups = append(cat.Groups, Group{ID: id, Records: members})
	}
	return cat
}

// enforceSingleMaster mutates members so exactly one has IsMaster set.
// It returns a warning when flagged masters had to be demoted.
func enforceSingleMaster(groupID string, members []ImageRecord, policy DuplicateMasterPolicy) (ConsistencyWarning, bool) {
	var flagged []int
	for i := range members {
		if members[i].IsMaster {
			flagged = append(flagged, i)
		}
	}

	switch len(flagged) {
	case 0:
		members[pickMaster(members, nil)].IsMaster = true
		return ConsistencyWarning{}, false
	case 1:
		return ConsistencyWarning{}, false
	}

	keep := flagged[0]
	if policy == KeepHighestQuality {
		keep = pickMaster(members, flagged)
	}
	var demoted []string
	for _, i := range flagged {
		if i != keep {
			members[i].IsMaster = false
			demoted = append(demoted, members[i].Path)
		}
	}
	return ConsistencyWarning{
		GroupID: groupID,
		Kind:    WarnDuplicateMaster,
		Detail: fmt.Sprintf("%d masters flagged, kept %s, demoted %s",
			len(flagged), members[keep].Path, strings.Join(demoted, ", ")),
	}, true
}

// pickMaster returns the index of the preferred master among candidates
// (all members when candidates is nil). Candidates are visited in input
// order and replaced only on strict improvement, so first-seen wins ties.
func pickMaster(members []ImageRecord, candidates []int) int {
	if candidates == nil {
		candidates = make([]int, len(members))
		for i := range members {
			candidates[i] = i
		}
	}

	anyQuality := false
	for _, i := range candidates {
		if members[i].QualityScore != nil {
			anyQuality = true
			break
		}
	}

	best := candidates[0]
	for _, i := range candidates[1:] {
		if preferMaster(&members[i], &members[best], anyQuality) {
			best = i
		}
	}
	return best
}

func preferMaster(a, b *ImageRecord, byQuality bool) bool {
	if byQuality {
		switch {
		case a.QualityScore != nil && b.QualityScore == nil:
			return true
		case a.QualityScore == nil && b.QualityScore != nil:
			return false
		case a.QualityScore != nil && *a.QualityScore != *b.QualityScore:
			return *a.QualityScore > *b.QualityScore
		}
	}
	return utf8.RuneCountInString(a.Path) < utf8.RuneCountInString(b.Path)
}

// SortGroup orders members canonically: master first, then descending quality
// when any member has a score (unscored members after scored ones, by file),
// otherwise ascending file name. SourceRow breaks remaining ties.
// Equal scores fall straight through to SourceRow.
func SortGroup(members []ImageRecord) {
	byQuality := false
	for i := range members {
		if members[i].QualityScore != nil {
			byQuality = true
			break
		}
	}

	slices.SortStableFunc(members, func(a, b ImageRecord) int {
		if a.IsMaster != b.IsMaster {
			if a.IsMaster {
				return -1
			}
			return 1
		}
		if byQuality {
			switch {
			case a.QualityScore != nil && b.QualityScore == nil:
				return -1
			case a.QualityScore == nil && b.QualityScore != nil:
				return 1
			case a.QualityScore != nil:
				if c := cmp.Compare(*b.QualityScore, *a.QualityScore); c != 0 {
					return c
				}
				return cmp.Compare(a.SourceRow, b.SourceRow)
			}
		}
		if c := strings.Compare(a.File, b.File); c != 0 {
			return c
		}
		return cmp.Compare(a.SourceRow, b.SourceRow)
	})
}
