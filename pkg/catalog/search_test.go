package catalog

import (
	"errors"
	"testing"
)

func searchCatalog(t *testing.T) *Catalog {
	t.Helper()
	a := rec("1", "Straße.jpg", "/photos/a.jpg", 0)
	a.CameraMake = ptr("Canon")
	b := rec("1", "beach.JPG", "/photos/b.jpg", 1)
	b.IPTCKeywords = ptr("summer, BEACH")
	c := rec("2", "c.png", "/other/c.png", 2)
	c.FileType = ptr("PNG")
	c.MatchReasons = ptr("exact hash")
	return build(t, []ImageRecord{a, b, c}, KeepFirst)
}

func TestScanSearch(t *testing.T) {
	cat := searchCatalog(t)

	tests := []struct {
		name  string
		query SearchQuery
		want  []string
	}{
		{"union case-insensitive", SearchQuery{Text: "beach"}, []string{"beach.JPG"}},
		{"union path", SearchQuery{Text: "PHOTOS"}, []string{"Straße.jpg", "beach.JPG"}},
		{"unicode folding", SearchQuery{Text: "STRASSE"}, []string{"Straße.jpg"}},
		{"single field", SearchQuery{Text: "canon", Field: FieldCameraMake}, []string{"Straße.jpg"}},
		{"single field no match elsewhere", SearchQuery{Text: "beach", Field: FieldPath}, nil},
		{"file type only by field", SearchQuery{Text: "png", Field: FieldFileType}, []string{"c.png"}},
		{"match reasons in union", SearchQuery{Text: "HASH"}, []string{"c.png"}},
		{"limit", SearchQuery{Text: "", Limit: 2}, []string{"Straße.jpg", "beach.JPG"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScanSearch(cat.Records(), tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.File != tt.want[i] {
					t.Errorf("result %d = %s, want %s", i, r.File, tt.want[i])
				}
			}
		})
	}
}

func TestParseSearchField(t *testing.T) {
	tests := map[string]SearchField{
		"":              FieldAll,
		"all":           FieldAll,
		"CameraMake":    FieldCameraMake,
		"camera_make":   FieldCameraMake,
		"XMPTitle":      FieldXMPTitle,
		"match_reasons": FieldMatchReasons,
		" File ":        FieldFile,
	}
	for in, want := range tests {
		got, err := ParseSearchField(in)
		if err != nil || got != want {
			t.Errorf("ParseSearchField(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParseSearchField("path; DROP TABLE images"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("expected ErrUnknownField, got %v", err)
	}
}

func TestEffectiveLimit(t *testing.T) {
	if got := (SearchQuery{}).EffectiveLimit(); got != DefaultSearchLimit {
		t.Errorf("EffectiveLimit() = %d", got)
	}
	if got := (SearchQuery{Limit: 3}).EffectiveLimit(); got != 3 {
		t.Errorf("EffectiveLimit() = %d", got)
	}
}
