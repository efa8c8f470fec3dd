package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/existence"
	"github.com/eunmann/lineup/pkg/membudget"
	"github.com/eunmann/lineup/pkg/memstore"
)

func ptr[T any](v T) *T { return &v }

// plainStore exposes only catalog.Store, forcing the scan fallbacks.
type plainStore struct {
	catalog.Store
}

func newStore(t *testing.T) catalog.Store {
	t.Helper()
	present := existence.Static{
		"/g1/a.jpg": true, "/g1/b.jpg": true,
		"/g2/c.jpg": true,
		"/g3/e.jpg": true, "/g3/f.jpg": true,
	}
	records := []catalog.ImageRecord{
		{GroupID: "g1", File: "a.jpg", Path: "/g1/a.jpg", QualityScore: ptr(7.0), CameraMake: ptr("Canon"), SourceRow: 0},
		{GroupID: "g1", File: "b.jpg", Path: "/g1/b.jpg", QualityScore: ptr(3.0), CameraMake: ptr("Canon"), SourceRow: 1},
		{GroupID: "g2", File: "c.jpg", Path: "/g2/c.jpg", FileType: ptr("JPEG"), SourceRow: 2},
		{GroupID: "g2", File: "d.jpg", Path: "/g2/d.jpg", FileType: ptr("JPEG"), SourceRow: 3},
		{GroupID: "g3", File: "e.jpg", Path: "/g3/e.jpg", IPTCCaption: ptr("Sunset at the Beach"), SourceRow: 4},
		{GroupID: "g3", File: "f.jpg", Path: "/g3/f.jpg", SizeBytes: ptr(int64(100)), SourceRow: 5},
	}
	cat := catalog.BuildGroups(context.Background(), records, catalog.BuildOptions{Validator: present})

	s := memstore.New(memstore.Options{Validator: present, Budget: membudget.New(1 << 30)})
	t.Cleanup(func() { s.Close() })
	_, err := s.Load(context.Background(), cat)
	require.NoError(t, err)
	return s
}

func services(t *testing.T, opts Options) map[string]*Service {
	store := newStore(t)
	return map[string]*Service{
		"native": New(store, opts),
		"scan":   New(plainStore{store}, opts),
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	for name, svc := range services(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			got, err := svc.Search(ctx, "beach", "", 0)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "/g3/e.jpg", got[0].Path)

			got, err = svc.Search(ctx, "JPG", "File", 2)
			require.NoError(t, err)
			assert.Len(t, got, 2)

			got, err = svc.Search(ctx, "canon", "camera_make", 0)
			require.NoError(t, err)
			assert.Len(t, got, 2)

			_, err = svc.Search(ctx, "x", "Colour", 0)
			assert.ErrorIs(t, err, catalog.ErrUnknownField)
		})
	}
}

func TestSearchDefaultLimit(t *testing.T) {
	svc := New(newStore(t), Options{SearchLimit: 3})
	got, err := svc.Search(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestAdvancedStatistics(t *testing.T) {
	ctx := context.Background()
	for name, svc := range services(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			st, err := svc.AdvancedStatistics(ctx)
			require.NoError(t, err)
			require.NotNil(t, st.Quality)
			assert.Equal(t, 2, st.Quality.Count)
			assert.InDelta(t, 5.0, st.Quality.Avg, 1e-9)
			assert.Equal(t, 1, st.Quality.LowQualityCount)
			assert.Equal(t, []catalog.CameraCount{{Make: "Canon", Count: 2}}, st.Cameras)
			assert.Equal(t, []catalog.FileTypeCount{{FileType: "JPEG", Count: 2}}, st.FileTypes)
			require.NotNil(t, st.Size)
			assert.Equal(t, int64(100), st.Size.Sum)
		})
	}
}

func TestMissingFiles(t *testing.T) {
	ctx := context.Background()
	for name, svc := range services(t, Options{}) {
		t.Run(name, func(t *testing.T) {
			got, err := svc.MissingFiles(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"/g2/d.jpg"}, got)
		})
	}
}

func TestTrivialGroupPolicy(t *testing.T) {
	ctx := context.Background()

	keep := New(newStore(t), Options{TrivialGroups: KeepTrivial})
	ids, err := keep.VisibleGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2", "g3"}, ids)

	hide := New(newStore(t), Options{TrivialGroups: HideTrivial})
	ids, err = hide.VisibleGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g3"}, ids)

	sums, err := hide.GroupSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, sums, 2)
	assert.Equal(t, "g3", sums[1].GroupID)

	trivial, err := hide.IsTrivial(ctx, "g2")
	require.NoError(t, err)
	assert.True(t, trivial)

	_, err = hide.IsTrivial(ctx, "nope")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	total, err := hide.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total.TotalGroups, "hidden groups stay in the catalog")
}

func TestNextGroup(t *testing.T) {
	ctx := context.Background()
	svc := New(newStore(t), Options{TrivialGroups: HideTrivial})

	tests := []struct {
		current string
		want    string
	}{
		{"g1", "g3"},
		{"g3", "g1"},
		{"g2", "g1"},
		{"", "g1"},
	}
	for _, tt := range tests {
		got, ok, err := svc.NextGroup(ctx, tt.current)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "after %q", tt.current)
	}
}

func TestNextGroupEmpty(t *testing.T) {
	s := memstore.New(memstore.Options{Validator: existence.Static{}, Budget: membudget.New(1 << 20)})
	defer s.Close()
	_, ok, err := New(s, Options{}).NextGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroup(t *testing.T) {
	svc := New(newStore(t), Options{})
	g, err := svc.Group(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", g.Records[0].File)

	_, err = svc.Group(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestParseTrivialPolicy(t *testing.T) {
	p, err := ParseTrivialPolicy("")
	require.NoError(t, err)
	assert.Equal(t, KeepTrivial, p)

	p, err = ParseTrivialPolicy("HIDE")
	require.NoError(t, err)
	assert.Equal(t, HideTrivial, p)

	_, err = ParseTrivialPolicy("prune")
	assert.Error(t, err)
}
