package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/eunmann/lineup/pkg/benchutil"
	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/existence"
	"github.com/eunmann/lineup/pkg/sqlstore"
)

// StoreFactory creates a Store using v for revalidation.
type StoreFactory func(tb testing.TB, v existence.Validator) catalog.Store

func storeImplementations() []struct {
	name    string
	factory StoreFactory
} {
	open := func(kind Kind) StoreFactory {
		return func(tb testing.TB, v existence.Validator) catalog.Store {
			tb.Helper()
			s, err := Open(context.Background(), Options{
				Kind:      kind,
				SQLite:    sqlstore.Options{Path: filepath.Join(tb.TempDir(), "catalog.db"), Synchronous: "OFF", BatchSize: 7},
				Validator: v,
			})
			if err != nil {
				tb.Fatalf("Open(%s): %v", kind, err)
			}
			tb.Cleanup(func() { s.Close() })
			return s
		}
	}
	return []struct {
		name    string
		factory StoreFactory
	}{
		{name: "Memory", factory: open(Memory)},
		{name: "SQLite", factory: open(SQLite)},
	}
}

func ptr[T any](v T) *T { return &v }

func build(t *testing.T, records []catalog.ImageRecord, v existence.Validator) *catalog.Catalog {
	t.Helper()
	return catalog.BuildGroups(context.Background(), records, catalog.BuildOptions{Validator: v})
}

func load(t *testing.T, s catalog.Store, cat *catalog.Catalog) catalog.LoadResult {
	t.Helper()
	res, err := s.Load(context.Background(), cat)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return res
}

// syntheticRecords returns a deterministic report-like data set with every
// optional field sometimes absent.
func syntheticRecords(n int) []catalog.ImageRecord {
	return benchutil.NewGenerator(benchutil.DefaultConfig(n)).Records()
}

// existingSubset marks roughly two thirds of the records as present.
func existingSubset(records []catalog.ImageRecord) existence.Static {
	present := existence.Static{}
	for i, r := range records {
		if i%3 != 0 {
			present[r.Path] = true
		}
	}
	return present
}

// --- Shared Test Scenarios ---

func testStoreQualityMaster(t *testing.T, factory StoreFactory) {
	t.Helper()
	v := existence.Static{"/x/a.jpg": true, "/x/b.jpg": true}
	s := factory(t, v)

	load(t, s, build(t, []catalog.ImageRecord{
		{GroupID: "1", File: "a.jpg", Path: "/x/a.jpg", QualityScore: ptr(8.5), SourceRow: 0},
		{GroupID: "1", File: "b.jpg", Path: "/x/b.jpg", QualityScore: ptr(9.2), SourceRow: 1},
	}, v))

	g, ok, err := s.GetGroup(context.Background(), "1")
	if err != nil || !ok {
		t.Fatalf("GetGroup: %v, %v", ok, err)
	}
	if len(g.Records) != 2 || g.Records[0].File != "b.jpg" || g.Records[1].File != "a.jpg" {
		t.Fatalf("order = %+v", g.Records)
	}
	if !g.Records[0].IsMaster || g.Records[1].IsMaster {
		t.Errorf("b.jpg should be the only master")
	}
}

func testStoreNotFound(t *testing.T, factory StoreFactory) {
	t.Helper()
	s := factory(t, existence.Static{})
	ctx := context.Background()

	if _, ok, err := s.GetGroup(ctx, "missing"); ok || err != nil {
		t.Errorf("GetGroup on empty store = %v, %v", ok, err)
	}
	load(t, s, build(t, syntheticRecords(40), existence.Static{}))
	if _, ok, err := s.GetGroup(ctx, "missing"); ok || err != nil {
		t.Errorf("GetGroup = %v, %v", ok, err)
	}
	if _, ok, err := s.GetGroupSummary(ctx, "missing"); ok || err != nil {
		t.Errorf("GetGroupSummary = %v, %v", ok, err)
	}
}

func testStoreInvariants(t *testing.T, factory StoreFactory) {
	t.Helper()
	records := syntheticRecords(300)
	v := existingSubset(records)
	s := factory(t, v)
	ctx := context.Background()
	load(t, s, build(t, records, v))

	ids, err := s.ListGroupIDs(ctx)
	if err != nil {
		t.Fatalf("ListGroupIDs: %v", err)
	}
	if !slices.IsSorted(ids) {
		t.Errorf("group ids not sorted: %v", ids)
	}

	total := 0
	for _, id := range ids {
		g, ok, err := s.GetGroup(ctx, id)
		if err != nil || !ok {
			t.Fatalf("GetGroup(%s): %v, %v", id, ok, err)
		}
		masters := 0
		for _, r := range g.Records {
			if r.IsMaster {
				masters++
			}
		}
		if masters != 1 || !g.Records[0].IsMaster {
			t.Errorf("group %s has %d masters, first master %v", id, masters, g.Records[0].IsMaster)
		}
		sum, ok, err := s.GetGroupSummary(ctx, id)
		if err != nil || !ok {
			t.Fatalf("GetGroupSummary(%s): %v, %v", id, ok, err)
		}
		if sum.TotalImages != len(g.Records) || sum.MasterCount != 1 || !sum.HasMaster {
			t.Errorf("summary %s = %+v", id, sum)
		}
		total += sum.TotalImages
	}

	overall, err := s.OverallSummary(ctx)
	if err != nil {
		t.Fatalf("OverallSummary: %v", err)
	}
	if overall.TotalImages != total || overall.TotalImages != len(records) {
		t.Errorf("total images = %d, groups sum to %d, input %d", overall.TotalImages, total, len(records))
	}
	if overall.TotalMasters != len(ids) || overall.TotalGroups != len(ids) {
		t.Errorf("overall = %+v for %d groups", overall, len(ids))
	}
}

func testStoreRevalidateFlips(t *testing.T, factory StoreFactory) {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()
	present := filepath.Join(dir, "a.jpg")
	moved := filepath.Join(dir, "moved.jpg")
	elsewhere := filepath.Join(dir, "elsewhere.jpg")
	for _, p := range []string{present, elsewhere} {
		if err := os.WriteFile(p, []byte("jpeg"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	v := existence.NewOS()
	s := factory(t, v)
	load(t, s, build(t, []catalog.ImageRecord{
		{GroupID: "1", File: "a.jpg", Path: present, SourceRow: 0},
		{GroupID: "1", File: "moved.jpg", Path: moved, SourceRow: 1},
	}, v))

	missing, err := missingFiles(ctx, s)
	if err != nil {
		t.Fatalf("missing files: %v", err)
	}
	if len(missing) != 1 || missing[0] != moved {
		t.Fatalf("missing = %v, want [%s]", missing, moved)
	}

	if err := os.Rename(elsewhere, moved); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	res, err := s.Revalidate(ctx)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if res.Checked != 2 || res.Changed != 1 || len(res.Missing) != 0 {
		t.Errorf("Revalidate = %+v", res)
	}
	g, _, _ := s.GetGroup(ctx, "1")
	for _, r := range g.Records {
		if !r.FileExists {
			t.Errorf("%s still missing after revalidate", r.Path)
		}
	}
	sum, _, _ := s.GetGroupSummary(ctx, "1")
	if sum.ExistingImages != 2 || sum.MissingImages != 0 {
		t.Errorf("summary after revalidate = %+v", sum)
	}
	if g.Records[0].Path != present || !g.Records[0].IsMaster {
		t.Errorf("revalidate must not change master or order: %+v", g.Records)
	}
}

func testStoreRevalidateIdempotent(t *testing.T, factory StoreFactory) {
	t.Helper()
	records := syntheticRecords(80)
	v := existingSubset(records)
	s := factory(t, v)
	ctx := context.Background()
	load(t, s, build(t, records, existence.Static{}))

	first, err := s.Revalidate(ctx)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	before := snapshotFlags(t, s)
	second, err := s.Revalidate(ctx)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if first.Changed == 0 || second.Changed != 0 {
		t.Errorf("changed = %d then %d", first.Changed, second.Changed)
	}
	if !slices.Equal(first.Missing, second.Missing) {
		t.Errorf("missing lists differ")
	}
	if after := snapshotFlags(t, s); !slices.Equal(before, after) {
		t.Errorf("flags changed on second pass")
	}
}

func testStoreReloadReplaces(t *testing.T, factory StoreFactory) {
	t.Helper()
	s := factory(t, existence.Static{})
	ctx := context.Background()
	load(t, s, build(t, syntheticRecords(100), existence.Static{}))
	load(t, s, build(t, []catalog.ImageRecord{
		{GroupID: "only", File: "x.jpg", Path: "/x.jpg"},
	}, existence.Static{}))

	ids, err := s.ListGroupIDs(ctx)
	if err != nil {
		t.Fatalf("ListGroupIDs: %v", err)
	}
	if !slices.Equal(ids, []string{"only"}) {
		t.Errorf("ids after reload = %v", ids)
	}
}

func testStoreClose(t *testing.T, factory StoreFactory) {
	t.Helper()
	s := factory(t, existence.Static{})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func snapshotFlags(t *testing.T, s catalog.Store) []bool {
	t.Helper()
	ctx := context.Background()
	ids, err := s.ListGroupIDs(ctx)
	if err != nil {
		t.Fatalf("ListGroupIDs: %v", err)
	}
	var flags []bool
	for _, id := range ids {
		g, _, err := s.GetGroup(ctx, id)
		if err != nil {
			t.Fatalf("GetGroup: %v", err)
		}
		for _, r := range g.Records {
			flags = append(flags, r.FileExists)
		}
	}
	return flags
}

func missingFiles(ctx context.Context, s catalog.Store) ([]string, error) {
	if ml, ok := s.(catalog.MissingLister); ok {
		return ml.MissingFiles(ctx)
	}
	return nil, fmt.Errorf("%T does not list missing files", s)
}

// --- Test Runners ---

func TestStoreContract(t *testing.T) {
	scenarios := []struct {
		name string
		run  func(*testing.T, StoreFactory)
	}{
		{"QualityMaster", testStoreQualityMaster},
		{"NotFound", testStoreNotFound},
		{"Invariants", testStoreInvariants},
		{"RevalidateFlips", testStoreRevalidateFlips},
		{"RevalidateIdempotent", testStoreRevalidateIdempotent},
		{"ReloadReplaces", testStoreReloadReplaces},
		{"Close", testStoreClose},
	}
	for _, impl := range storeImplementations() {
		for _, sc := range scenarios {
			t.Run(impl.name+"/"+sc.name, func(t *testing.T) {
				sc.run(t, impl.factory)
			})
		}
	}
}
