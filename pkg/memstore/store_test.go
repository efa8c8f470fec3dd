package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/existence"
	"github.com/eunmann/lineup/pkg/membudget"
)

func testCatalog(t *testing.T, present existence.Static) *catalog.Catalog {
	t.Helper()
	records := []catalog.ImageRecord{
		{GroupID: "1", File: "a.jpg", Path: "/a.jpg", SourceRow: 0},
		{GroupID: "1", File: "b.jpg", Path: "/bb.jpg", SourceRow: 1},
		{GroupID: "2", File: "c.jpg", Path: "/c.jpg", SourceRow: 2},
	}
	return catalog.BuildGroups(context.Background(), records, catalog.BuildOptions{Validator: present})
}

func TestStoreBudgetAccounting(t *testing.T) {
	ctx := context.Background()
	budget := membudget.New(1 << 30)
	s := New(Options{Validator: existence.Static{}, Budget: budget})

	if _, err := s.Load(ctx, testCatalog(t, existence.Static{})); err != nil {
		t.Fatalf("Load: %v", err)
	}
	first := budget.InUse()
	if first == 0 {
		t.Fatal("load should reserve budget")
	}

	if _, err := s.Load(ctx, testCatalog(t, existence.Static{})); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := budget.InUse(); got != first {
		t.Errorf("reload should replace the reservation: %d vs %d", got, first)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := budget.InUse(); got != 0 {
		t.Errorf("Close should release budget, InUse = %d", got)
	}
}

func TestStoreOverBudgetStillLoads(t *testing.T) {
	ctx := context.Background()
	budget := membudget.New(1)
	s := New(Options{Validator: existence.Static{}, Budget: budget})
	defer s.Close()

	res, err := s.Load(ctx, testCatalog(t, existence.Static{}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Images != 3 || budget.InUse() != 0 {
		t.Errorf("images = %d, in use = %d", res.Images, budget.InUse())
	}
}

func TestStoreGetGroupReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New(Options{Validator: existence.Static{}, Budget: membudget.New(1 << 30)})
	defer s.Close()
	if _, err := s.Load(ctx, testCatalog(t, existence.Static{})); err != nil {
		t.Fatalf("Load: %v", err)
	}

	g, ok, err := s.GetGroup(ctx, "1")
	if err != nil || !ok {
		t.Fatalf("GetGroup: %v, %v", ok, err)
	}
	g.Records[0].Path = "/mutated"

	again, _, _ := s.GetGroup(ctx, "1")
	if again.Records[0].Path == "/mutated" {
		t.Error("GetGroup exposed internal records")
	}
}

func TestStoreRevalidateKeepsOldSnapshotIntact(t *testing.T) {
	ctx := context.Background()
	present := existence.Static{}
	s := New(Options{Validator: present, Budget: membudget.New(1 << 30)})
	defer s.Close()
	if _, err := s.Load(ctx, testCatalog(t, present)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	before, _ := s.current()
	present["/a.jpg"] = true
	res, err := s.Revalidate(ctx)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if res.Changed != 1 || len(res.Missing) != 2 {
		t.Errorf("Revalidate = %+v", res)
	}
	if before.records[0].FileExists {
		t.Error("previous snapshot was mutated")
	}
	sum, _ := s.OverallSummary(ctx)
	if sum.ExistingImages != 1 || sum.MissingImages != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestStoreClosed(t *testing.T) {
	s := New(Options{Validator: existence.Static{}, Budget: membudget.New(1 << 30)})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if _, err := s.ListGroupIDs(context.Background()); !errors.Is(err, catalog.ErrClosed) {
		t.Errorf("ListGroupIDs after Close = %v", err)
	}
}
