package catalog

import (
	"math"
	"reflect"
	"testing"
)

func TestScanStatistics(t *testing.T) {
	mk := func(row int, q float64, size int64, mk, model, ft string) ImageRecord {
		r := rec("g", "f", "/p", row)
		r.QualityScore = ptr(q)
		r.SizeBytes = ptr(size)
		if mk != "" {
			r.CameraMake = ptr(mk)
		}
		if model != "" {
			r.CameraModel = ptr(model)
		}
		r.FileType = ptr(ft)
		return r
	}
	cat := build(t, []ImageRecord{
		mk(0, 9, 100, "Canon", "R5", "JPEG"),
		mk(1, 4, 300, "Canon", "R5", "JPEG"),
		mk(2, 2, 200, "Nikon", "", "PNG"),
		mk(3, 6, 400, "", "", "JPEG"),
	}, KeepFirst)

	got := ScanStatistics(cat.Records(), DefaultStatsOptions())

	if got.Quality == nil {
		t.Fatal("Quality is nil")
	}
	q := *got.Quality
	if q.Count != 4 || q.Min != 2 || q.Max != 9 || q.LowQualityCount != 2 || math.Abs(q.Avg-5.25) > 1e-9 {
		t.Errorf("Quality = %+v", q)
	}

	wantCams := []CameraCount{{Make: "Canon", Model: "R5", Count: 2}, {Make: "Nikon", Model: "", Count: 1}}
	if !reflect.DeepEqual(got.Cameras, wantCams) {
		t.Errorf("Cameras = %+v, want %+v", got.Cameras, wantCams)
	}

	wantTypes := []FileTypeCount{{FileType: "JPEG", Count: 3}, {FileType: "PNG", Count: 1}}
	if !reflect.DeepEqual(got.FileTypes, wantTypes) {
		t.Errorf("FileTypes = %+v", got.FileTypes)
	}

	want := SizeStats{Count: 4, Avg: 250, Min: 100, Max: 400, Sum: 1000}
	if got.Size == nil || *got.Size != want {
		t.Errorf("Size = %+v, want %+v", got.Size, want)
	}
}

func TestScanStatisticsEmptySections(t *testing.T) {
	cat := build(t, []ImageRecord{rec("g", "a", "/a", 0)}, KeepFirst)
	got := ScanStatistics(cat.Records(), StatsOptions{})
	if got.Quality != nil || got.Size != nil {
		t.Errorf("expected nil sections, got %+v", got)
	}
	if len(got.Cameras) != 0 || len(got.FileTypes) != 0 {
		t.Errorf("expected empty histograms, got %+v", got)
	}
}

func TestScanStatisticsTopCameras(t *testing.T) {
	var records []ImageRecord
	for i, m := range []string{"A", "B", "C", "C"} {
		r := rec("g", "f", "/p", i)
		r.CameraMake = ptr(m)
		records = append(records, r)
	}
	cat := build(t, records, KeepFirst)
	got := ScanStatistics(cat.Records(), StatsOptions{TopCameras: 2})
	want := []CameraCount{{Make: "C", Count: 2}, {Make: "A", Count: 1}}
	if !reflect.DeepEqual(got.Cameras, want) {
		t.Errorf("Cameras = %+v, want %+v", got.Cameras, want)
	}
}
