// Package benchutil provides synthetic duplicate reports for benchmarks and
// tests.
package benchutil

import (
	"compress/gzip"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/eunmann/lineup/pkg/catalog"
	"github.com/eunmann/lineup/pkg/report"
)

// GeneratorConfig configures synthetic data generation.
type GeneratorConfig struct {
	// NumRecords is the number of report rows to generate.
	NumRecords int
	// AvgGroupSize is the mean number of rows per duplicate group.
	AvgGroupSize int
	// Seed for reproducible generation. 0 = BenchmarkSeed.
	Seed uint64
}

// DefaultConfig returns groups of four on average.
func DefaultConfig(numRecords int) GeneratorConfig {
	return GeneratorConfig{
		NumRecords:   numRecords,
		AvgGroupSize: 4,
		Seed:         BenchmarkSeed,
	}
}

var (
	cameraMakes  = []string{"Canon", "Nikon", "SONY", "Fujifilm"}
	cameraModels = []string{"EOS R5", "Z6", "A7 III", "X-T4"}
	fileTypes    = []string{"JPEG", "PNG", "HEIC", "RAW"}
	matchReasons = []string{"hash", "hash,exif", "size"}
)

// Generator generates synthetic report records.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	if cfg.AvgGroupSize < 1 {
		cfg.AvgGroupSize = 1
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, 7)),
	}
}

// Records generates the configured number of records in report row order.
// Every optional field is absent for some rows, and a few text fields carry
// mixed case and non-ASCII text for search folding.
func (g *Generator) Records() []catalog.ImageRecord {
	n := g.cfg.NumRecords
	groups := n/g.cfg.AvgGroupSize + 1
	records := make([]catalog.ImageRecord, n)
	for i := range records {
		r := catalog.ImageRecord{
			GroupID:   fmt.Sprintf("g%03d", g.rng.IntN(groups)),
			File:      fmt.Sprintf("IMG_%04d.jpg", g.rng.IntN(500)),
			Path:      fmt.Sprintf("/photos/%02d/IMG_%04d.jpg", g.rng.IntN(20), i),
			IsMaster:  g.rng.IntN(6) == 0,
			SourceRow: i,
		}
		if g.rng.IntN(3) > 0 {
			r.QualityScore = ptr(float64(g.rng.IntN(100)) / 10)
		}
		if g.rng.IntN(3) > 0 {
			r.SizeBytes = ptr(int64(g.rng.IntN(1 << 24)))
		}
		if g.rng.IntN(2) == 0 {
			r.CameraMake = ptr(g.pick(cameraMakes))
			if g.rng.IntN(4) > 0 {
				r.CameraModel = ptr(g.pick(cameraModels))
			}
		}
		if g.rng.IntN(4) > 0 {
			r.FileType = ptr(g.pick(fileTypes))
		}
		if g.rng.IntN(2) == 0 {
			r.MatchReasons = ptr(g.pick(matchReasons))
		}
		if g.rng.IntN(3) == 0 {
			r.Algorithm = ptr("phash")
		}
		if g.rng.IntN(5) == 0 {
			r.IPTCKeywords = ptr("Beach;Urlaub;STRASSE")
		}
		if g.rng.IntN(7) == 0 {
			r.XMPTitle = ptr("Straße bei Nacht")
		}
		records[i] = r
	}
	return records
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}

// WriteReport writes records to path as a report. The format follows the
// extension, as report.Open reads it back.
func WriteReport(path string, records []catalog.ImageRecord) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close report: %w", cerr)
		}
	}()

	format, gz := report.DetectFormat(path)
	var w io.Writer = f
	if gz {
		zw := gzip.NewWriter(f)
		defer func() {
			if cerr := zw.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close gzip: %w", cerr)
			}
		}()
		w = zw
	}

	rw := report.NewWriter(w, format)
	for i := range records {
		if err := rw.Write(&records[i]); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return rw.Close()
}

func ptr[T any](v T) *T { return &v }
