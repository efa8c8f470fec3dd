package benchutil

import (
	"os"
	"testing"
)

// SkipIfNoLongBench skips the benchmark if LINEUP_LONG_BENCH is not set.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("LINEUP_LONG_BENCH") == "" {
		b.Skip("set LINEUP_LONG_BENCH=1 to run scaling benchmark")
	}
}
