package benchutil

// Shared constants for benchmarks across packages.

// BenchmarkSeed is the default seed for reproducible benchmark data generation.
const BenchmarkSeed = 42

// Standard benchmark sizes for quick runs.
var BenchmarkSizes = []int{1000, 10000, 50000}

// ScalingSizes are larger sizes for comprehensive scaling tests.
// Used with LINEUP_LONG_BENCH=1.
var ScalingSizes = []int{100000, 250000, 500000}
