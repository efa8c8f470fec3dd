// Package membudget tracks how much memory the transient catalog backend
// holds against a share of system RAM.
package membudget

import (
	"sync/atomic"

	"github.com/eunmann/lineup/pkg/sysmem"
)

// DefaultFraction is the share of system RAM granted when none is configured.
const DefaultFraction = 0.25

// Source indicates how the budget total was determined.
type Source string

const (
	// SourceSystem means the total is a fraction of detected RAM.
	SourceSystem Source = "system"
	// SourceDefault means RAM detection failed and a fallback was used.
	SourceDefault Source = "default"
	// SourceFixed means the caller set the total directly.
	SourceFixed Source = "fixed"
)

// Budget is a soft memory limit. Callers reserve before holding memory and
// release when done; a failed reservation is advisory, not an allocation
// failure. Budget is safe for concurrent use.
type Budget struct {
	total  uint64
	inUse  atomic.Uint64
	source Source
}

// New creates a budget with a fixed total.
func New(total uint64) *Budget {
	return &Budget{total: total, source: SourceFixed}
}

// NewFromSystemRAM creates a budget of fraction × system RAM. A fraction
// outside (0, 1] uses DefaultFraction.
func NewFromSystemRAM(fraction float64) *Budget {
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultFraction
	}
	mem := sysmem.Total()
	source := SourceSystem
	if !mem.Reliable {
		source = SourceDefault
	}
	return &Budget{
		total:  uint64(float64(mem.TotalBytes) * fraction),
		source: source,
	}
}

// Total returns the total budget in bytes.
func (b *Budget) Total() uint64 {
	return b.total
}

// InUse returns the currently reserved bytes.
func (b *Budget) InUse() uint64 {
	return b.inUse.Load()
}

// Source returns how the budget was determined.
func (b *Budget) Source() Source {
	return b.source
}

// TryReserve reserves n bytes if that keeps usage within the total.
func (b *Budget) TryReserve(n uint64) bool {
	for {
		current := b.inUse.Load()
		if current+n > b.total {
			return false
		}
		if b.inUse.CompareAndSwap(current, current+n) {
			return true
		}
	}
}

// Release returns n bytes. Releasing more than is in use clamps at zero.
func (b *Budget) Release(n uint64) {
	for {
		current := b.inUse.Load()
		next := uint64(0)
		if n < current {
			next = current - n
		}
		if b.inUse.CompareAndSwap(current, next) {
			return
		}
	}
}
