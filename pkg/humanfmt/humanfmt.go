// Package humanfmt formats and parses human-readable byte sizes, counts, and durations.
package humanfmt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

// ErrInvalidSize is returned by ParseSize for values that are not a size.
var ErrInvalidSize = errors.New("invalid size")

// Bytes formats a byte count using IEC binary units (KiB, MiB, GiB, TiB).
// Returns a compact human-readable string like "1.23 GiB".
func Bytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("%d B", b)
	}

	switch {
	case b >= TiB:
		return fmt.Sprintf("%.2f TiB", float64(b)/TiB)
	case b >= GiB:
		return fmt.Sprintf("%.2f GiB", float64(b)/GiB)
	case b >= MiB:
		return fmt.Sprintf("%.2f MiB", float64(b)/MiB)
	case b >= KiB:
		return fmt.Sprintf("%.2f KiB", float64(b)/KiB)
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// ParseSize converts a report size value to bytes.
//
// Values ending in KB, MB or GB (any case, optional space before the unit)
// use binary multiples of 1024. Bare numbers are already bytes. Fractional
// results are truncated toward zero, so "1.5 MB" is exactly 1572864.
func ParseSize(s string) (int64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	if v == "" {
		return 0, ErrInvalidSize
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(v, "KB"):
		mult = KiB
		v = v[:len(v)-2]
	case strings.HasSuffix(v, "MB"):
		mult = MiB
		v = v[:len(v)-2]
	case strings.HasSuffix(v, "GB"):
		mult = GiB
		v = v[:len(v)-2]
	}

	v = strings.TrimSpace(v)
	if mult == 1 {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	n := f * mult
	if math.IsNaN(n) || math.IsInf(n, 0) || n > math.MaxInt64 || n < math.MinInt64 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidSize, s)
	}
	return int64(n), nil
}

// Duration formats a duration compactly.
// Examples: "1.23s", "45.6ms", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	if d < 0 {
		return d.String()
	}

	switch {
	case d >= time.Hour:
		h := d / time.Hour
		m := (d % time.Hour) / time.Minute
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	case d >= time.Minute:
		m := d / time.Minute
		s := (d % time.Minute) / time.Second
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
}

// Count formats a count with K/M/B suffixes.
// Examples: "1.23M", "456.00K", "789".
func Count(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}

	const (
		thousand = 1000
		million  = 1000 * thousand
		billion  = 1000 * million
	)

	switch {
	case n >= billion:
		return fmt.Sprintf("%.2fB", float64(n)/billion)
	case n >= million:
		return fmt.Sprintf("%.2fM", float64(n)/million)
	case n >= thousand:
		return fmt.Sprintf("%.2fK", float64(n)/thousand)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Percent formats part/total as a percentage with one decimal.
// A zero total yields "0.0%".
func Percent(part, total int64) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
