//go:build linux

package sysmem

import "testing"

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"max\n", 0, false},
		{"", 0, false},
		{"536870912\n", 536870912, true},
		{"0", 0, false},
		{"garbage", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseLimit(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseLimit(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
