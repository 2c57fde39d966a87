package format

import (
	"testing"
	"time"
)

func TestSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int64
		want string
	}{
		{name: "zero", n: 0, want: "0 B"},
		{name: "bytes", n: 1023, want: "1023 B"},
		{name: "one KiB", n: 1024, want: "1.0 KiB"},
		{name: "fraction", n: 1536, want: "1.5 KiB"},
		{name: "MiB", n: 10 << 20, want: "10.0 MiB"},
		{name: "GiB", n: 3 << 30, want: "3.0 GiB"},
		{name: "beyond TiB", n: 2048 << 40, want: "2048.0 TiB"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Size(tc.n); got != tc.want {
				t.Errorf("Size(%d) = %q, want %q", tc.n, got, tc.want)
			}
		})
	}
}

func TestRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		n    int64
		d    time.Duration
		want string
	}{
		{name: "one MiB per second", n: 1 << 20, d: time.Second, want: "1.0 MiB/s"},
		{name: "half second", n: 1024, d: 500 * time.Millisecond, want: "2.0 KiB/s"},
		{name: "no time", n: 1024, d: 0, want: "n/a"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if got := Rate(tc.n, tc.d); got != tc.want {
				t.Errorf("Rate(%d, %s) = %q, want %q", tc.n, tc.d, got, tc.want)
			}
		})
	}
}
