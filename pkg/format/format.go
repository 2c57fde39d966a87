// Package format renders transfer figures for console output.
package format

import (
	"fmt"
	"time"
)

var units = []string{"B", "KiB", "MiB", "GiB", "TiB"}

// Size renders a byte count with a binary unit, e.g. "1.5 MiB".
func Size(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	v := float64(n)
	i := 0
	for v >= 1024 && i < len(units)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, units[i])
}

// Rate renders the throughput of n bytes moved in d.
func Rate(n int64, d time.Duration) string {
	if d <= 0 {
		return "n/a"
	}
	perSec := float64(n) / d.Seconds()
	return Size(int64(perSec)) + "/s"
}
