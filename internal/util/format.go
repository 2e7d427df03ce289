package util

import (
	"fmt"
	"time"
)

// FormatHashrate formats a hashrate in H/s into a human readable string
func FormatHashrate(hashrate float64) string {
	switch {
	case hashrate >= 1e9:
		return fmt.Sprintf("%.2f GH/s", hashrate/1e9)
	case hashrate >= 1e6:
		return fmt.Sprintf("%.2f MH/s", hashrate/1e6)
	case hashrate >= 1e3:
		return fmt.Sprintf("%.2f KH/s", hashrate/1e3)
	default:
		return fmt.Sprintf("%.2f H/s", hashrate)
	}
}

// FormatNumber formats a large number with K/M/B suffixes
func FormatNumber(num uint64) string {
	switch {
	case num >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(num)/1e9)
	case num >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(num)/1e6)
	case num >= 1_000:
		return fmt.Sprintf("%.1fK", float64(num)/1e3)
	default:
		return fmt.Sprintf("%d", num)
	}
}

// FormatDuration formats an elapsed duration for display
func FormatDuration(d time.Duration) string {
	secs := uint64(d.Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%.1fh", d.Hours())
	}
}
