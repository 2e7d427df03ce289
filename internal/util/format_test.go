package util

import (
	"testing"
	"time"
)

func TestFormatHashrate(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{500, "500.00 H/s"},
		{1500, "1.50 KH/s"},
		{2_500_000, "2.50 MH/s"},
		{3_000_000_000, "3.00 GH/s"},
	}

	for _, tt := range tests {
		if got := FormatHashrate(tt.rate); got != tt.want {
			t.Errorf("FormatHashrate(%f) = %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		num  uint64
		want string
	}{
		{999, "999"},
		{1500, "1.5K"},
		{2_500_000, "2.5M"},
		{3_100_000_000, "3.1B"},
	}

	for _, tt := range tests {
		if got := FormatNumber(tt.num); got != tt.want {
			t.Errorf("FormatNumber(%d) = %q, want %q", tt.num, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1.5h"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.d); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
