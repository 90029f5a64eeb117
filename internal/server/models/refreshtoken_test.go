package models

import (
	"testing"
	"time"
)

func TestRefreshToken_Expired(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := &RefreshToken{ExpiresAt: at}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before", at.Add(-time.Nanosecond), false},
		{"exactly at expiry", at, true},
		{"after", at.Add(time.Second), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tok.Expired(tt.now); got != tt.want {
				t.Fatalf("Expired(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}
