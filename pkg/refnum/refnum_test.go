package refnum

import (
	"regexp"
	"testing"
	"time"
)

func TestNewFormat(t *testing.T) {
	at := time.Date(2025, 2, 2, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	got := New(PrefixPayout, at)
	if !regexp.MustCompile(`^PO-20250202-[0-9A-F]{10}$`).MatchString(got) {
		t.Fatalf("unexpected reference %q", got)
	}
}

func TestNewIsRandom(t *testing.T) {
	at := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := New(PrefixTransaction, at)
		if seen[n] {
			t.Fatalf("duplicate reference %s", n)
		}
		seen[n] = true
	}
}
