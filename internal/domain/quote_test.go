package domain

import (
	"math/rand"
	"testing"
)

func TestQuotePicker_EmptyPoolFallsBack(t *testing.T) {
	p := NewQuotePicker(rand.New(rand.NewSource(1)))
	if got := p.Pick(nil); got != FallbackQuote {
		t.Fatalf("want fallback, got %q", got)
	}
	if got := p.Pick([]Quote{}); got != FallbackQuote {
		t.Fatalf("want fallback for empty slice, got %q", got)
	}
}

func TestQuotePicker_ReturnsPoolMember(t *testing.T) {
	pool := []Quote{
		{ID: 1, Text: "first"},
		{ID: 2, Text: "second"},
		{ID: 3, Text: "third"},
	}
	p := NewQuotePicker(rand.New(rand.NewSource(7)))
	for i := 0; i < 50; i++ {
		got := p.Pick(pool)
		if got != "first" && got != "second" && got != "third" {
			t.Fatalf("pick %d returned a string outside the pool: %q", i, got)
		}
	}
}
