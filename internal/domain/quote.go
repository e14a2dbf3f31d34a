package domain

import "math/rand"

// FallbackQuote is used whenever the quote pool is empty.
const FallbackQuote = "Happy Birthday! Have a wonderful day! 🎂"

// QuotePicker draws quotes from a pool. The rand source is injectable so
// tests can pin the selection.
type QuotePicker struct {
	rng *rand.Rand
}

// NewQuotePicker creates a picker backed by the given source.
func NewQuotePicker(rng *rand.Rand) *QuotePicker {
	return &QuotePicker{rng: rng}
}

// Pick returns one quote chosen uniformly at random, or FallbackQuote for
// an empty pool.
func (p *QuotePicker) Pick(pool []Quote) string {
	if len(pool) == 0 {
		return FallbackQuote
	}
	return pool[p.rng.Intn(len(pool))].Text
}
