// Package rec holds the recommendation request/result value types.
package rec

import "unicode/utf8"

// Request limits.
const (
	MaxQueryLength = 4096
	DefaultTopK    = 50
	MaxTopK        = 500
)

// Request is a normalized recommendation query.
type Request struct {
	query string
	topK  int
}

// New normalizes request parameters. An empty query is deliberately allowed
// through: it degrades to a zero-relevance ranking rather than an error.
// topK defaults to 50 and is clamped to [1, 500].
func New(query string, topK int) Request {
	if len(query) > MaxQueryLength {
		// Back off to a rune boundary so truncation never hands the embedder
		// a split multi-byte character.
		cut := MaxQueryLength
		for cut > 0 && !utf8.RuneStart(query[cut]) {
			cut--
		}
		query = query[:cut]
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	return Request{query: query, topK: topK}
}

// Query returns the raw query text.
func (r Request) Query() string { return r.query }

// TopK returns the maximum number of results.
func (r Request) TopK() int { return r.topK }
