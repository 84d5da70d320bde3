package rec

import "github.com/inkvine/manrec/internal/domain/catalog"

// Reason tags explain why an entry ranked. First matching rule wins:
// boost at the direct tier, any boost, sparse above threshold, fallback.
const (
	ReasonDirectTitle  = "Direct Title Match"
	ReasonTitleKeyword = "Title Keyword Match"
	ReasonKeyword      = "Strong Keyword Match"
	ReasonVibe         = "Matches plot vibe"
)

// Result is one ranked recommendation. Built fresh per query, never stored.
// Score is capped at 1.0 but has no lower bound: a query pointing away from
// an entry in embedding space yields a negative dense component.
type Result struct {
	Entry       catalog.Entry
	Score       float64
	DenseScore  float64
	SparseScore float64
	TitleBoost  float64
	Reason      string
}
