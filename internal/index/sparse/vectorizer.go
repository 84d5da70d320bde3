// Package sparse implements a TF-IDF vectorizer with a vocabulary frozen at
// fit time. Rows are L2-normalized, so a dot product against a normalized
// query projection is cosine similarity. Semantics match the usual
// smooth-IDF formulation: idf(t) = ln((1+n)/(1+df(t))) + 1.
package sparse

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/inkvine/manrec/internal/domain"
)

// tokenPattern matches runs of two or more word characters, the
// conventional TF-IDF token shape. Single-character tokens carry no signal.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_][\p{L}\p{N}_]+`)

// row is one fitted document as a sparse vector: term ids ascending,
// weights already L2-normalized.
type row struct {
	indices []int32
	values  []float64
}

// Vectorizer learns a vocabulary and IDF weights over a corpus and scores
// queries against the fitted rows. Immutable after Fit; queries are
// projected into the frozen vocabulary, never extending it.
type Vectorizer struct {
	vocab map[string]int32
	idf   []float64
	rows  []row
}

// New creates an unfitted vectorizer.
func New() *Vectorizer { return &Vectorizer{} }

// Tokenize lowercases text and yields word tokens with English stop-words
// removed. Fit and Score must agree on this, so it is the only tokenizer.
func Tokenize(text string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := matches[:0]
	for _, m := range matches {
		if !englishStopWords[m] {
			tokens = append(tokens, m)
		}
	}
	return tokens
}

// Fit learns the vocabulary and IDF from the corpus and builds one weighted
// row per text. Row i must correspond to catalog position i.
func (v *Vectorizer) Fit(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("sparse fit: %w", domain.ErrIndexEmpty)
	}

	counts := make([]map[string]int, len(texts))
	df := make(map[string]int)
	for i, text := range texts {
		tf := make(map[string]int)
		for _, tok := range Tokenize(text) {
			tf[tok]++
		}
		counts[i] = tf
		for tok := range tf {
			df[tok]++
		}
	}

	// Sorted vocabulary keeps term ids deterministic across fits.
	terms := make([]string, 0, len(df))
	for tok := range df {
		terms = append(terms, tok)
	}
	sort.Strings(terms)

	vocab := make(map[string]int32, len(terms))
	idf := make([]float64, len(terms))
	n := float64(len(texts))
	for i, tok := range terms {
		vocab[tok] = int32(i)
		idf[i] = math.Log((1+n)/(1+float64(df[tok]))) + 1
	}

	rows := make([]row, len(texts))
	for i, tf := range counts {
		rows[i] = buildRow(tf, vocab, idf)
	}

	v.vocab = vocab
	v.idf = idf
	v.rows = rows
	return nil
}

// Len returns the number of fitted rows.
func (v *Vectorizer) Len() int { return len(v.rows) }

// VocabSize returns the number of learned terms.
func (v *Vectorizer) VocabSize() int { return len(v.vocab) }

// Score projects the query into the frozen vocabulary and returns cosine
// similarity against the row at pos. Out-of-vocabulary terms contribute
// zero; an out-of-range position scores zero rather than panicking.
func (v *Vectorizer) Score(query string, pos int) float64 {
	if pos < 0 || pos >= len(v.rows) {
		return 0
	}

	tf := make(map[string]int)
	for _, tok := range Tokenize(query) {
		tf[tok]++
	}
	q := buildRow(tf, v.vocab, v.idf)
	if len(q.indices) == 0 {
		return 0
	}

	r := v.rows[pos]
	var dot float64
	i, j := 0, 0
	for i < len(q.indices) && j < len(r.indices) {
		switch {
		case q.indices[i] == r.indices[j]:
			dot += q.values[i] * r.values[j]
			i++
			j++
		case q.indices[i] < r.indices[j]:
			i++
		default:
			j++
		}
	}
	return dot
}

// buildRow converts term counts into a normalized sparse vector over the
// given vocabulary. Terms outside the vocabulary are dropped.
func buildRow(tf map[string]int, vocab map[string]int32, idf []float64) row {
	indices := make([]int32, 0, len(tf))
	for tok := range tf {
		if id, ok := vocab[tok]; ok {
			indices = append(indices, id)
		}
	}
	sort.Slice(indices, func(a, b int) bool { return indices[a] < indices[b] })

	values := make([]float64, len(indices))
	byID := make(map[int32]string, len(tf))
	for tok := range tf {
		if id, ok := vocab[tok]; ok {
			byID[id] = tok
		}
	}
	var norm float64
	for i, id := range indices {
		w := float64(tf[byID[id]]) * idf[id]
		values[i] = w
		norm += w * w
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range values {
			values[i] *= inv
		}
	}
	return row{indices: indices, values: values}
}
