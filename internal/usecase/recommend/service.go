// Package recommend ranks catalog entries against a free-text query by
// blending dense embedding similarity, sparse TF-IDF similarity, and
// deterministic title boosts into a single capped score.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/inkvine/manrec/internal/domain"
	"github.com/inkvine/manrec/internal/domain/catalog"
	"github.com/inkvine/manrec/internal/domain/rec"
)

// Weights are the ranking parameters. Zero values are never valid; callers
// start from DefaultWeights or a validated config.
type Weights struct {
	Dense            float64
	Sparse           float64
	DirectTitleBoost float64
	TitleTokenBoost  float64
	KeywordThreshold float64
	CandidatePool    int
	TitleTokenMinLen int
}

// DefaultWeights returns the stock ranking parameters.
func DefaultWeights() Weights {
	return Weights{
		Dense:            0.5,
		Sparse:           0.3,
		DirectTitleBoost: 0.5,
		TitleTokenBoost:  0.2,
		KeywordThreshold: 0.4,
		CandidatePool:    200,
		TitleTokenMinLen: 4,
	}
}

// Service ranks catalog entries for recommendation queries. It reads the
// catalog and both indices without mutating them, so concurrent Recommend
// calls are safe once the indices are built.
type Service struct {
	catalog *catalog.Store
	dense   DenseSearcher
	sparse  SparseScorer
	embed   Embedder
	weights Weights
}

// New creates a recommendation service.
func New(cat *catalog.Store, d DenseSearcher, s SparseScorer, e Embedder, w Weights) *Service {
	return &Service{catalog: cat, dense: d, sparse: s, embed: e, weights: w}
}

// Ready reports whether both indices cover every catalog position.
func (s *Service) Ready() bool {
	n := s.catalog.Len()
	return s.dense.Len() == n && s.sparse.Len() == n
}

// Recommend returns up to req.TopK() entries ranked against the query.
// An empty catalog yields an empty slice. An embedding failure propagates:
// there is no sparse-only fallback ranking.
func (s *Service) Recommend(ctx context.Context, req rec.Request) ([]rec.Result, error) {
	n := s.catalog.Len()
	if n == 0 {
		return []rec.Result{}, nil
	}
	if s.dense.Len() != n || s.sparse.Len() != n {
		return nil, fmt.Errorf("recommend: dense=%d sparse=%d catalog=%d: %w",
			s.dense.Len(), s.sparse.Len(), n, domain.ErrIndexNotReady)
	}

	embRes, err := s.embed.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}

	k := s.weights.CandidatePool
	if k > n {
		k = n
	}
	hits, err := s.dense.Search(embRes.Embedding, k)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}

	normQuery := catalog.NormalizeQuery(req.Query())
	queryTokens := strings.Fields(normQuery)

	type cand struct {
		pos int
		res rec.Result
	}
	cands := make([]cand, 0, len(hits))
	for _, h := range hits {
		entry := s.catalog.At(h.Position)
		sparseScore := s.sparse.Score(req.Query(), h.Position)
		boost := s.titleBoost(normQuery, queryTokens, entry)

		score := h.Score*s.weights.Dense + sparseScore*s.weights.Sparse + boost
		if score > 1.0 {
			score = 1.0
		}

		cands = append(cands, cand{pos: h.Position, res: rec.Result{
			Entry:       entry,
			Score:       score,
			DenseScore:  h.Score,
			SparseScore: sparseScore,
			TitleBoost:  boost,
			Reason:      s.reason(boost, sparseScore),
		}})
	}

	sort.Slice(cands, func(a, b int) bool {
		if cands[a].res.Score != cands[b].res.Score {
			return cands[a].res.Score > cands[b].res.Score
		}
		return cands[a].pos < cands[b].pos
	})

	if len(cands) > req.TopK() {
		cands = cands[:req.TopK()]
	}
	results := make([]rec.Result, len(cands))
	for i, c := range cands {
		results[i] = c.res
	}
	return results, nil
}

// titleBoost awards the direct tier when the whole normalized query occurs
// inside the title or the joined alternate titles, and the token tier when
// any sufficiently long query token matches a whole whitespace-separated
// word of either. Tiers do not stack.
func (s *Service) titleBoost(normQuery string, queryTokens []string, e catalog.Entry) float64 {
	if normQuery == "" {
		return 0
	}
	title := strings.ToLower(e.Title)
	alt := strings.ToLower(strings.Join(e.AltTitles, " "))

	if strings.Contains(title, normQuery) || strings.Contains(alt, normQuery) {
		return s.weights.DirectTitleBoost
	}

	words := make(map[string]struct{})
	for _, w := range strings.Fields(title) {
		words[w] = struct{}{}
	}
	for _, w := range strings.Fields(alt) {
		words[w] = struct{}{}
	}
	for _, tok := range queryTokens {
		// Length is in characters, not bytes: a two-character Hangul or CJK
		// token is six bytes but still too short to carry title signal.
		if utf8.RuneCountInString(tok) < s.weights.TitleTokenMinLen {
			continue
		}
		if _, ok := words[tok]; ok {
			return s.weights.TitleTokenBoost
		}
	}
	return 0
}

// reason picks the first matching explanation tier for a ranked entry.
func (s *Service) reason(boost, sparseScore float64) string {
	switch {
	case boost > 0 && boost >= s.weights.DirectTitleBoost:
		return rec.ReasonDirectTitle
	case boost > 0:
		return rec.ReasonTitleKeyword
	case sparseScore > s.weights.KeywordThreshold:
		return rec.ReasonKeyword
	default:
		return rec.ReasonVibe
	}
}
