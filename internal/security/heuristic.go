package security

import "strings"

// Heuristic labels.
const (
	HeuristicSensitive = "sensitive"
	HeuristicPublic    = "public"
)

// KeywordHeuristic is the deterministic fallback classifier used when the
// sentinel is unavailable. Ambiguous content is hidden, not leaked.
type KeywordHeuristic struct {
	sensitive []string
	public    []string
}

// NewKeywordHeuristic creates a heuristic over lowercased keyword lists.
func NewKeywordHeuristic(sensitive, public []string) *KeywordHeuristic {
	return &KeywordHeuristic{
		sensitive: lowerAll(sensitive),
		public:    lowerAll(public),
	}
}

// HeuristicResult is a coarse sensitivity verdict.
type HeuristicResult struct {
	Label string
	Score float64
}

// Check counts case-insensitive keyword occurrences and picks the side with
// strictly more hits. Ties resolve to public only when public hits are
// nonzero; no hits on either side defaults to sensitive.
func (h *KeywordHeuristic) Check(text string) HeuristicResult {
	low := strings.ToLower(text)

	sensHits := countHits(low, h.sensitive)
	pubHits := countHits(low, h.public)

	switch {
	case sensHits > pubHits:
		score := 1.0
		if len(h.sensitive) > 0 {
			score = min(1.0, float64(sensHits)/float64(len(h.sensitive)))
		}
		return HeuristicResult{Label: HeuristicSensitive, Score: score}
	case pubHits > 0:
		return HeuristicResult{Label: HeuristicPublic, Score: 0}
	default:
		return HeuristicResult{Label: HeuristicSensitive, Score: 0}
	}
}

func countHits(low string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if kw != "" && strings.Contains(low, kw) {
			n++
		}
	}
	return n
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
