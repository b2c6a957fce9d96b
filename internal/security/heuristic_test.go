package security

import "testing"

func testHeuristic() *KeywordHeuristic {
	return NewKeywordHeuristic(
		[]string{"confidential", "proprietary", "trade secret", "merger"},
		[]string{"public", "press release", "policy"},
	)
}

func TestHeuristicCheck(t *testing.T) {
	h := testHeuristic()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"sensitive majority", "This proprietary merger plan is confidential.", HeuristicSensitive},
		{"public majority", "See the public press release about the policy.", HeuristicPublic},
		{"tie resolves public when public hits exist", "Confidential policy.", HeuristicPublic},
		{"no hits defaults sensitive", "Nothing notable in this text at all.", HeuristicSensitive},
		{"case insensitive", "CONFIDENTIAL PROPRIETARY data", HeuristicSensitive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Check(tt.text); got.Label != tt.want {
				t.Errorf("Check(%q).Label = %q, want %q", tt.text, got.Label, tt.want)
			}
		})
	}
}

func TestHeuristicScoreBounded(t *testing.T) {
	h := testHeuristic()
	got := h.Check("confidential proprietary trade secret merger confidential")
	if got.Score < 0 || got.Score > 1 {
		t.Errorf("score %f out of [0,1]", got.Score)
	}
}
