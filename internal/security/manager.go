package security

import (
	"context"

	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
)

// Manager composes the hard filter, sentinel, and keyword heuristic into one
// per-chunk access decision and one per-query advisory check. Stateless per
// call; owns no persisted state.
type Manager struct {
	hard            *HardFilter
	sentinel        Sentinel
	heuristic       *KeywordHeuristic
	threshold       float64
	sensitiveLabels map[string]struct{}
	logger          *zap.Logger
}

// NewManager creates a security manager. threshold is the minimum sentinel
// confidence for an advisory upgrade; sensitiveLabels are the sentinel
// categories that imply restriction.
func NewManager(
	hard *HardFilter,
	sentinel Sentinel,
	heuristic *KeywordHeuristic,
	threshold float64,
	sensitiveLabels []string,
	logger *zap.Logger,
) *Manager {
	labels := make(map[string]struct{}, len(sensitiveLabels))
	for _, l := range sensitiveLabels {
		labels[l] = struct{}{}
	}
	return &Manager{
		hard:            hard,
		sentinel:        sentinel,
		heuristic:       heuristic,
		threshold:       threshold,
		sensitiveLabels: labels,
		logger:          logger,
	}
}

// AssessChunk runs the merge in fixed order: hard filter, then sentinel,
// then heuristic when the sentinel has no signal. The label only ever moves
// public -> admin; each layer can add restriction, never remove it, so a
// failed later layer cannot widen access.
func (m *Manager) AssessChunk(ctx context.Context, text string) domain.Assessment {
	hf := m.hard.Check(text)

	access := domain.AccessPublic
	if hf.ForcedAdmin {
		access = domain.AccessAdmin
	}

	sent := m.sentinel.Check(ctx, text)
	switch {
	case sent.Available:
		if sent.Score >= m.threshold && m.isSensitive(sent.Label) {
			access = domain.AccessAdmin
		}
	default:
		if m.heuristic.Check(text).Label == HeuristicSensitive {
			access = domain.AccessAdmin
		}
	}

	if access == domain.AccessAdmin {
		m.logger.Debug("chunk restricted",
			zap.Strings("tags", hf.Tags),
			zap.String("sentinel_label", sent.Label),
			zap.Float64("sentinel_score", sent.Score),
		)
	}

	return domain.Assessment{
		Access:        access,
		Tags:          hf.Tags,
		SentinelLabel: sent.Label,
		SentinelScore: sent.Score,
	}
}

// QueryCheck is the advisory assessment of the question itself.
type QueryCheck struct {
	Hard     HardResult
	Sentinel SentinelResult
}

// CheckQuery assesses whether the query probes for sensitive topics. Advisory
// input to enforcement; final admission is always adjudicated against the
// persisted chunk labels.
func (m *Manager) CheckQuery(ctx context.Context, text string) QueryCheck {
	return QueryCheck{
		Hard:     m.hard.Check(text),
		Sentinel: m.sentinel.Check(ctx, text),
	}
}

func (m *Manager) isSensitive(label string) bool {
	_, ok := m.sensitiveLabels[label]
	return ok
}
