package query

import (
	"sync"
	"time"

	"github.com/kailas-cloud/guardrag/internal/domain"
	"github.com/kailas-cloud/guardrag/internal/security"
)

// AccessDecision records the verdict on one candidate chunk.
type AccessDecision struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
}

// Trace is the layer-by-layer audit record of one query.
type Trace struct {
	Query        string              `json:"query"`
	Role         domain.Role         `json:"role"`
	Check        security.QueryCheck `json:"query_check"`
	Decisions    []AccessDecision    `json:"decisions"`
	FilteringLog []string            `json:"filtering_log"`
	Status       string              `json:"status"`
	Reason       string              `json:"reason,omitempty"`
	Elapsed      time.Duration       `json:"elapsed"`
}

// Recorder keeps the most recent query trace. Single slot, overwritten on
// every query; reads may race with queries and get the previous record.
type Recorder struct {
	mu   sync.RWMutex
	last *Trace
}

// NewRecorder creates an empty trace recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record stores the trace, replacing the previous one.
func (r *Recorder) Record(t Trace) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &t
}

// Last returns the most recent trace, if any query has run.
func (r *Recorder) Last() (Trace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Trace{}, false
	}
	return *r.last, true
}
