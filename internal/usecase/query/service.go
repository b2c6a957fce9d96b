// Package query implements the retrieval enforcer: relevance ranking,
// role-based filtering against persisted access labels, and generation
// over the allowed context only.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
	"github.com/kailas-cloud/guardrag/internal/index"
	"github.com/kailas-cloud/guardrag/internal/metrics"
)

// Query outcome statuses, surfaced verbatim in the API response.
const (
	StatusSuccess        = "success"
	StatusBlockedOrEmpty = "blocked_or_empty"
	StatusError          = "error"
)

// Trace reasons distinguishing a security refusal from an empty corpus.
const (
	ReasonEmptyCorpus  = "empty_corpus"
	ReasonAccessDenied = "access_denied"
)

const (
	answerNoDocuments = "No documents available."
	answerDenied      = "Access denied or no relevant documents."

	// systemInstruction constrains the generator to the supplied context.
	// The trust boundary is context assembly; the generator output is not
	// re-verified against the label set.
	systemInstruction = "You are a careful assistant. Answer the question using only the " +
		"provided context. If the context does not contain the answer, say that you " +
		"cannot answer from the available documents. Do not use outside knowledge."

	// minTermLen is the exclusive lower bound on lexical fallback term length.
	minTermLen = 2
)

// Service answers questions against the labeled corpus.
type Service struct {
	corpus       Corpus
	checker      Checker
	embedder     Embedder
	generator    Generator
	recorder     *Recorder
	topK         int
	simThreshold float64
	logger       *zap.Logger
}

// New creates a query service.
func New(
	corpus Corpus,
	checker Checker,
	embedder Embedder,
	generator Generator,
	recorder *Recorder,
	topK int,
	simThreshold float64,
	logger *zap.Logger,
) *Service {
	return &Service{
		corpus:       corpus,
		checker:      checker,
		embedder:     embedder,
		generator:    generator,
		recorder:     recorder,
		topK:         topK,
		simThreshold: simThreshold,
		logger:       logger,
	}
}

// Result is the caller-visible outcome of one query.
type Result struct {
	Answer  string
	Sources []string
	Status  string
}

type candidate struct {
	idx   int
	score float64
}

// Answer runs the full query pipeline. Explicit indices, when supplied,
// replace ranking but never bypass the role filter. Provider failures
// return StatusError and a wrapped error; filtering never degrades to an
// unfiltered passthrough.
func (s *Service) Answer(ctx context.Context, q string, role domain.Role, explicitIdx []int) (Result, error) {
	start := time.Now()
	tr := Trace{Query: q, Role: role, Status: StatusSuccess}
	defer func() {
		tr.Elapsed = time.Since(start)
		s.recorder.Record(tr)
		metrics.QueriesTotal.WithLabelValues(string(role), tr.Status).Inc()
	}()

	chunks := s.corpus.Snapshot()
	if len(chunks) == 0 {
		tr.Status = StatusBlockedOrEmpty
		tr.Reason = ReasonEmptyCorpus
		return Result{Answer: answerNoDocuments, Status: StatusBlockedOrEmpty}, nil
	}

	tr.Check = s.checker.CheckQuery(ctx, q)

	candidates, err := s.selectCandidates(ctx, q, role, chunks, explicitIdx, &tr)
	if err != nil {
		tr.Status = StatusError
		return Result{Status: StatusError}, err
	}

	allowed := s.filterByLabel(role, chunks, candidates, &tr)
	if len(allowed) == 0 {
		tr.Status = StatusBlockedOrEmpty
		tr.Reason = ReasonAccessDenied
		s.logger.Info("query blocked",
			zap.String("role", string(role)),
			zap.Int("candidates", len(candidates)),
		)
		return Result{Answer: answerDenied, Status: StatusBlockedOrEmpty}, nil
	}

	if len(allowed) > s.topK {
		allowed = allowed[:s.topK]
	}

	lines := make([]string, 0, len(allowed))
	for _, c := range allowed {
		lines = append(lines, "- "+chunks[c.idx].Text)
	}
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", strings.Join(lines, "\n"), q)

	gen, err := s.generator.Generate(ctx, systemInstruction, prompt)
	if err != nil {
		tr.Status = StatusError
		return Result{Status: StatusError}, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Debug("query answered",
		zap.String("role", string(role)),
		zap.Int("context_chunks", len(allowed)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return Result{
		Answer:  strings.TrimSpace(gen.Text),
		Sources: dedupeSources(chunks, allowed),
		Status:  StatusSuccess,
	}, nil
}

// selectCandidates produces the ranked candidate set before label filtering.
func (s *Service) selectCandidates(
	ctx context.Context,
	q string,
	role domain.Role,
	chunks []domain.Chunk,
	explicitIdx []int,
	tr *Trace,
) ([]candidate, error) {
	if len(explicitIdx) > 0 {
		out := make([]candidate, 0, len(explicitIdx))
		for _, idx := range explicitIdx {
			if idx >= 0 && idx < len(chunks) {
				out = append(out, candidate{idx: idx, score: 1.0})
			}
		}
		tr.FilteringLog = append(tr.FilteringLog, "explicit indices supplied, ranking skipped")
		return out, nil
	}

	emb, err := s.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		vectors[i] = chunks[i].Vector
	}

	if role == domain.RoleAdmin {
		hits := index.TopK(emb.Embedding, vectors, s.topK)
		return toCandidates(hits), nil
	}

	overfetch := s.topK * 10
	if overfetch < s.topK+5 {
		overfetch = s.topK + 5
	}
	hits := index.TopK(emb.Embedding, vectors, overfetch)

	kept := make([]candidate, 0, len(hits))
	for _, h := range hits {
		if h.Score < s.simThreshold {
			metrics.ChunksFilteredTotal.WithLabelValues("below_threshold").Inc()
			continue
		}
		kept = append(kept, candidate{idx: h.Index, score: h.Score})
	}

	if len(kept) == 0 {
		kept = lexicalFallback(q, chunks)
		tr.FilteringLog = append(tr.FilteringLog,
			fmt.Sprintf("no candidates above threshold %.2f, lexical fallback found %d", s.simThreshold, len(kept)))
	}

	return kept, nil
}

// filterByLabel admits only chunks the role may read and records every
// verdict in the trace.
func (s *Service) filterByLabel(role domain.Role, chunks []domain.Chunk, candidates []candidate, tr *Trace) []candidate {
	allowed := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		ch := chunks[c.idx]
		if role.CanAccess(ch.Access) {
			allowed = append(allowed, c)
			tr.Decisions = append(tr.Decisions, AccessDecision{
				ChunkID: ch.ChunkID,
				Score:   c.score,
				Allowed: true,
			})
			continue
		}

		metrics.ChunksFilteredTotal.WithLabelValues("access_label").Inc()
		tr.Decisions = append(tr.Decisions, AccessDecision{
			ChunkID: ch.ChunkID,
			Score:   c.score,
			Allowed: false,
			Reason:  fmt.Sprintf("access=%s not visible to %s", ch.Access, role),
		})
		tr.FilteringLog = append(tr.FilteringLog,
			fmt.Sprintf("dropped %s: access=%s not visible to %s", ch.ChunkID, ch.Access, role))
	}
	return allowed
}

// lexicalFallback recovers exact-term queries that semantic similarity
// under-ranks, such as proper nouns and codes. Candidates are scored by the
// share of query terms found as substrings.
func lexicalFallback(q string, chunks []domain.Chunk) []candidate {
	terms := queryTerms(q)
	if len(terms) == 0 {
		return nil
	}

	var out []candidate
	for i, ch := range chunks {
		text := strings.ToLower(ch.Text)
		hits := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				hits++
			}
		}
		if hits > 0 {
			out = append(out, candidate{idx: i, score: float64(hits) / float64(len(terms))})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].idx < out[j].idx
	})
	return out
}

func queryTerms(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) > minTermLen {
			terms = append(terms, f)
		}
	}
	return terms
}

func toCandidates(hits []index.Hit) []candidate {
	out := make([]candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, candidate{idx: h.Index, score: h.Score})
	}
	return out
}

// dedupeSources returns the allowed chunks' sources in ranking order
// without duplicates.
func dedupeSources(chunks []domain.Chunk, allowed []candidate) []string {
	seen := make(map[string]struct{}, len(allowed))
	out := make([]string, 0, len(allowed))
	for _, c := range allowed {
		src := chunks[c.idx].Source
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}
