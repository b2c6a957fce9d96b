package query

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
	"github.com/kailas-cloud/guardrag/internal/security"
)

type stubCorpus struct {
	chunks []domain.Chunk
}

func (s *stubCorpus) Snapshot() []domain.Chunk { return s.chunks }

type stubChecker struct {
	check security.QueryCheck
}

func (s *stubChecker) CheckQuery(_ context.Context, _ string) security.QueryCheck {
	return s.check
}

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: s.vec}, nil
}

type stubGenerator struct {
	text   string
	err    error
	system string
	prompt string
	calls  int
}

func (s *stubGenerator) Generate(_ context.Context, system, prompt string) (domain.GenerationResult, error) {
	s.calls++
	s.system = system
	s.prompt = prompt
	if s.err != nil {
		return domain.GenerationResult{}, s.err
	}
	return domain.GenerationResult{Text: s.text}, nil
}

func publicChunk(id, source, text string, vec []float32) domain.Chunk {
	return domain.Chunk{ChunkID: id, Source: source, Text: text, Vector: vec, Access: domain.AccessPublic}
}

func adminChunk(id, source, text string, vec []float32) domain.Chunk {
	return domain.Chunk{ChunkID: id, Source: source, Text: text, Vector: vec, Access: domain.AccessAdmin}
}

func newTestService(corpus *stubCorpus, emb *stubEmbedder, gen *stubGenerator) (*Service, *Recorder) {
	rec := NewRecorder()
	svc := New(corpus, &stubChecker{}, emb, gen, rec, 3, 0.55, zap.NewNop())
	return svc, rec
}

func TestAnswerEmptyCorpus(t *testing.T) {
	gen := &stubGenerator{}
	svc, rec := newTestService(&stubCorpus{}, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "anything", domain.RoleGuest, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusBlockedOrEmpty {
		t.Errorf("Status = %q, expected blocked_or_empty", result.Status)
	}
	if result.Answer != "No documents available." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Errorf("expected no sources, got %v", result.Sources)
	}
	if gen.calls != 0 {
		t.Error("generator must not run on empty corpus")
	}

	tr, ok := rec.Last()
	if !ok {
		t.Fatal("expected recorded trace")
	}
	if tr.Reason != ReasonEmptyCorpus {
		t.Errorf("trace reason = %q, expected empty_corpus", tr.Reason)
	}
}

func TestAnswerGuestFiltersAdminChunks(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		adminChunk("doc_chunk_0", "doc", "Project Chimera launches in Q3.", []float32{1, 0}),
		publicChunk("doc_chunk_1", "doc", "The vacation policy grants 25 days.", []float32{0.9, 0.436}),
	}}
	gen := &stubGenerator{text: "25 days of vacation."}
	svc, rec := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "What does the policy say about vacation?", domain.RoleGuest, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q, expected success", result.Status)
	}
	if strings.Contains(gen.prompt, "Chimera") {
		t.Error("admin chunk leaked into guest context")
	}
	if !strings.Contains(gen.prompt, "vacation policy") {
		t.Errorf("public chunk missing from context: %q", gen.prompt)
	}

	tr, _ := rec.Last()
	denied := 0
	for _, d := range tr.Decisions {
		if !d.Allowed {
			denied++
			if d.ChunkID != "doc_chunk_0" {
				t.Errorf("unexpected denied chunk: %s", d.ChunkID)
			}
		}
	}
	if denied != 1 {
		t.Errorf("expected 1 denied decision, got %d", denied)
	}
}

func TestAnswerAdminSeesRestrictedChunks(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		adminChunk("doc_chunk_0", "doc", "Project Chimera launches in Q3.", []float32{1, 0}),
		publicChunk("doc_chunk_1", "doc", "The vacation policy grants 25 days.", []float32{0.5, 0.866}),
	}}
	gen := &stubGenerator{text: "Chimera launches in Q3."}
	svc, _ := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "Tell me about Project Chimera", domain.RoleAdmin, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q, expected success", result.Status)
	}
	if !strings.Contains(gen.prompt, "Chimera") {
		t.Error("admin must see the restricted chunk")
	}
}

func TestAnswerGuestBlockedWhenAllRestricted(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		adminChunk("doc_chunk_0", "doc", "Project Chimera launches in Q3.", []float32{1, 0}),
	}}
	gen := &stubGenerator{}
	svc, rec := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "Tell me about Project Chimera", domain.RoleGuest, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusBlockedOrEmpty {
		t.Fatalf("Status = %q, expected blocked_or_empty", result.Status)
	}
	if result.Answer != "Access denied or no relevant documents." {
		t.Errorf("Answer = %q", result.Answer)
	}
	if gen.calls != 0 {
		t.Error("generator must not run when all candidates are filtered")
	}

	tr, _ := rec.Last()
	if tr.Reason != ReasonAccessDenied {
		t.Errorf("trace reason = %q, expected access_denied (distinguishable from empty corpus)", tr.Reason)
	}
}

func TestAnswerLexicalFallback(t *testing.T) {
	// The chunk vector is orthogonal to the query, so semantic scoring drops
	// it below threshold; the exact term must recover it.
	corpus := &stubCorpus{chunks: []domain.Chunk{
		publicChunk("doc_chunk_0", "minerals.txt", "Zephyrite deposits were found in the northern range.", []float32{0, 1}),
	}}
	gen := &stubGenerator{text: "Found in the northern range."}
	svc, rec := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "Where is Zephyrite found?", domain.RoleGuest, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q, expected success after lexical fallback", result.Status)
	}
	if !strings.Contains(gen.prompt, "Zephyrite deposits") {
		t.Errorf("fallback chunk missing from context: %q", gen.prompt)
	}

	tr, _ := rec.Last()
	foundLog := false
	for _, line := range tr.FilteringLog {
		if strings.Contains(line, "lexical fallback") {
			foundLog = true
		}
	}
	if !foundLog {
		t.Error("expected lexical fallback entry in filtering log")
	}
}

func TestAnswerLexicalFallbackStillFiltered(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		adminChunk("doc_chunk_0", "doc", "Zephyrite reserves are classified.", []float32{0, 1}),
	}}
	gen := &stubGenerator{}
	svc, _ := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "Where is Zephyrite found?", domain.RoleGuest, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusBlockedOrEmpty {
		t.Fatalf("fallback candidates must pass the label filter, got status %q", result.Status)
	}
	if gen.calls != 0 {
		t.Error("generator must not run")
	}
}

func TestAnswerExplicitIndicesNeverBypassFilter(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		adminChunk("doc_chunk_0", "doc", "Project Chimera launches in Q3.", []float32{1, 0}),
		publicChunk("doc_chunk_1", "doc", "The cafeteria opens at nine.", []float32{0, 1}),
	}}
	gen := &stubGenerator{text: "At nine."}
	svc, _ := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "opening hours", domain.RoleGuest, []int{0, 1, 99, -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q, expected success", result.Status)
	}
	if strings.Contains(gen.prompt, "Chimera") {
		t.Error("explicit index selection must not bypass the access check")
	}
	if !strings.Contains(gen.prompt, "cafeteria") {
		t.Errorf("allowed explicit chunk missing: %q", gen.prompt)
	}
}

func TestAnswerEmbedderErrorFailsClosed(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		publicChunk("doc_chunk_0", "doc", "Some public text here.", []float32{1, 0}),
	}}
	gen := &stubGenerator{}
	svc, rec := newTestService(corpus, &stubEmbedder{err: errors.New("provider down")}, gen)

	result, err := svc.Answer(context.Background(), "question", domain.RoleGuest, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Status != StatusError {
		t.Errorf("Status = %q, expected error", result.Status)
	}
	if gen.calls != 0 {
		t.Error("generator must not run after embedding failure")
	}

	tr, _ := rec.Last()
	if tr.Status != StatusError {
		t.Errorf("trace status = %q, expected error", tr.Status)
	}
}

func TestAnswerGeneratorErrorPropagates(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		publicChunk("doc_chunk_0", "doc", "Some public text here.", []float32{1, 0}),
	}}
	gen := &stubGenerator{err: errors.New("model overloaded")}
	svc, _ := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "question", domain.RoleGuest, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if result.Status != StatusError {
		t.Errorf("Status = %q, expected error", result.Status)
	}
}

func TestAnswerSourcesDeduplicated(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		publicChunk("a_chunk_0", "handbook.txt", "Vacation policy part one text.", []float32{1, 0}),
		publicChunk("a_chunk_1", "handbook.txt", "Vacation policy part two text.", []float32{0.95, 0.312}),
		publicChunk("b_chunk_0", "faq.txt", "Vacation questions and answers.", []float32{0.9, 0.436}),
	}}
	gen := &stubGenerator{text: "answer"}
	svc, _ := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "vacation policy details", domain.RoleGuest, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sources) != 2 {
		t.Fatalf("Sources = %v, expected 2 deduplicated entries", result.Sources)
	}
	if result.Sources[0] != "handbook.txt" || result.Sources[1] != "faq.txt" {
		t.Errorf("sources out of ranking order: %v", result.Sources)
	}
}

func TestAnswerGuestContextOnlyPublic(t *testing.T) {
	// Mixed corpus at every score level; whatever the ranking does, no admin
	// text may reach the generator for a guest.
	corpus := &stubCorpus{chunks: []domain.Chunk{
		adminChunk("d_chunk_0", "d", "SECRET alpha payload.", []float32{1, 0}),
		publicChunk("d_chunk_1", "d", "Open fact one about topics.", []float32{0.98, 0.199}),
		adminChunk("d_chunk_2", "d", "SECRET beta payload.", []float32{0.97, 0.243}),
		publicChunk("d_chunk_3", "d", "Open fact two about topics.", []float32{0.96, 0.28}),
		adminChunk("d_chunk_4", "d", "SECRET gamma payload.", []float32{0.95, 0.312}),
		publicChunk("d_chunk_5", "d", "Open fact three about topics.", []float32{0.94, 0.341}),
	}}
	gen := &stubGenerator{text: "answer"}
	svc, _ := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	result, err := svc.Answer(context.Background(), "tell me about topics", domain.RoleGuest, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("Status = %q, expected success", result.Status)
	}
	if strings.Contains(gen.prompt, "SECRET") {
		t.Fatalf("admin content reached guest context: %q", gen.prompt)
	}
	for _, want := range []string{"fact one", "fact two", "fact three"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("expected public chunk %q in context", want)
		}
	}
}

func TestAnswerTopKTruncation(t *testing.T) {
	chunks := []domain.Chunk{
		publicChunk("c_chunk_0", "c", "Ranked first entry text.", []float32{1, 0}),
		publicChunk("c_chunk_1", "c", "Ranked second entry text.", []float32{0.99, 0.141}),
		publicChunk("c_chunk_2", "c", "Ranked third entry text.", []float32{0.98, 0.199}),
		publicChunk("c_chunk_3", "c", "Ranked fourth entry text.", []float32{0.97, 0.243}),
	}
	gen := &stubGenerator{text: "answer"}
	svc, _ := newTestService(&stubCorpus{chunks: chunks}, &stubEmbedder{vec: []float32{1, 0}}, gen)

	if _, err := svc.Answer(context.Background(), "ranked entries", domain.RoleGuest, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(gen.prompt, "fourth") {
		t.Errorf("context exceeds topK: %q", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "third") {
		t.Errorf("context missing topK-th entry: %q", gen.prompt)
	}
}

func TestAnswerSystemInstructionConstrainsToContext(t *testing.T) {
	corpus := &stubCorpus{chunks: []domain.Chunk{
		publicChunk("doc_chunk_0", "doc", "Some public text here.", []float32{1, 0}),
	}}
	gen := &stubGenerator{text: "answer"}
	svc, _ := newTestService(corpus, &stubEmbedder{vec: []float32{1, 0}}, gen)

	if _, err := svc.Answer(context.Background(), "question", domain.RoleGuest, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gen.system, "only the provided context") {
		t.Errorf("system instruction must constrain to context: %q", gen.system)
	}
}

func TestQueryTerms(t *testing.T) {
	terms := queryTerms("Where is Zephyrite found? It's #42.")
	want := []string{"where", "zephyrite", "found"}
	if len(terms) != len(want) {
		t.Fatalf("terms = %v, expected %v", terms, want)
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("terms[%d] = %q, expected %q", i, terms[i], want[i])
		}
	}
}
