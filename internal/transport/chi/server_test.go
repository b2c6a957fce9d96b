package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
	healthuc "github.com/kailas-cloud/guardrag/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/guardrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/guardrag/internal/usecase/query"
)

type stubQueryService struct {
	result queryuc.Result
	err    error
	role   domain.Role
	idx    []int
}

func (s *stubQueryService) Answer(_ context.Context, _ string, role domain.Role, idx []int) (queryuc.Result, error) {
	s.role = role
	s.idx = idx
	if s.err != nil {
		return queryuc.Result{Status: queryuc.StatusError}, s.err
	}
	return s.result, nil
}

type stubIngestService struct {
	result ingestuc.Result
	err    error
}

func (s *stubIngestService) Ingest(_ context.Context, _, _, _ string) (ingestuc.Result, error) {
	if s.err != nil {
		return ingestuc.Result{}, s.err
	}
	return s.result, nil
}

type stubHealthService struct {
	report healthuc.Report
}

func (s *stubHealthService) Check(_ context.Context) healthuc.Report { return s.report }

type stubCorpusReader struct {
	chunks []domain.Chunk
}

func (s *stubCorpusReader) Snapshot() []domain.Chunk { return s.chunks }

type serverFixture struct {
	queries   *stubQueryService
	ingestion *stubIngestService
	health    *stubHealthService
	corpus    *stubCorpusReader
	recorder  *queryuc.Recorder
	router    *chi.Mux
}

func newFixture() *serverFixture {
	f := &serverFixture{
		queries:   &stubQueryService{},
		ingestion: &stubIngestService{},
		health:    &stubHealthService{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
		corpus:    &stubCorpusReader{},
		recorder:  queryuc.NewRecorder(),
	}
	srv := NewServer(f.queries, f.ingestion, f.health, f.corpus, f.recorder, zap.NewNop())
	f.router = chi.NewRouter()
	srv.Routes(f.router)
	return f
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandleQuery(t *testing.T) {
	f := newFixture()
	f.queries.result = queryuc.Result{
		Answer:  "the answer",
		Sources: []string{"handbook.txt"},
		Status:  queryuc.StatusSuccess,
	}

	rr := doJSON(t, f.router, "POST", "/query", `{"query":"what is the policy?","role":"ADMIN"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp queryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "the answer" || resp.Status != "success" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if f.queries.role != domain.RoleAdmin {
		t.Errorf("role = %q, expected admin (case-insensitive parse)", f.queries.role)
	}
}

func TestHandleQueryUnknownRoleIsGuest(t *testing.T) {
	f := newFixture()
	f.queries.result = queryuc.Result{Status: queryuc.StatusSuccess}

	rr := doJSON(t, f.router, "POST", "/query", `{"query":"q","role":"superuser"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if f.queries.role != domain.RoleGuest {
		t.Errorf("unknown role must map to guest, got %q", f.queries.role)
	}
}

func TestHandleQueryMissingQuery(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router, "POST", "/query", `{"role":"guest"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", rr.Code)
	}
}

func TestHandleQueryProviderError(t *testing.T) {
	f := newFixture()
	f.queries.err = fmt.Errorf("embed query: %w", domain.ErrEmbeddingProviderError)

	rr := doJSON(t, f.router, "POST", "/query", `{"query":"q"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, expected 502", rr.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeEmbeddingProvider {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestHandleQueryGenerationError(t *testing.T) {
	f := newFixture()
	f.queries.err = fmt.Errorf("generate answer: %w", domain.ErrGenerationProviderError)

	rr := doJSON(t, f.router, "POST", "/query", `{"query":"q"}`)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, expected 502", rr.Code)
	}
}

func TestHandleQueryEmptySourcesSerializedAsArray(t *testing.T) {
	f := newFixture()
	f.queries.result = queryuc.Result{Answer: "No documents available.", Status: queryuc.StatusBlockedOrEmpty}

	rr := doJSON(t, f.router, "POST", "/query", `{"query":"q"}`)
	if !strings.Contains(rr.Body.String(), `"sources":[]`) {
		t.Errorf("sources must serialize as an empty array: %s", rr.Body.String())
	}
}

func TestHandleQueryExplicitIndices(t *testing.T) {
	f := newFixture()
	f.queries.result = queryuc.Result{Status: queryuc.StatusSuccess}

	rr := doJSON(t, f.router, "POST", "/query", `{"query":"q","chunk_indices":[0,2]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(f.queries.idx) != 2 || f.queries.idx[1] != 2 {
		t.Errorf("explicit indices not forwarded: %v", f.queries.idx)
	}
}

func TestHandleIngest(t *testing.T) {
	f := newFixture()
	f.ingestion.result = ingestuc.Result{DocID: "doc1", ChunksAdded: 4, AdminChunks: 1}

	rr := doJSON(t, f.router, "POST", "/documents", `{"doc_id":"doc1","source":"handbook.txt","text":"long enough document text for ingestion"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var resp ingestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocID != "doc1" || resp.ChunksAdded != 4 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandleIngestInvalidDocument(t *testing.T) {
	f := newFixture()
	f.ingestion.err = fmt.Errorf("document too short: %w", domain.ErrInvalidDocument)

	rr := doJSON(t, f.router, "POST", "/documents", `{"text":"short"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", rr.Code)
	}

	var resp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != codeInvalidDocument {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestHandleIngestMissingText(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router, "POST", "/documents", `{"doc_id":"doc1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", rr.Code)
	}
}

func TestHandleMetadata(t *testing.T) {
	f := newFixture()
	f.corpus.chunks = []domain.Chunk{
		{
			ChunkID:       "doc1_chunk_0",
			Source:        "handbook.txt",
			Text:          strings.Repeat("x", 150),
			Access:        domain.AccessAdmin,
			Tags:          []string{"confidential_marking"},
			SentinelLabel: "confidential",
			SentinelScore: 0.91,
		},
	}

	rr := doJSON(t, f.router, "GET", "/debug/metadata", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp metadataResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 || len(resp.Chunks) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	c := resp.Chunks[0]
	if c.Access != "admin" || c.ChunkID != "doc1_chunk_0" {
		t.Errorf("unexpected chunk metadata: %+v", c)
	}
	if len(c.Snippet) != snippetLen {
		t.Errorf("snippet length = %d, expected %d", len(c.Snippet), snippetLen)
	}
}

func TestHandleTraceNotFound(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router, "GET", "/debug/trace", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, expected 404 before any query", rr.Code)
	}
}

func TestHandleTrace(t *testing.T) {
	f := newFixture()
	f.recorder.Record(queryuc.Trace{
		Query:  "Tell me about Project Chimera",
		Role:   domain.RoleGuest,
		Status: queryuc.StatusBlockedOrEmpty,
		Reason: queryuc.ReasonAccessDenied,
		Decisions: []queryuc.AccessDecision{
			{ChunkID: "doc1_chunk_0", Score: 0.92, Allowed: false, Reason: "access=admin not visible to guest"},
		},
		FilteringLog: []string{"dropped doc1_chunk_0: access=admin not visible to guest"},
		Elapsed:      1500 * time.Millisecond,
	})

	rr := doJSON(t, f.router, "GET", "/debug/trace", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var resp traceResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "blocked_or_empty" || resp.Reason != "access_denied" {
		t.Errorf("unexpected trace: %+v", resp)
	}
	if len(resp.Decisions) != 1 || resp.Decisions[0].Allowed {
		t.Errorf("unexpected decisions: %+v", resp.Decisions)
	}
	if resp.ElapsedSeconds != 1.5 {
		t.Errorf("elapsed = %f, expected 1.5", resp.ElapsedSeconds)
	}
}

func TestHealthCheckDegraded(t *testing.T) {
	f := newFixture()
	f.health.report = healthuc.Report{
		Status: healthuc.Degraded,
		Checks: map[string]healthuc.CheckResult{"embedding": healthuc.CheckError},
		Chunks: 3,
	}

	rr := doJSON(t, f.router, "GET", "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, expected 503", rr.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" || resp.Checks["embedding"] != "error" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.Chunks != 3 {
		t.Errorf("chunks = %d, expected 3", resp.Chunks)
	}
}

func TestHealthCheckOK(t *testing.T) {
	f := newFixture()
	rr := doJSON(t, f.router, "GET", "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, expected 200", rr.Code)
	}
}
