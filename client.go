package guardrag

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/chunker"
	"github.com/kailas-cloud/guardrag/internal/config"
	"github.com/kailas-cloud/guardrag/internal/domain"
	"github.com/kailas-cloud/guardrag/internal/repository/corpus"
	"github.com/kailas-cloud/guardrag/internal/security"
	ingestuc "github.com/kailas-cloud/guardrag/internal/usecase/ingest"
	queryuc "github.com/kailas-cloud/guardrag/internal/usecase/query"
)

// Client is the guardrag SDK entry point. All state lives in the data
// directory; no external services are required beyond the embedder and
// generator callbacks.
type Client struct {
	corpus    *corpus.Repo
	ingestSvc *ingestuc.Service
	querySvc  *queryuc.Service
	recorder  *queryuc.Recorder
}

// IngestResult reports one document ingestion.
type IngestResult struct {
	DocID       string
	ChunksAdded int
	AdminChunks int
}

// QueryResult is the caller-visible outcome of one query.
type QueryResult struct {
	Answer  string
	Sources []string
	Status  string
}

// ChunkInfo describes one persisted chunk for inspection.
type ChunkInfo struct {
	Index   int
	ChunkID string
	Source  string
	Access  string
	Tags    []string
	Snippet string
}

// New creates a guardrag Client and loads the persisted corpus.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{logger: zap.NewNop()}
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.embedder == nil {
		return nil, errors.New("guardrag: embedder required (use WithEmbedder)")
	}

	// Fill gaps from the server defaults so SDK and server behave alike.
	var defaults config.Config
	defaults.ApplyDefaults()
	if cfg.dataDir == "" {
		cfg.dataDir = defaults.Storage.DataDir
	}
	if cfg.chunkSize <= 0 {
		cfg.chunkSize = defaults.Ingestion.ChunkSize
	}
	if cfg.chunkOverlap <= 0 {
		cfg.chunkOverlap = defaults.Ingestion.ChunkOverlap
	}
	if cfg.topK <= 0 {
		cfg.topK = defaults.Query.TopK
	}
	if cfg.simThreshold <= 0 {
		cfg.simThreshold = defaults.Query.SimilarityThreshold
	}
	if cfg.sentinelThreshold <= 0 {
		cfg.sentinelThreshold = defaults.Security.SentinelThreshold
	}
	if len(cfg.sentinelLabels) == 0 {
		cfg.sentinelLabels = defaults.Security.SentinelLabels
	}
	if len(cfg.sensitiveLabels) == 0 {
		cfg.sensitiveLabels = defaults.Security.SensitiveLabels
	}
	if len(cfg.sensitiveKeywords) == 0 {
		cfg.sensitiveKeywords = defaults.Security.SensitiveKeywords
	}
	if len(cfg.publicKeywords) == 0 {
		cfg.publicKeywords = defaults.Security.PublicKeywords
	}
	if len(cfg.hardPatterns) == 0 {
		for _, p := range defaults.Security.HardPatterns {
			cfg.hardPatterns = append(cfg.hardPatterns, HardPattern{
				Name:       p.Name,
				Pattern:    p.Pattern,
				IgnoreCase: p.Flags == "IGNORECASE",
				Tag:        p.Tag,
				ForceAdmin: p.ForceAdmin,
			})
		}
	}

	return wireClient(cfg)
}

func wireClient(cfg *clientConfig) (*Client, error) {
	domEmb := &embedderAdapter{inner: cfg.embedder}

	rules := make([]security.PatternRule, 0, len(cfg.hardPatterns))
	for _, p := range cfg.hardPatterns {
		flags := ""
		if p.IgnoreCase {
			flags = "IGNORECASE"
		}
		rules = append(rules, security.PatternRule{
			Name:       p.Name,
			Pattern:    p.Pattern,
			Flags:      flags,
			Tag:        p.Tag,
			ForceAdmin: p.ForceAdmin,
		})
	}
	hardFilter, err := security.NewHardFilter(rules)
	if err != nil {
		return nil, fmt.Errorf("guardrag: %w", err)
	}

	heuristic := security.NewKeywordHeuristic(cfg.sensitiveKeywords, cfg.publicKeywords)
	sentinel := security.NewSentinel(context.Background(), domEmb, cfg.sentinelLabels, cfg.logger)
	manager := security.NewManager(
		hardFilter, sentinel, heuristic,
		cfg.sentinelThreshold, cfg.sensitiveLabels, cfg.logger,
	)

	repo := corpus.New(cfg.dataDir, cfg.logger)
	if err := repo.Load(); err != nil {
		return nil, fmt.Errorf("guardrag: load corpus: %w", err)
	}

	splitter, err := chunker.New(cfg.chunkSize, cfg.chunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("guardrag: %w", err)
	}

	var gen queryuc.Generator = &generatorAdapter{inner: cfg.generator}

	recorder := queryuc.NewRecorder()
	return &Client{
		corpus:    repo,
		ingestSvc: ingestuc.New(repo, splitter, manager, domEmb, cfg.logger),
		querySvc: queryuc.New(
			repo, manager, domEmb, gen, recorder,
			cfg.topK, cfg.simThreshold, cfg.logger,
		),
		recorder: recorder,
	}, nil
}

// Ingest splits, labels, vectorizes, and persists one document.
// An empty docID gets a generated UUID.
func (c *Client) Ingest(ctx context.Context, docID, source, text string) (IngestResult, error) {
	r, err := c.ingestSvc.Ingest(ctx, docID, source, text)
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{DocID: r.DocID, ChunksAdded: r.ChunksAdded, AdminChunks: r.AdminChunks}, nil
}

// Query answers a question for the given role ("guest" or "admin",
// case-insensitive; unknown roles are treated as guest).
func (c *Client) Query(ctx context.Context, question, role string) (QueryResult, error) {
	return c.queryIndices(ctx, question, role, nil)
}

// QueryIndices answers using exactly the given chunk indices instead of
// ranking. The role filter still applies.
func (c *Client) QueryIndices(ctx context.Context, question, role string, indices []int) (QueryResult, error) {
	return c.queryIndices(ctx, question, role, indices)
}

func (c *Client) queryIndices(ctx context.Context, question, role string, indices []int) (QueryResult, error) {
	r, err := c.querySvc.Answer(ctx, question, domain.ParseRole(role), indices)
	if err != nil {
		return QueryResult{Status: r.Status}, err
	}
	return QueryResult{Answer: r.Answer, Sources: r.Sources, Status: r.Status}, nil
}

// Chunks returns metadata for every persisted chunk.
func (c *Client) Chunks() []ChunkInfo {
	chunks := c.corpus.Snapshot()
	out := make([]ChunkInfo, 0, len(chunks))
	for i, ch := range chunks {
		snippet := ch.Text
		if r := []rune(snippet); len(r) > 100 {
			snippet = string(r[:100])
		}
		out = append(out, ChunkInfo{
			Index:   i,
			ChunkID: ch.ChunkID,
			Source:  ch.Source,
			Access:  string(ch.Access),
			Tags:    ch.Tags,
			Snippet: snippet,
		})
	}
	return out
}

// Len returns the number of persisted chunks.
func (c *Client) Len() int {
	return c.corpus.Len()
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	vec, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

// generatorAdapter wraps the public Generator to satisfy the query service.
// A nil inner generator fails per-request, not at construction, so
// ingest-only clients work without one.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, system, prompt string) (domain.GenerationResult, error) {
	if a.inner == nil {
		return domain.GenerationResult{}, fmt.Errorf(
			"guardrag: generator not configured (use WithGenerator): %w",
			domain.ErrGenerationProviderError,
		)
	}
	text, err := a.inner.Generate(ctx, system, prompt)
	if err != nil {
		return domain.GenerationResult{}, fmt.Errorf("generate: %w", err)
	}
	return domain.GenerationResult{Text: text}, nil
}
