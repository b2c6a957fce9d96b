package guardrag

import (
	"context"

	"go.uber.org/zap"
)

// Embedder vectorizes text. Implementations back the ranking, the cache,
// and the semantic sentinel.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces an answer from a system instruction and a prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// EmbedderFunc adapts a function to the Embedder interface.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, system, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

// HardPattern is one deterministic filter rule for the security pipeline.
type HardPattern struct {
	Name       string
	Pattern    string
	IgnoreCase bool
	Tag        string
	ForceAdmin bool
}

type clientConfig struct {
	dataDir string

	embedder  Embedder
	generator Generator

	chunkSize    int
	chunkOverlap int

	topK         int
	simThreshold float64

	hardPatterns      []HardPattern
	sensitiveKeywords []string
	publicKeywords    []string
	sentinelThreshold float64
	sentinelLabels    []string
	sensitiveLabels   []string

	logger *zap.Logger
}

// WithDataDir sets the corpus persistence directory. Default "data".
func WithDataDir(dir string) Option {
	return optionFunc(func(c *clientConfig) { c.dataDir = dir })
}

// WithEmbedder sets the embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) { c.embedder = e })
}

// WithEmbedderFunc sets the embedding provider from a function.
func WithEmbedderFunc(f func(ctx context.Context, text string) ([]float32, error)) Option {
	return optionFunc(func(c *clientConfig) { c.embedder = EmbedderFunc(f) })
}

// WithGenerator sets the generation provider. Required for Query.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) { c.generator = g })
}

// WithGeneratorFunc sets the generation provider from a function.
func WithGeneratorFunc(f func(ctx context.Context, system, prompt string) (string, error)) Option {
	return optionFunc(func(c *clientConfig) { c.generator = GeneratorFunc(f) })
}

// WithChunking sets the target chunk size and overlap in characters.
// Defaults: 500 and 50.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many chunks reach the generation context. Default 3.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) { c.topK = k })
}

// WithSimilarityThreshold sets the minimum cosine similarity for guest
// candidates. Default 0.55.
func WithSimilarityThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) { c.simThreshold = t })
}

// WithHardPatterns replaces the built-in hard filter rule set.
func WithHardPatterns(patterns ...HardPattern) Option {
	return optionFunc(func(c *clientConfig) { c.hardPatterns = patterns })
}

// WithKeywords replaces the heuristic fallback keyword lists.
func WithKeywords(sensitive, public []string) Option {
	return optionFunc(func(c *clientConfig) {
		c.sensitiveKeywords = sensitive
		c.publicKeywords = public
	})
}

// WithSentinel configures the advisory semantic classifier: the candidate
// label set, the subset treated as sensitive, and the confidence threshold.
func WithSentinel(labels, sensitiveLabels []string, threshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.sentinelLabels = labels
		c.sensitiveLabels = sensitiveLabels
		c.sentinelThreshold = threshold
	})
}

// WithLogger sets the zap logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) { c.logger = logger })
}
