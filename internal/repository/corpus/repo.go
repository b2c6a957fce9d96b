// Package corpus persists the labeled chunk corpus as a binary vector file
// and a parallel JSON metadata file, written atomically as a pair.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/guardrag/internal/domain"
)

const (
	vectorsFile  = "vectors.bin"
	metadataFile = "metadata.json"
)

// Repo is the exclusive owner of the persisted corpus. Append serializes the
// read-modify-persist sequence behind a writer lock; Snapshot hands out a
// consistent read view that never observes a partial append.
type Repo struct {
	dir    string
	logger *zap.Logger

	mu     sync.RWMutex
	chunks []domain.Chunk
	dim    int
}

// New creates a corpus repository rooted at dir. Call Load before use.
func New(dir string, logger *zap.Logger) *Repo {
	return &Repo{dir: dir, logger: logger}
}

// Load reads the persisted pair. Missing files mean an empty corpus, not an
// error. A pair whose lengths or dimensions disagree is corruption and is
// rejected, never silently truncated.
func (r *Repo) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	vecPath := filepath.Join(r.dir, vectorsFile)
	metaPath := filepath.Join(r.dir, metadataFile)

	vecExists := fileExists(vecPath)
	metaExists := fileExists(metaPath)

	if !vecExists && !metaExists {
		r.chunks = nil
		r.dim = 0
		return nil
	}
	if vecExists != metaExists {
		return fmt.Errorf("index/metadata pair incomplete in %s: %w", r.dir, domain.ErrCorpusCorrupted)
	}

	vectors, dim, err := readVectors(vecPath)
	if err != nil {
		return err
	}

	records, err := readMetadata(metaPath)
	if err != nil {
		return err
	}

	if len(records) != len(vectors) {
		return fmt.Errorf(
			"metadata has %d records, index has %d vectors: %w",
			len(records), len(vectors), domain.ErrCorpusCorrupted,
		)
	}

	chunks := make([]domain.Chunk, len(records))
	for i, rec := range records {
		chunk, err := rec.toDomain()
		if err != nil {
			return fmt.Errorf("metadata record %d: %w", i, err)
		}
		chunk.Vector = vectors[i]
		chunks[i] = chunk
	}

	r.chunks = chunks
	r.dim = dim
	r.logger.Info("corpus loaded",
		zap.Int("chunks", len(chunks)),
		zap.Int("dimensions", dim),
	)
	return nil
}

// Append adds chunks to the corpus and persists index and metadata together.
// On persist failure the in-memory state is left untouched: no partial
// corpus mutation.
func (r *Repo) Append(chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dim := r.dim
	for _, c := range chunks {
		if !c.Access.Valid() {
			return fmt.Errorf("chunk %s has invalid access label %q", c.ChunkID, c.Access)
		}
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) == 0 || len(c.Vector) != dim {
			return fmt.Errorf(
				"chunk %s: got %d dimensions, want %d: %w",
				c.ChunkID, len(c.Vector), dim, domain.ErrVectorDimMismatch,
			)
		}
	}

	// Full slice expression so the append below never aliases the snapshot
	// other readers may still hold.
	combined := append(r.chunks[:len(r.chunks):len(r.chunks)], chunks...)

	if err := r.persist(combined, dim); err != nil {
		return err
	}

	r.chunks = combined
	r.dim = dim
	return nil
}

// Snapshot returns a consistent read view of the corpus. The returned slice
// is immutable by convention; appends never mutate it in place.
func (r *Repo) Snapshot() []domain.Chunk {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chunks
}

// Len returns the number of chunks in the corpus.
func (r *Repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chunks)
}

// Dim returns the vector dimensionality, 0 for an empty corpus.
func (r *Repo) Dim() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dim
}

// persist stages both files and renames them into place. A crash between the
// two renames leaves a length mismatch that Load rejects on the next start.
func (r *Repo) persist(chunks []domain.Chunk, dim int) error {
	if err := os.MkdirAll(r.dir, 0o750); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}

	vecPath := filepath.Join(r.dir, vectorsFile)
	metaPath := filepath.Join(r.dir, metadataFile)

	if err := stageFile(vecPath, encodeVectors(chunks, dim)); err != nil {
		return fmt.Errorf("stage index: %w", err)
	}

	metaData, err := json.Marshal(toMetadata(chunks))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := stageFile(metaPath, metaData); err != nil {
		return fmt.Errorf("stage metadata: %w", err)
	}

	if err := os.Rename(vecPath+".tmp", vecPath); err != nil {
		return fmt.Errorf("commit index: %w", err)
	}
	if err := os.Rename(metaPath+".tmp", metaPath); err != nil {
		return fmt.Errorf("commit metadata: %w", err)
	}
	return nil
}

func stageFile(path string, data []byte) error {
	return os.WriteFile(path+".tmp", data, 0o640)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
