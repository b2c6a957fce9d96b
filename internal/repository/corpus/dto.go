package corpus

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/kailas-cloud/guardrag/internal/domain"
)

// metaRecord is the persisted per-chunk label record, parallel to one vector
// row in the index file.
type metaRecord struct {
	ChunkID       string   `json:"chunk_id"`
	Source        string   `json:"source"`
	Text          string   `json:"text"`
	Access        string   `json:"access"`
	Tags          []string `json:"tags,omitempty"`
	SentinelLabel string   `json:"sentinel_label,omitempty"`
	SentinelScore float64  `json:"sentinel_score,omitempty"`
}

type metaEnvelope struct {
	Chunks []metaRecord `json:"chunks"`
}

func toMetadata(chunks []domain.Chunk) metaEnvelope {
	records := make([]metaRecord, len(chunks))
	for i, c := range chunks {
		records[i] = metaRecord{
			ChunkID:       c.ChunkID,
			Source:        c.Source,
			Text:          c.Text,
			Access:        string(c.Access),
			Tags:          c.Tags,
			SentinelLabel: c.SentinelLabel,
			SentinelScore: c.SentinelScore,
		}
	}
	return metaEnvelope{Chunks: records}
}

func (r metaRecord) toDomain() (domain.Chunk, error) {
	label := domain.AccessLabel(r.Access)
	if !label.Valid() {
		return domain.Chunk{}, fmt.Errorf(
			"chunk %s has access label %q: %w", r.ChunkID, r.Access, domain.ErrCorpusCorrupted,
		)
	}
	return domain.Chunk{
		ChunkID:       r.ChunkID,
		Source:        r.Source,
		Text:          r.Text,
		Access:        label,
		Tags:          r.Tags,
		SentinelLabel: r.SentinelLabel,
		SentinelScore: r.SentinelScore,
	}, nil
}

func readMetadata(path string) ([]metaRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var env metaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", domain.ErrCorpusCorrupted)
	}
	return env.Chunks, nil
}

// Index file layout: uint32 dim, uint32 count, then count*dim little-endian
// float32 values.
const vectorHeaderSize = 8

func encodeVectors(chunks []domain.Chunk, dim int) []byte {
	buf := make([]byte, vectorHeaderSize+len(chunks)*dim*4)
	binary.LittleEndian.PutUint32(buf[0:], uint32(dim))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(chunks)))

	off := vectorHeaderSize
	for _, c := range chunks {
		for _, f := range c.Vector {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
			off += 4
		}
	}
	return buf
}

func readVectors(path string) ([][]float32, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read index: %w", err)
	}
	if len(data) < vectorHeaderSize {
		return nil, 0, fmt.Errorf("index header truncated: %w", domain.ErrCorpusCorrupted)
	}

	dim := int(binary.LittleEndian.Uint32(data[0:]))
	count := int(binary.LittleEndian.Uint32(data[4:]))
	if dim <= 0 && count > 0 {
		return nil, 0, fmt.Errorf("index dimension %d: %w", dim, domain.ErrCorpusCorrupted)
	}
	if len(data) != vectorHeaderSize+count*dim*4 {
		return nil, 0, fmt.Errorf(
			"index payload is %d bytes, header promises %d vectors of %d dims: %w",
			len(data)-vectorHeaderSize, count, dim, domain.ErrCorpusCorrupted,
		)
	}

	vectors := make([][]float32, count)
	off := vectorHeaderSize
	for i := range vectors {
		row := make([]float32, dim)
		for j := range row {
			row[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = row
	}
	return vectors, dim, nil
}
