package chi

import (
	"github.com/kailas-cloud/guardrag/internal/domain"
	queryuc "github.com/kailas-cloud/guardrag/internal/usecase/query"
)

// Error codes returned in the "code" field of error responses.
const (
	codeBadRequest         = "bad_request"
	codeValidationFailed   = "validation_failed"
	codeInvalidDocument    = "invalid_document"
	codeEmbeddingProvider  = "embedding_provider_error"
	codeGenerationProvider = "generation_provider_error"
	codeTraceNotFound      = "trace_not_found"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type queryRequest struct {
	Query        string `json:"query"`
	Role         string `json:"role"`
	ChunkIndices []int  `json:"chunk_indices,omitempty"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	Status  string   `json:"status"`
}

type ingestRequest struct {
	DocID  string `json:"doc_id,omitempty"`
	Source string `json:"source,omitempty"`
	Text   string `json:"text"`
}

type ingestResponse struct {
	DocID       string `json:"doc_id"`
	ChunksAdded int    `json:"chunks_added"`
	AdminChunks int    `json:"admin_chunks"`
}

type chunkMetadata struct {
	Index         int      `json:"index"`
	ChunkID       string   `json:"chunk_id"`
	Source        string   `json:"source"`
	Access        string   `json:"access"`
	Tags          []string `json:"tags,omitempty"`
	SentinelLabel string   `json:"sentinel_label,omitempty"`
	SentinelScore float64  `json:"sentinel_score,omitempty"`
	Snippet       string   `json:"snippet"`
}

type metadataResponse struct {
	Total  int             `json:"total"`
	Chunks []chunkMetadata `json:"chunks"`
}

type hardCheckDTO struct {
	Tags        []string `json:"tags"`
	ForcedAdmin bool     `json:"forced_admin"`
}

type sentinelCheckDTO struct {
	Label     string  `json:"label,omitempty"`
	Score     float64 `json:"score"`
	Available bool    `json:"available"`
}

type accessDecisionDTO struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason,omitempty"`
}

type traceResponse struct {
	Query          string              `json:"query"`
	Role           string              `json:"role"`
	HardFilter     hardCheckDTO        `json:"hard_filter"`
	Sentinel       sentinelCheckDTO    `json:"sentinel"`
	Decisions      []accessDecisionDTO `json:"decisions"`
	FilteringLog   []string            `json:"filtering_log"`
	Status         string              `json:"status"`
	Reason         string              `json:"reason,omitempty"`
	ElapsedSeconds float64             `json:"elapsed_seconds"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Chunks int               `json:"chunks"`
}

const snippetLen = 100

func snippet(text string) string {
	r := []rune(text)
	if len(r) <= snippetLen {
		return text
	}
	return string(r[:snippetLen])
}

func metadataFromChunks(chunks []domain.Chunk) metadataResponse {
	out := metadataResponse{
		Total:  len(chunks),
		Chunks: make([]chunkMetadata, 0, len(chunks)),
	}
	for i, c := range chunks {
		out.Chunks = append(out.Chunks, chunkMetadata{
			Index:         i,
			ChunkID:       c.ChunkID,
			Source:        c.Source,
			Access:        string(c.Access),
			Tags:          c.Tags,
			SentinelLabel: c.SentinelLabel,
			SentinelScore: c.SentinelScore,
			Snippet:       snippet(c.Text),
		})
	}
	return out
}

func traceToResponse(tr queryuc.Trace) traceResponse {
	resp := traceResponse{
		Query: tr.Query,
		Role:  string(tr.Role),
		HardFilter: hardCheckDTO{
			Tags:        tr.Check.Hard.Tags,
			ForcedAdmin: tr.Check.Hard.ForcedAdmin,
		},
		Sentinel: sentinelCheckDTO{
			Label:     tr.Check.Sentinel.Label,
			Score:     tr.Check.Sentinel.Score,
			Available: tr.Check.Sentinel.Available,
		},
		Decisions:      make([]accessDecisionDTO, 0, len(tr.Decisions)),
		FilteringLog:   tr.FilteringLog,
		Status:         tr.Status,
		Reason:         tr.Reason,
		ElapsedSeconds: tr.Elapsed.Seconds(),
	}
	for _, d := range tr.Decisions {
		resp.Decisions = append(resp.Decisions, accessDecisionDTO{
			ChunkID: d.ChunkID,
			Score:   d.Score,
			Allowed: d.Allowed,
			Reason:  d.Reason,
		})
	}
	return resp
}
