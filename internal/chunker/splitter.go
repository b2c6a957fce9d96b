// Package chunker splits extracted document text into overlapping,
// sentence-aligned segments for ingestion.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// Splitter breaks text into chunks of roughly targetSize characters,
// preferring sentence boundaries. Consecutive chunks share the trailing
// overlap characters of their predecessor.
type Splitter struct {
	targetSize int
	overlap    int
}

// New creates a Splitter. overlap must be smaller than targetSize; both are
// validated here so a bad configuration fails at startup, not per document.
func New(targetSize, overlap int) (*Splitter, error) {
	if targetSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", targetSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
	}
	if overlap >= targetSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", overlap, targetSize)
	}
	return &Splitter{targetSize: targetSize, overlap: overlap}, nil
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+\s*`)

// Split returns the ordered chunk sequence for text. Empty input yields nil;
// non-empty input never yields an empty chunk.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	base := s.pack(sentences(text))
	if len(base) <= 1 || s.overlap == 0 {
		return base
	}

	// Prefix each chunk (except the first) with the trailing overlap runes of
	// its predecessor so neighbours always share a verifiable boundary region.
	out := make([]string, 0, len(base))
	out = append(out, base[0])
	for i := 1; i < len(base); i++ {
		out = append(out, tail(base[i-1], s.overlap)+" "+base[i])
	}
	return out
}

// pack accumulates sentences into chunks of at most targetSize runes.
// A single sentence longer than targetSize is force-split into fixed windows
// advancing by targetSize-overlap.
func (s *Splitter) pack(sents []string) []string {
	var chunks []string
	var current string

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
		current = ""
	}

	for _, sent := range sents {
		if runeLen(current)+runeLen(sent) <= s.targetSize {
			current += sent
			continue
		}
		flush()
		if runeLen(sent) > s.targetSize {
			chunks = append(chunks, s.forceSplit(sent)...)
			continue
		}
		current = sent
	}
	flush()
	return chunks
}

// forceSplit windows an oversized sentence into targetSize-rune slices.
func (s *Splitter) forceSplit(sent string) []string {
	runes := []rune(sent)
	step := s.targetSize - s.overlap

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.targetSize
		if end > len(runes) {
			end = len(runes)
		}
		if window := strings.TrimSpace(string(runes[start:end])); window != "" {
			out = append(out, window)
		}
	}
	return out
}

// sentences splits text at sentence-ending punctuation, keeping the
// punctuation with the preceding sentence. Trailing text without terminal
// punctuation becomes its own sentence.
func sentences(text string) []string {
	locs := sentenceRe.FindAllStringIndex(text, -1)

	var out []string
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			out = append(out, text[last:loc[0]])
		}
		out = append(out, text[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

func runeLen(s string) int { return len([]rune(s)) }

// tail returns the last n runes of s.
func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
