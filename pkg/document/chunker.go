package document

import (
	"regexp"
	"strings"
)

const (
	defaultSentencesPerChunk = 5
	defaultOverlapSentences  = 1
)

// Chunk is one contiguous slice of a document's text.
type Chunk struct {
	Index int
	Text  string
}

// Chunker splits text into overlapping sentence-based chunks. Overlap
// keeps context that straddles a chunk boundary retrievable from both
// sides.
type Chunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

// NewChunker creates a sentence chunker. Non-positive sizes fall back
// to defaults.
func NewChunker(sentencesPerChunk, overlapSentences int) *Chunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = defaultSentencesPerChunk
	}
	if overlapSentences < 0 {
		overlapSentences = defaultOverlapSentences
	}
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &Chunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk splits text into chunks. Whitespace-only input yields nil.
func (c *Chunker) Chunk(text string) []Chunk {
	sentences := c.splitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}

	var chunks []Chunk
	step := c.sentencesPerChunk - c.overlapSentences
	for i, idx := 0, 0; i < len(sentences); i, idx = i+step, idx+1 {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		joined := strings.TrimSpace(strings.Join(sentences[i:end], " "))
		if joined != "" {
			chunks = append(chunks, Chunk{Index: idx, Text: joined})
		}
		if end == len(sentences) {
			break
		}
	}
	return chunks
}
