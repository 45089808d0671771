package chunker

import "strings"

const (
	// DefaultMaxChars keeps every chunk well inside the embedding model's
	// context window.
	DefaultMaxChars = 1000
	// DefaultOverlapChars is carried from the tail of each chunk into the next
	// so retrieval does not lose context at chunk boundaries.
	DefaultOverlapChars = 100
)

// WordChunker splits text into word-boundary chunks with a character overlap.
// Words longer than the chunk size become their own chunk rather than being
// split mid-word.
type WordChunker struct {
	maxChars     int
	overlapChars int
}

func NewWordChunker(maxChars, overlapChars int) *WordChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = DefaultOverlapChars
	}
	return &WordChunker{
		maxChars:     maxChars,
		overlapChars: overlapChars,
	}
}

// Split returns the chunk texts in document order. Whitespace-only input
// yields nil.
func (c *WordChunker) Split(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+1+len(word) > c.maxChars {
			chunk := current.String()
			chunks = append(chunks, chunk)
			current.Reset()
			if tail := overlapTail(chunk, c.overlapChars); tail != "" {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// overlapTail returns the last whole words of chunk totaling at most n chars.
func overlapTail(chunk string, n int) string {
	if n <= 0 || len(chunk) == 0 {
		return ""
	}
	if len(chunk) <= n {
		return chunk
	}
	cut := chunk[len(chunk)-n:]
	if idx := strings.IndexByte(cut, ' '); idx >= 0 {
		return strings.TrimSpace(cut[idx+1:])
	}
	return strings.TrimSpace(cut)
}
