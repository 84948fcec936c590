package parser

import "strings"

const (
	DefaultChunkSize    = 500 // words
	DefaultChunkOverlap = 50  // words
)

// Chunker splits page text into overlapping windows of whitespace-delimited words.
type Chunker struct {
	Size    int
	Overlap int
}

// NewChunker returns a Chunker, using the default window when size is not positive.
func NewChunker(size, overlap int) Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return Chunker{Size: size, Overlap: overlap}
}

// Step is the distance between the first words of consecutive windows.
// It is never below 1, so an overlap >= size still terminates.
func (c Chunker) Step() int {
	return max(1, c.size()-c.Overlap)
}

func (c Chunker) size() int {
	if c.Size <= 0 {
		return DefaultChunkSize
	}
	return c.Size
}

// Chunk returns windows starting at word 0, Step, 2*Step, ... until the start
// passes the last word. The final window may hold fewer than Size words.
func (c Chunker) Chunk(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	size, step := c.size(), c.Step()

	chunks := make([]string, 0, (len(words)+step-1)/step)
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
