package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(w, " ")
}

func TestChunk_Empty(t *testing.T) {
	c := NewChunker(500, 50)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk(" \n\t  "))
}

func TestChunk_CountsAndOverlap(t *testing.T) {
	pairs := [][2]int{{500, 50}, {10, 3}, {7, 0}, {5, 4}, {1, 0}}
	for _, p := range pairs {
		size, overlap := p[0], p[1]
		c := NewChunker(size, overlap)
		step := size - overlap
		for _, n := range []int{1, 2, size - 1, size, size + 1, 3*size + 7, 1200} {
			if n <= 0 {
				continue
			}
			name := fmt.Sprintf("W=%d O=%d n=%d", size, overlap, n)
			chunks := c.Chunk(words(n))
			require.Len(t, chunks, (n+step-1)/step, name)

			for i, chunk := range chunks {
				got := strings.Fields(chunk)
				assert.LessOrEqual(t, len(got), size, name)
				assert.Equal(t, fmt.Sprintf("w%d", i*step), got[0], name)

				if i+1 < len(chunks) {
					next := strings.Fields(chunks[i+1])
					if len(got) == size && len(next) == size {
						assert.Equal(t, got[size-overlap:], next[:overlap], name)
					}
				}
			}
		}
	}
}

func TestChunk_NoGapBetweenWindows(t *testing.T) {
	c := NewChunker(4, 1)
	chunks := c.Chunk(words(10))
	require.Equal(t, []string{
		"w0 w1 w2 w3",
		"w3 w4 w5 w6",
		"w6 w7 w8 w9",
		"w9",
	}, chunks)
}

func TestChunk_OverlapNotBelowWindowIsClamped(t *testing.T) {
	c := NewChunker(3, 5)
	assert.Equal(t, 1, c.Step())
	chunks := c.Chunk(words(4))
	assert.Equal(t, []string{"w0 w1 w2", "w1 w2 w3", "w2 w3", "w3"}, chunks)
}

func TestChunk_Defaults(t *testing.T) {
	c := NewChunker(0, -3)
	assert.Equal(t, DefaultChunkSize, c.Size)
	assert.Equal(t, 0, c.Overlap)

	var zero Chunker
	assert.Equal(t, DefaultChunkSize, zero.Step())
	assert.Len(t, zero.Chunk(words(1001)), 3)
}

func TestChunk_CollapsesWhitespace(t *testing.T) {
	c := NewChunker(3, 0)
	assert.Equal(t, []string{"a b c", "d"}, c.Chunk("a\n\nb\tc   d"))
}
