package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("kort text", 1000, 150)
	require.Len(t, chunks, 1)
	assert.Equal(t, "kort text", chunks[0])
}

func TestChunkTextEmptyInput(t *testing.T) {
	assert.Empty(t, ChunkText("", 1000, 150))
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := ChunkText(text, 100, 20)
	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	// Step is size minus overlap: 80, so the tail chunks shrink.
	assert.Len(t, chunks[2], 90)
	assert.Len(t, chunks[3], 10)
}

func TestChunkTextRuneSafety(t *testing.T) {
	text := strings.Repeat("å", 150)
	chunks := ChunkText(text, 100, 10)
	for _, chunk := range chunks {
		assert.True(t, strings.HasPrefix(chunk, "å"))
		for _, r := range chunk {
			assert.Equal(t, 'å', r)
		}
	}
}

func TestChunkTextDegenerateOverlap(t *testing.T) {
	// Overlap >= size must not loop forever.
	chunks := ChunkText(strings.Repeat("x", 300), 100, 100)
	assert.NotEmpty(t, chunks)
}

func TestChunkPagesKeepsPageNumbers(t *testing.T) {
	pages := []string{"sida ett", "", "sida tre"}
	chunks := ChunkPages(pages, 1000, 150)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "sida ett", chunks[0].Text)
	assert.Equal(t, 3, chunks[1].Page)
}

func TestChunkPagesSplitsLongPage(t *testing.T) {
	pages := []string{strings.Repeat("b", 1500)}
	chunks := ChunkPages(pages, 1000, 150)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 1, chunks[1].Page)
}
