package ingest

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 150
)

// PageChunk is one chunk of text with the page it came from. Page is 1-based
// for paged formats and 0 for flat text.
type PageChunk struct {
	Page int
	Text string
}

// ChunkText splits text into rune-based windows of size with overlap runes
// shared between consecutive chunks.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		i += size - overlap
		if i >= len(runes) {
			break
		}
	}
	return chunks
}

// ChunkPages chunks each page separately so every chunk keeps a page number.
// Empty pages produce no chunks.
func ChunkPages(pages []string, size, overlap int) []PageChunk {
	var out []PageChunk
	for i, page := range pages {
		for _, text := range ChunkText(page, size, overlap) {
			if text == "" {
				continue
			}
			out = append(out, PageChunk{Page: i + 1, Text: text})
		}
	}
	return out
}
