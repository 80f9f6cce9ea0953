package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"grundbank/internal/embedding"
	"grundbank/internal/model"
	"grundbank/internal/pkg/docxextract"
	"grundbank/internal/pkg/pdfextract"
	"grundbank/internal/repository"
	"grundbank/internal/scrub"
	"grundbank/internal/vectorindex"
	"grundbank/internal/vision"
)

const (
	progressCheckpointEvery = 50
	persistBatchSize        = 50
	maxImagesPerDocument    = 40
)

// Pipeline turns an uploaded file into indexed chunks and image assets.
// It is the sole writer of document status and progress.
type Pipeline struct {
	docs      *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	images    *repository.ImageAssetRepository
	index     vectorindex.Index
	embedder  embedding.Provider
	scrubber  *scrub.Scrubber
	describer vision.Describer

	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

func NewPipeline(
	docs *repository.DocumentRepository,
	chunks *repository.ChunkRepository,
	images *repository.ImageAssetRepository,
	index vectorindex.Index,
	embedder embedding.Provider,
	scrubber *scrub.Scrubber,
	describer vision.Describer,
	chunkSize, chunkOverlap int,
	logger *zap.Logger,
) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = defaultChunkOverlap
	}
	return &Pipeline{
		docs:         docs,
		chunks:       chunks,
		images:       images,
		index:        index,
		embedder:     embedder,
		scrubber:     scrubber,
		describer:    describer,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		logger:       logger,
	}
}

// Process runs the full ingestion for one task and always leaves the
// document in a terminal state. The temp file is removed regardless of
// outcome.
func (p *Pipeline) Process(ctx context.Context, task Task) error {
	defer func() {
		if task.FilePath == "" {
			return
		}
		if err := os.Remove(task.FilePath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("remove temp upload failed",
				zap.String("path", task.FilePath), zap.Error(err))
		}
	}()

	err := p.process(ctx, task)
	if err != nil {
		p.logger.Error("ingestion failed",
			zap.String("doc_id", task.DocID),
			zap.String("filename", task.Filename),
			zap.Error(err))
		if markErr := p.docs.MarkFailed(task.DocID, err.Error()); markErr != nil {
			p.logger.Error("mark document failed errored", zap.Error(markErr))
		}
		return err
	}
	return nil
}

func (p *Pipeline) process(ctx context.Context, task Task) error {
	p.logger.Info("starting ingestion",
		zap.String("doc_id", task.DocID),
		zap.String("filename", task.Filename),
		zap.String("library_id", task.LibraryID))

	ext := strings.ToLower(filepath.Ext(task.FilePath))
	data, err := os.ReadFile(task.FilePath)
	if err != nil {
		return fmt.Errorf("read upload failed: %w", err)
	}

	pages, err := loadPages(ext, data)
	if err != nil {
		return err
	}

	scrubFindings := 0
	scrubCards := 0
	if task.NameScrub {
		if !p.scrubber.IsConfigured() {
			return scrub.ErrNotConfigured
		}
		nameMap := make(map[string]string, len(task.InitialNameMap))
		for k, v := range task.InitialNameMap {
			nameMap[k] = v
		}
		for i := range pages {
			if strings.TrimSpace(pages[i]) == "" {
				continue
			}
			scrubbed, findings, updatedMap, err := p.scrubber.ScrubPersonNames(ctx, pages[i], nameMap)
			if err != nil {
				return fmt.Errorf("name scrub failed on page %d: %w", i+1, err)
			}
			pages[i] = scrubbed
			nameMap = updatedMap
			scrubFindings += len(findings)
		}
		scrubCards = len(nameMap)
	}

	chunks := ChunkPages(pages, p.chunkSize, p.chunkOverlap)
	p.logger.Info("document chunked",
		zap.String("doc_id", task.DocID), zap.Int("chunks", len(chunks)))

	imagesIndexed := 0
	if task.InterpretImages && ext == ".pdf" && p.describer != nil && p.describer.Enabled() {
		imagesIndexed, err = p.indexImages(ctx, task, data, pages)
		if err != nil {
			// Image failures degrade, text indexing continues.
			p.logger.Warn("image indexing failed",
				zap.String("doc_id", task.DocID), zap.Error(err))
		}
	}

	if len(chunks) > 0 {
		if err := p.embedAndPersist(ctx, task, chunks); err != nil {
			return err
		}
	}

	return p.docs.MarkCompleted(task.DocID, map[string]interface{}{
		"total_chunks":     len(chunks),
		"processed_chunks": len(chunks),
		"images_indexed":   imagesIndexed,
		"has_images":       imagesIndexed > 0,
		"scrub_findings":   scrubFindings,
		"scrub_cards":      scrubCards,
	})
}

func loadPages(ext string, data []byte) ([]string, error) {
	switch ext {
	case ".pdf":
		pages, err := pdfextract.ExtractPages(data)
		if err != nil {
			return nil, fmt.Errorf("extract pdf failed: %w", err)
		}
		return pages, nil
	case ".docx":
		text, err := docxextract.ExtractText(data)
		if err != nil {
			return nil, fmt.Errorf("extract docx failed: %w", err)
		}
		return []string{text}, nil
	case ".txt", ".md":
		return []string{string(data)}, nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// embedAndPersist embeds chunk texts in one batch (falling back to
// per-chunk embedding when the batch call fails) and persists them in
// slices of 50 with a progress checkpoint after each slice.
func (p *Pipeline) embedAndPersist(ctx context.Context, task Task, chunks []PageChunk) error {
	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}

	if err := p.docs.UpdateProgress(task.DocID, 0, len(chunks), 0); err != nil {
		p.logger.Warn("initial progress write failed", zap.Error(err))
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		p.logger.Warn("batch embedding failed, falling back to individual",
			zap.Error(err))
		vectors = make([][]float32, len(texts))
		for i, text := range texts {
			vec, qErr := p.embedder.EmbedQuery(ctx, text)
			if qErr != nil {
				return fmt.Errorf("embed chunk %d failed: %w", i, qErr)
			}
			vectors[i] = vec
		}
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count %d does not match chunk count %d", len(vectors), len(chunks))
	}

	total := len(chunks)
	for start := 0; start < total; start += persistBatchSize {
		end := start + persistBatchSize
		if end > total {
			end = total
		}

		rows := make([]model.Chunk, 0, end-start)
		records := make([]vectorindex.Record, 0, end-start)
		for i := start; i < end; i++ {
			row := model.Chunk{
				LibraryID: task.LibraryID,
				DocID:     task.DocID,
				Filename:  task.Filename,
				Page:      chunks[i].Page,
				Text:      chunks[i].Text,
			}
			row.SetEmbedding(vectors[i])
			rows = append(rows, row)
			records = append(records, vectorindex.Record{
				ID:       uuid.NewString(),
				DocID:    task.DocID,
				Filename: task.Filename,
				Page:     chunks[i].Page,
				Text:     chunks[i].Text,
				Vector:   vectors[i],
			})
		}
		if err := p.chunks.CreateBatch(rows); err != nil {
			return err
		}
		if err := p.index.Add(ctx, task.LibraryID, records); err != nil {
			return fmt.Errorf("index chunks failed: %w", err)
		}

		processed := end
		if processed%progressCheckpointEvery == 0 || processed == total {
			pct := processed * 100 / total
			if err := p.docs.UpdateProgress(task.DocID, processed, total, pct); err != nil {
				p.logger.Warn("progress checkpoint failed", zap.Error(err))
			}
		}
	}
	return nil
}

// indexImages extracts embedded JPEGs, describes each one, derives tags and
// section hints from the description plus nearby page text, and persists the
// assets. A single bad image is skipped, not fatal.
func (p *Pipeline) indexImages(ctx context.Context, task Task, data []byte, pages []string) (int, error) {
	blobs := pdfextract.ExtractJPEGImages(data, maxImagesPerDocument)
	if len(blobs) == 0 {
		return 0, nil
	}

	var assets []model.ImageAsset
	for i, blob := range blobs {
		// Blobs arrive in file order, which approximates page order.
		page := i + 1
		if page > len(pages) {
			page = len(pages)
		}
		pageText := ""
		if page >= 1 && page <= len(pages) {
			pageText = normalizeSpace(pages[page-1])
		}

		description, err := p.describer.Describe(ctx, blob)
		if err != nil || strings.TrimSpace(description) == "" {
			p.logger.Warn("describe image failed",
				zap.String("doc_id", task.DocID), zap.Int("image", i+1), zap.Error(err))
			continue
		}

		tags := ExtractImageTags(description, pageText)
		hints := InferSectionHints(tags, description, pageText)
		excerpt := pageText
		if runes := []rune(excerpt); len(runes) > maxContextExcerpt {
			excerpt = string(runes[:maxContextExcerpt])
		}

		semanticText := fmt.Sprintf("%s\nTaggar: %s\nSektionstips: %s",
			description, strings.Join(tags, ", "), strings.Join(hints, ", "))
		vector, err := p.embedder.EmbedQuery(ctx, semanticText)
		if err != nil {
			p.logger.Warn("embed image description failed", zap.Error(err))
			vector = nil
		}

		asset := model.ImageAsset{
			ID:             uuid.NewString(),
			LibraryID:      task.LibraryID,
			SourceDocID:    task.DocID,
			SourceDocument: task.Filename,
			Page:           page,
			Description:    description,
			ContextExcerpt: excerpt,
		}
		asset.SetTagList(tags)
		asset.SetSectionHintList(hints)
		asset.SetEmbedding(vector)
		assets = append(assets, asset)
	}

	if err := p.images.CreateBatch(assets); err != nil {
		return 0, err
	}
	return len(assets), nil
}
