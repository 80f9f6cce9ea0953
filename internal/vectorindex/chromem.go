package vectorindex

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

var collectionSafeRe = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

func collectionName(libraryID string) string {
	return "library_" + collectionSafeRe.ReplaceAllString(libraryID, "_")
}

// ChromemIndex keeps per-library collections in an embedded chromem-go
// store. Embeddings are always supplied by the caller, so no embedding
// function is ever invoked by the store itself.
type ChromemIndex struct {
	mu sync.Mutex
	db *chromem.DB
}

func NewChromemIndex(path string, compress bool) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem store failed: %w", err)
	}
	return &ChromemIndex{db: db}, nil
}

// NewChromemMemoryIndex is used by tests and ephemeral deployments.
func NewChromemMemoryIndex() *ChromemIndex {
	return &ChromemIndex{db: chromem.NewDB()}
}

func (idx *ChromemIndex) collection(libraryID string) (*chromem.Collection, error) {
	col, err := idx.db.GetOrCreateCollection(collectionName(libraryID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get chromem collection failed: %w", err)
	}
	return col, nil
}

func (idx *ChromemIndex) Add(ctx context.Context, libraryID string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	col, err := idx.collection(libraryID)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Vector,
			Metadata: map[string]string{
				"doc_id":   rec.DocID,
				"filename": rec.Filename,
				"page":     strconv.Itoa(rec.Page),
			},
		}
	}
	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("add documents to chromem failed: %w", err)
	}
	return nil
}

func (idx *ChromemIndex) Nearest(ctx context.Context, libraryID string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()

	col, err := idx.collection(libraryID)
	if err != nil {
		return nil, err
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := col.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query failed: %w", err)
	}
	matches := make([]Match, 0, len(results))
	for _, res := range results {
		page, _ := strconv.Atoi(res.Metadata["page"])
		matches = append(matches, Match{
			DocID:      res.Metadata["doc_id"],
			Filename:   res.Metadata["filename"],
			Page:       page,
			Text:       res.Content,
			Similarity: res.Similarity,
		})
	}
	return matches, nil
}

func (idx *ChromemIndex) DeleteDocument(ctx context.Context, libraryID, docID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	col, err := idx.collection(libraryID)
	if err != nil {
		return err
	}
	if col.Count() == 0 {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{"doc_id": docID}, nil); err != nil {
		return fmt.Errorf("delete chromem documents failed: %w", err)
	}
	return nil
}

func (idx *ChromemIndex) DeleteLibrary(_ context.Context, libraryID string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.db.DeleteCollection(collectionName(libraryID)); err != nil {
		return fmt.Errorf("delete chromem collection failed: %w", err)
	}
	return nil
}
