package vectorindex

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"grundbank/internal/model"
)

// MySQLIndex ranks a library's chunk rows by cosine similarity in process.
// Libraries are small enough (thousands of chunks) that a full scan per
// query is acceptable; a dedicated vector store can replace this behind the
// same interface.
type MySQLIndex struct {
	db *gorm.DB
}

func NewMySQLIndex(db *gorm.DB) *MySQLIndex {
	return &MySQLIndex{db: db}
}

// Add is a no-op: the chunk repository already persisted the rows this
// backend searches.
func (idx *MySQLIndex) Add(_ context.Context, _ string, _ []Record) error {
	return nil
}

func (idx *MySQLIndex) Nearest(ctx context.Context, libraryID string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	var chunks []model.Chunk
	if err := idx.db.WithContext(ctx).Where("library_id = ?", libraryID).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("load chunks for library %s failed: %w", libraryID, err)
	}

	matches := make([]Match, 0, len(chunks))
	for i := range chunks {
		sim := CosineSimilarity(vector, chunks[i].EmbeddingVector())
		matches = append(matches, Match{
			DocID:      chunks[i].DocID,
			Filename:   chunks[i].Filename,
			Page:       chunks[i].Page,
			Text:       chunks[i].Text,
			Similarity: sim,
		})
	}
	return TopKMatches(matches, k), nil
}

func (idx *MySQLIndex) DeleteDocument(ctx context.Context, libraryID, docID string) error {
	err := idx.db.WithContext(ctx).
		Where("library_id = ? AND doc_id = ?", libraryID, docID).
		Delete(&model.Chunk{}).Error
	if err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

func (idx *MySQLIndex) DeleteLibrary(ctx context.Context, libraryID string) error {
	err := idx.db.WithContext(ctx).
		Where("library_id = ?", libraryID).
		Delete(&model.Chunk{}).Error
	if err != nil {
		return fmt.Errorf("delete chunks by library failed: %w", err)
	}
	return nil
}
