package repository

import (
	"fmt"

	"gorm.io/gorm"

	"grundbank/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) CreateBatch(chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.Create(&chunks).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) ListByLibraryID(libraryID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Where("library_id = ?", libraryID).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by library failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) CountByLibraryID(libraryID string) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Chunk{}).Where("library_id = ?", libraryID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunks by library failed: %w", err)
	}
	return count, nil
}

func (r *ChunkRepository) DeleteByDocID(docID string) error {
	if err := r.db.Where("doc_id = ?", docID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) DeleteByLibraryID(libraryID string) error {
	if err := r.db.Where("library_id = ?", libraryID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by library failed: %w", err)
	}
	return nil
}
