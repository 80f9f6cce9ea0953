package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"grundbank/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByLibraryID(libraryID string) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("library_id = ?", libraryID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// UpdateProgress writes an ingestion checkpoint. Terminal states go through
// MarkCompleted/MarkFailed instead so progress writes can never resurrect a
// finished document.
func (r *DocumentRepository) UpdateProgress(id string, processed, total, progress int) error {
	err := r.db.Model(&model.Document{}).
		Where("id = ? AND status = ?", id, model.DocumentProcessing).
		Updates(map[string]interface{}{
			"processed_chunks": processed,
			"total_chunks":     total,
			"progress":         progress,
		}).Error
	if err != nil {
		return fmt.Errorf("update document progress failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkCompleted(id string, updates map[string]interface{}) error {
	fields := map[string]interface{}{
		"status":   model.DocumentCompleted,
		"progress": 100,
		"error":    "",
	}
	for k, v := range updates {
		fields[k] = v
	}
	err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		return fmt.Errorf("mark document completed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(id string, reason string) error {
	err := r.db.Model(&model.Document{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": model.DocumentFailed,
			"error":  reason,
		}).Error
	if err != nil {
		return fmt.Errorf("mark document failed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) DeleteByLibraryID(libraryID string) error {
	if err := r.db.Where("library_id = ?", libraryID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete documents by library failed: %w", err)
	}
	return nil
}
