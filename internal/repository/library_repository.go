package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"grundbank/internal/model"
)

type LibraryRepository struct {
	db *gorm.DB
}

func NewLibraryRepository(db *gorm.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

func (r *LibraryRepository) Create(lib *model.Library) error {
	if err := r.db.Create(lib).Error; err != nil {
		return fmt.Errorf("create library failed: %w", err)
	}
	return nil
}

func (r *LibraryRepository) GetByID(id string) (*model.Library, error) {
	var lib model.Library
	if err := r.db.Where("id = ?", id).First(&lib).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get library failed: %w", err)
	}
	return &lib, nil
}

func (r *LibraryRepository) ListByOwnerID(ownerID string) ([]model.Library, error) {
	var list []model.Library
	if err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list libraries failed: %w", err)
	}
	return list, nil
}

func (r *LibraryRepository) ListByIDs(ids []string) ([]model.Library, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []model.Library
	if err := r.db.Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list libraries by ids failed: %w", err)
	}
	return list, nil
}

func (r *LibraryRepository) UpdatePriority(id string, priority int) error {
	err := r.db.Model(&model.Library{}).Where("id = ?", id).
		Update("priority", model.ClampPriority(priority)).Error
	if err != nil {
		return fmt.Errorf("update library priority failed: %w", err)
	}
	return nil
}

func (r *LibraryRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&model.Library{}).Error; err != nil {
		return fmt.Errorf("delete library failed: %w", err)
	}
	return nil
}
