package repository

import (
	"fmt"

	"gorm.io/gorm"

	"grundbank/internal/model"
)

type ImageAssetRepository struct {
	db *gorm.DB
}

func NewImageAssetRepository(db *gorm.DB) *ImageAssetRepository {
	return &ImageAssetRepository{db: db}
}

func (r *ImageAssetRepository) CreateBatch(assets []model.ImageAsset) error {
	if len(assets) == 0 {
		return nil
	}
	if err := r.db.Create(&assets).Error; err != nil {
		return fmt.Errorf("create image assets failed: %w", err)
	}
	return nil
}

func (r *ImageAssetRepository) ListByLibraryIDs(libraryIDs []string) ([]model.ImageAsset, error) {
	if len(libraryIDs) == 0 {
		return nil, nil
	}
	var assets []model.ImageAsset
	if err := r.db.Where("library_id IN ?", libraryIDs).Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("list image assets failed: %w", err)
	}
	return assets, nil
}

func (r *ImageAssetRepository) DeleteByDocID(docID string) error {
	if err := r.db.Where("source_doc_id = ?", docID).Delete(&model.ImageAsset{}).Error; err != nil {
		return fmt.Errorf("delete image assets by document failed: %w", err)
	}
	return nil
}

func (r *ImageAssetRepository) DeleteByLibraryID(libraryID string) error {
	if err := r.db.Where("library_id = ?", libraryID).Delete(&model.ImageAsset{}).Error; err != nil {
		return fmt.Errorf("delete image assets by library failed: %w", err)
	}
	return nil
}
