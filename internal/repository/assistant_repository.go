package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"grundbank/internal/model"
)

type AssistantRepository struct {
	db *gorm.DB
}

func NewAssistantRepository(db *gorm.DB) *AssistantRepository {
	return &AssistantRepository{db: db}
}

func (r *AssistantRepository) Create(assistant *model.Assistant) error {
	if err := r.db.Create(assistant).Error; err != nil {
		return fmt.Errorf("create assistant failed: %w", err)
	}
	return nil
}

func (r *AssistantRepository) GetByID(id string) (*model.Assistant, error) {
	var a model.Assistant
	if err := r.db.Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get assistant failed: %w", err)
	}
	return &a, nil
}

func (r *AssistantRepository) ListByOwnerID(ownerID string) ([]model.Assistant, error) {
	var list []model.Assistant
	if err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list assistants failed: %w", err)
	}
	return list, nil
}

func (r *AssistantRepository) Update(assistant *model.Assistant) error {
	if err := r.db.Save(assistant).Error; err != nil {
		return fmt.Errorf("update assistant failed: %w", err)
	}
	return nil
}

func (r *AssistantRepository) Delete(id string) error {
	if err := r.db.Where("assistant_id = ?", id).Delete(&model.AssistantLibrary{}).Error; err != nil {
		return fmt.Errorf("delete assistant library bindings failed: %w", err)
	}
	if err := r.db.Where("id = ?", id).Delete(&model.Assistant{}).Error; err != nil {
		return fmt.Errorf("delete assistant failed: %w", err)
	}
	return nil
}

// ListBindings returns the assistant's library bindings in insertion order.
func (r *AssistantRepository) ListBindings(assistantID string) ([]model.AssistantLibrary, error) {
	var bindings []model.AssistantLibrary
	if err := r.db.Where("assistant_id = ?", assistantID).Order("id ASC").Find(&bindings).Error; err != nil {
		return nil, fmt.Errorf("list assistant bindings failed: %w", err)
	}
	return bindings, nil
}

// ReplaceBindings swaps the assistant's library set atomically.
func (r *AssistantRepository) ReplaceBindings(assistantID string, bindings []model.AssistantLibrary) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assistant_id = ?", assistantID).Delete(&model.AssistantLibrary{}).Error; err != nil {
			return err
		}
		if len(bindings) == 0 {
			return nil
		}
		for i := range bindings {
			bindings[i].ID = 0
			bindings[i].AssistantID = assistantID
			if bindings[i].HasOverride() {
				bindings[i].Priority = model.ClampPriority(bindings[i].Priority)
			}
		}
		return tx.Create(&bindings).Error
	})
	if err != nil {
		return fmt.Errorf("replace assistant bindings failed: %w", err)
	}
	return nil
}
