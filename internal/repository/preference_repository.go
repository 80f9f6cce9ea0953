package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"grundbank/internal/model"
)

type PreferenceRepository struct {
	db *gorm.DB
}

func NewPreferenceRepository(db *gorm.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) GetByUserID(userID string) (*model.UserPreference, error) {
	var pref model.UserPreference
	if err := r.db.Where("user_id = ?", userID).First(&pref).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user preference failed: %w", err)
	}
	return &pref, nil
}

func (r *PreferenceRepository) Upsert(pref *model.UserPreference) error {
	pref.UpdatedAt = time.Now()
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("upsert user preference failed: %w", err)
	}
	return nil
}

// GetGlobalStyle returns the single global style row, nil when unset.
func (r *PreferenceRepository) GetGlobalStyle() (*model.GlobalStyle, error) {
	var style model.GlobalStyle
	if err := r.db.First(&style).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get global style failed: %w", err)
	}
	return &style, nil
}

func (r *PreferenceRepository) SetGlobalStyle(rules []string) error {
	style, err := r.GetGlobalStyle()
	if err != nil {
		return err
	}
	if style == nil {
		style = &model.GlobalStyle{}
	}
	style.SetRuleList(rules)
	style.UpdatedAt = time.Now()
	if err := r.db.Save(style).Error; err != nil {
		return fmt.Errorf("set global style failed: %w", err)
	}
	return nil
}
