package model

import "time"

type Assistant struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID         string    `gorm:"size:64;not null;index" json:"owner_id"`
	Name            string    `gorm:"size:256;not null" json:"name"`
	Persona         string    `gorm:"type:text" json:"persona"`
	ModelPreference string    `gorm:"size:128" json:"model_preference"`
	TemplatePath    string    `gorm:"size:512" json:"template_path"`
	CreatedAt       time.Time `json:"created_at"`
}

// AssistantLibrary binds an assistant to a library, optionally overriding
// the library's default retrieval priority. Priority is clamped to [0,100]
// before persisting; -1 means "no override".
type AssistantLibrary struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	AssistantID string `gorm:"size:36;not null;index" json:"assistant_id"`
	LibraryID   string `gorm:"size:36;not null;index" json:"library_id"`
	Priority    int    `gorm:"not null;default:-1" json:"priority"`
}

// HasOverride reports whether this binding carries a priority override.
func (al AssistantLibrary) HasOverride() bool {
	return al.Priority >= 0
}
