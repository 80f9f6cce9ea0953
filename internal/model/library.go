package model

import "time"

type Library struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	OwnerID      string      `gorm:"size:64;not null;index" json:"owner_id"`
	Name         string      `gorm:"size:256;not null" json:"name"`
	Type         LibraryType `gorm:"size:32;not null" json:"type"`
	Priority     int         `gorm:"not null;default:50" json:"priority"`
	ScrubEnabled bool        `gorm:"not null;default:false" json:"scrub_enabled"`
	CreatedAt    time.Time   `json:"created_at"`
}
