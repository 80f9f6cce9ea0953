package model

import "time"

// Document tracks one ingested upload. The ingestion pipeline is the sole
// writer of status/progress; reads may observe stale progress but never a
// wrong terminal state.
type Document struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	LibraryID       string         `gorm:"size:36;not null;index" json:"library_id"`
	Filename        string         `gorm:"size:256;not null" json:"filename"`
	Extension       string         `gorm:"size:16" json:"extension"`
	Status          DocumentStatus `gorm:"size:16;not null" json:"status"`
	Progress        int            `gorm:"not null;default:0" json:"progress"`
	TotalChunks     int            `gorm:"not null;default:0" json:"total_chunks"`
	ProcessedChunks int            `gorm:"not null;default:0" json:"processed_chunks"`
	ImagesIndexed   int            `gorm:"not null;default:0" json:"images_indexed"`
	HasImages       bool           `gorm:"not null;default:false" json:"has_images"`
	InterpretImages bool           `gorm:"not null;default:false" json:"interpret_images"`
	NameScrub       bool           `gorm:"not null;default:false" json:"name_scrub"`
	ScrubFindings   int            `gorm:"not null;default:0" json:"scrub_findings"`
	ScrubCards      int            `gorm:"not null;default:0" json:"scrub_cards"`
	Error           string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
