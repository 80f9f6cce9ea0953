package model

import (
	"encoding/json"
	"time"
)

// Chunk stores one bounded slice of document text with its embedding.
// The embedding is stored as a JSON array of float32 for portability.
// Chunks are immutable once written; source_ref labels are assigned at
// retrieval time only and never persisted here.
type Chunk struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LibraryID string    `gorm:"size:36;not null;index" json:"library_id"`
	DocID     string    `gorm:"size:36;not null;index" json:"doc_id"`
	Filename  string    `gorm:"size:256" json:"filename"`
	Page      int       `json:"page"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Embedding string    `gorm:"type:mediumtext" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
