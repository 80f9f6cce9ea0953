package model

import (
	"encoding/json"
	"time"
)

// ImageAsset is an extracted raster image with its generated description,
// indexed alongside text chunks in the same library scope.
type ImageAsset struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	LibraryID      string    `gorm:"size:36;not null;index" json:"library_id"`
	SourceDocID    string    `gorm:"size:36;not null;index" json:"source_doc_id"`
	SourceDocument string    `gorm:"size:256" json:"source_document"`
	Page           int       `json:"page"`
	Description    string    `gorm:"type:text" json:"description"`
	Tags           string    `gorm:"type:text" json:"-"`
	SectionHints   string    `gorm:"type:text" json:"-"`
	ContextExcerpt string    `gorm:"type:text" json:"context_excerpt"`
	Embedding      string    `gorm:"type:mediumtext" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

func (a *ImageAsset) TagList() []string {
	return decodeStringList(a.Tags)
}

func (a *ImageAsset) SetTagList(tags []string) {
	a.Tags = encodeStringList(tags)
}

func (a *ImageAsset) SectionHintList() []string {
	return decodeStringList(a.SectionHints)
}

func (a *ImageAsset) SetSectionHintList(hints []string) {
	a.SectionHints = encodeStringList(hints)
}

func (a *ImageAsset) EmbeddingVector() []float32 {
	if a.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(a.Embedding), &v)
	return v
}

func (a *ImageAsset) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		a.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	a.Embedding = string(b)
}

func decodeStringList(raw string) []string {
	if raw == "" {
		return nil
	}
	var v []string
	_ = json.Unmarshal([]byte(raw), &v)
	return v
}

func encodeStringList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}
