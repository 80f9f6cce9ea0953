package model

import (
	"encoding/json"
	"time"
)

// SavedSource is the bounded subset of a retrieval source that gets stored
// on a conversation turn (content truncated, metadata flattened).
type SavedSource struct {
	SourceRef       string      `json:"source_ref"`
	Type            LibraryType `json:"type"`
	Filename        string      `json:"filename"`
	Page            int         `json:"page"`
	DocID           string      `json:"doc_id,omitempty"`
	LibraryID       string      `json:"library_id,omitempty"`
	LibraryName     string      `json:"library_name,omitempty"`
	LibraryPriority int         `json:"library_priority,omitempty"`
	Content         string      `json:"content"`
}

type MatchedImage struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	Tags           []string `json:"tags,omitempty"`
	SectionHints   []string `json:"section_hints,omitempty"`
	ContextExcerpt string   `json:"context_excerpt,omitempty"`
	SourceDocument string   `json:"source_document"`
	Page           int      `json:"page"`
	LibraryID      string   `json:"library_id,omitempty"`
}

type ConversationMessage struct {
	Role          MessageRole    `json:"role"`
	Content       string         `json:"content"`
	Sources       []SavedSource  `json:"sources,omitempty"`
	MatchedImages []MatchedImage `json:"matched_images,omitempty"`
}

// InlineAttachment is un-indexed text attached directly to a conversation,
// retrieved as an ATTACHMENT_INLINE source on every turn.
type InlineAttachment struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// Conversation holds the ordered message list as JSON. It is written once
// per successful ask/edit call, after the full pipeline has succeeded.
type Conversation struct {
	ID                  string    `gorm:"primaryKey;size:36" json:"id"`
	UserID              string    `gorm:"size:64;not null;index" json:"user_id"`
	AssistantID         string    `gorm:"size:36;not null;index" json:"assistant_id"`
	Title               string    `gorm:"size:256" json:"title"`
	Messages            string    `gorm:"type:longtext" json:"-"`
	AttachmentLibraryID string    `gorm:"size:36" json:"attachment_library_id,omitempty"`
	InlineTexts         string    `gorm:"type:longtext" json:"-"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (c *Conversation) MessageList() []ConversationMessage {
	if c.Messages == "" {
		return nil
	}
	var msgs []ConversationMessage
	_ = json.Unmarshal([]byte(c.Messages), &msgs)
	return msgs
}

func (c *Conversation) SetMessageList(msgs []ConversationMessage) {
	b, _ := json.Marshal(msgs)
	c.Messages = string(b)
}

func (c *Conversation) InlineAttachments() []InlineAttachment {
	if c.InlineTexts == "" {
		return nil
	}
	var items []InlineAttachment
	_ = json.Unmarshal([]byte(c.InlineTexts), &items)
	return items
}

func (c *Conversation) SetInlineAttachments(items []InlineAttachment) {
	b, _ := json.Marshal(items)
	c.InlineTexts = string(b)
}
