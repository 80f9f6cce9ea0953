// Package jobs tracks asynchronous chat generation jobs so clients can poll
// progress instead of holding a request open through a long generation.
package jobs

import (
	"context"
	"time"

	"grundbank/internal/model"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const (
	// MaxPartialAnswerChars keeps polling responses small; the full answer
	// is delivered once on completion.
	MaxPartialAnswerChars = 12000
	// MaxAnswerPreviewChars bounds what the redis store persists; the full
	// result lives on the conversation record.
	MaxAnswerPreviewChars = 8000
)

type ChatJob struct {
	ID             string               `json:"id"`
	UserID         string               `json:"user_id"`
	AssistantID    string               `json:"assistant_id"`
	ConversationID string               `json:"conversation_id,omitempty"`
	Query          string               `json:"query"`
	Status         Status               `json:"status"`
	Stage          string               `json:"stage"`
	Progress       int                  `json:"progress"`
	Message        string               `json:"message"`
	PartialAnswer  string               `json:"partial_answer"`
	Answer         string               `json:"answer"`
	Sources        []model.SavedSource  `json:"sources"`
	MatchedImages  []model.MatchedImage `json:"matched_images"`
	Error          string               `json:"error"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// Update carries partial job changes; nil fields are left untouched.
type Update struct {
	Status         *Status
	ConversationID *string
	Stage          *string
	Progress       *int
	Message        *string
	PartialAnswer  *string
	Answer         *string
	Sources        []model.SavedSource
	MatchedImages  []model.MatchedImage
	Error          *string
}

type Store interface {
	Create(ctx context.Context, userID, assistantID, conversationID, query string) (*ChatJob, error)
	Get(ctx context.Context, jobID string) (*ChatJob, error)
	Update(ctx context.Context, jobID string, upd Update) (*ChatJob, error)
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// tailString keeps the last max runes, so partial answers show the most
// recent text while generation streams forward.
func tailString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[len(runes)-max:])
}

func headString(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func applyUpdate(job *ChatJob, upd Update) {
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.ConversationID != nil {
		job.ConversationID = *upd.ConversationID
	}
	if upd.Stage != nil {
		job.Stage = *upd.Stage
	}
	if upd.Progress != nil {
		job.Progress = clampProgress(*upd.Progress)
	}
	if upd.Message != nil {
		job.Message = *upd.Message
	}
	if upd.PartialAnswer != nil {
		job.PartialAnswer = tailString(*upd.PartialAnswer, MaxPartialAnswerChars)
	}
	if upd.Answer != nil {
		job.Answer = *upd.Answer
	}
	if upd.Sources != nil {
		job.Sources = upd.Sources
	}
	if upd.MatchedImages != nil {
		job.MatchedImages = upd.MatchedImages
	}
	if upd.Error != nil {
		job.Error = *upd.Error
	}
	job.UpdatedAt = time.Now()
}

// Helpers for building updates without local pointer dances.

func StatusPtr(s Status) *Status { return &s }
func StringPtr(s string) *string { return &s }
func IntPtr(i int) *int          { return &i }
