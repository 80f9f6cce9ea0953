package model

// LibraryType is a closed set; free-form strings are rejected at the edges.
type LibraryType string

const (
	LibraryInput            LibraryType = "INPUT"
	LibraryBackground       LibraryType = "BACKGROUND"
	LibraryAttachmentInline LibraryType = "ATTACHMENT_INLINE"
)

// ParseLibraryType maps raw input to a valid type, defaulting to BACKGROUND.
func ParseLibraryType(raw string) LibraryType {
	switch LibraryType(raw) {
	case LibraryInput, LibraryAttachmentInline:
		return LibraryType(raw)
	default:
		return LibraryBackground
	}
}

// TypeBias breaks priority ties: attachments and explicit inputs win over
// passive background material.
func (t LibraryType) TypeBias() int {
	switch t {
	case LibraryAttachmentInline:
		return 3
	case LibraryInput:
		return 2
	case LibraryBackground:
		return 1
	default:
		return 0
	}
}

type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentCompleted  DocumentStatus = "completed"
	DocumentFailed     DocumentStatus = "failed"
)

type MessageRole string

const (
	RoleUser MessageRole = "user"
	RoleAI   MessageRole = "ai"
)

// ClampPriority keeps library priorities inside [0,100].
func ClampPriority(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
