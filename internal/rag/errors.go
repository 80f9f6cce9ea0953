package rag

import "errors"

var (
	ErrAssistantNotFound    = errors.New("assistant not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyField           = errors.New("required field is empty")
	ErrBlockNotFound        = errors.New("kunde inte hitta markerat block i texten")
)

// Fixed user-facing messages. These are returned as answers, not errors:
// a question without groundable material is a valid outcome, not a failure.
const (
	// NoSourcesAnswer short-circuits generation when retrieval produced
	// nothing and no template is bound.
	NoSourcesAnswer = "Jag hittar inga källor i dina bibliotek eller bifogade filer. Kontrollera att filerna är färdigbearbetade och försök igen."

	// AttachmentPendingAnswer is returned while conversation attachments
	// are still being ingested.
	AttachmentPendingAnswer = "Filen/filerna bearbetas fortfarande. Vänta en stund och försök igen när status är klar."

	// RefusalAnswer replaces a grounded text that ended up with zero valid
	// citations: an untraceable answer is never delivered as grounded.
	RefusalAnswer = "Jag kan tyvärr inte ge ett källbelagt svar på den här frågan utifrån materialet. Kontrollera att rätt dokument är uppladdade och försök igen."
)
