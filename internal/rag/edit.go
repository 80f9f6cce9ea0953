package rag

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"grundbank/internal/model"
)

const (
	maxEditSupportSources = 10
	maxEditSourceContent  = 300
	maxTokensEdit         = 1800
)

// EditRequest targets one marked block inside the latest draft.
type EditRequest struct {
	UserID         string
	AssistantID    string
	ConversationID string
	FullText       string
	BlockText      string
	Comment        string
}

type EditResult struct {
	ConversationID string `json:"conversation_id"`
	UpdatedText    string `json:"updated_text"`
	UpdatedBlock   string `json:"updated_block"`
}

const editSystemTemplate = `DU SKA ENDAST REDIGERA ETT MARKERAT TEXTBLOCK.
Regler:
- Ändra ENDAST det markerade blocket enligt kommentaren.
- Behåll blockets roll i dokumentet (rubrik förblir rubrik, punkt förblir punkt).
- Hitta inte på nya fakta. Använd endast det bifogade källstödet.
- Behåll befintliga källhänvisningar i formatet [Sx] om de fortfarande stämmer.
- Returnera ENDAST det omskrivna blocket, utan förklaringar.
%s`

// EditBlock rewrites one block of the current draft according to the user's
// comment and splices the result back into the full text.
func (s *Service) EditBlock(ctx context.Context, req EditRequest) (*EditResult, error) {
	if strings.TrimSpace(req.FullText) == "" {
		return nil, fmt.Errorf("%w: full_text", ErrEmptyField)
	}
	if strings.TrimSpace(req.BlockText) == "" {
		return nil, fmt.Errorf("%w: block_text", ErrEmptyField)
	}
	if strings.TrimSpace(req.Comment) == "" {
		return nil, fmt.Errorf("%w: comment", ErrEmptyField)
	}

	assistant, err := s.assistants.GetByID(req.AssistantID)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, ErrAssistantNotFound
	}

	var conv *model.Conversation
	var support string
	var allowRefs []string
	if req.ConversationID != "" {
		conv, err = s.conversations.GetByIDAndUserID(req.ConversationID, req.UserID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, ErrConversationNotFound
		}
		support = latestSourceSupport(conv.MessageList())
		allowRefs = latestSourceRefs(conv.MessageList())
	}

	styleBlock := ""
	if s.styles != nil {
		if combined, err := s.styles.Combined(req.UserID); err != nil {
			s.logger.Warn("style rules unavailable", zap.Error(err))
		} else {
			styleBlock = combined.PromptBlock()
		}
	}
	systemPrompt := fmt.Sprintf(editSystemTemplate, styleBlock)

	supportBlock := "Inget källstöd tillgängligt."
	if support != "" {
		supportBlock = support
	}
	userPrompt := fmt.Sprintf(`HELA DOKUMENTET (för kontext, ändra inte utanför blocket):
%s

MARKERAT BLOCK:
%s

KÄLLSTÖD:
%s

KOMMENTAR FRÅN ANVÄNDAREN:
%s`, req.FullText, req.BlockText, supportBlock, req.Comment)

	models := s.resolveModels(assistant)
	updatedBlock, err := s.invokeWithFallback(ctx, systemPrompt, userPrompt, maxTokensEdit, models)
	if err != nil {
		return nil, err
	}
	// Citations in the revised block must come from the sources the draft
	// was built on. An empty model response keeps the original block
	// instead of deleting it from the document.
	updatedBlock, _ = normalizeCitations(strings.TrimSpace(updatedBlock), allowRefs, true)
	if strings.TrimSpace(updatedBlock) == "" {
		updatedBlock = strings.TrimSpace(req.BlockText)
	}

	updatedText, err := replaceFirstMatchingBlock(req.FullText, req.BlockText, updatedBlock)
	if err != nil {
		return nil, err
	}

	result := &EditResult{UpdatedText: updatedText, UpdatedBlock: updatedBlock}
	result.ConversationID, err = s.saveEditTurn(conv, req, updatedText)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// latestSourceSupport renders the latest AI message's saved sources as a
// compact support block for the edit prompt.
func latestSourceSupport(messages []model.ConversationMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != model.RoleAI || len(msg.Sources) == 0 {
			continue
		}
		var lines []string
		for j, src := range msg.Sources {
			if j >= maxEditSupportSources {
				break
			}
			lines = append(lines, fmt.Sprintf("%s (%s, sida %d): %s",
				src.SourceRef, src.Filename, src.Page,
				truncateRunes(src.Content, maxEditSourceContent)))
		}
		return strings.Join(lines, "\n")
	}
	return ""
}

// latestSourceRefs collects the citation allow-list from the same message
// latestSourceSupport reads.
func latestSourceRefs(messages []model.ConversationMessage) []string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != model.RoleAI || len(msg.Sources) == 0 {
			continue
		}
		seen := make(map[string]bool, len(msg.Sources))
		var refs []string
		for _, src := range msg.Sources {
			ref := strings.ToUpper(strings.TrimSpace(src.SourceRef))
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
		}
		return refs
	}
	return nil
}

// replaceFirstMatchingBlock finds the block in the full text and replaces
// its first occurrence. Markdown prefixes the client may have stripped from
// the selection are tried before giving up.
func replaceFirstMatchingBlock(fullText, blockText, replacement string) (string, error) {
	trimmedBlock := strings.TrimSpace(blockText)
	// Prefixed candidates go first: the bare block is a substring of its
	// prefixed form, so trying it first would split list items and headings.
	candidates := []string{
		"### " + trimmedBlock,
		"## " + trimmedBlock,
		"# " + trimmedBlock,
		"- " + trimmedBlock,
		"* " + trimmedBlock,
		blockText,
		trimmedBlock,
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if idx := strings.Index(fullText, candidate); idx >= 0 {
			return fullText[:idx] + replacement + fullText[idx+len(candidate):], nil
		}
	}
	return "", ErrBlockNotFound
}

// saveEditTurn records the edit as a conversation turn. The user side logs
// the block and comment; the AI side carries the updated full document.
func (s *Service) saveEditTurn(conv *model.Conversation, req EditRequest, updatedText string) (string, error) {
	userNote := fmt.Sprintf("[Styckekommentar]\nBlock: %s\nKommentar: %s",
		truncateRunes(strings.TrimSpace(req.BlockText), maxEditSourceContent), req.Comment)

	askReq := AskRequest{
		UserID:      req.UserID,
		AssistantID: req.AssistantID,
		Query:       userNote,
	}
	if conv == nil {
		id, err := s.saveTurnWithTitle(askReq, updatedText, "Styckesredigering")
		return id, err
	}
	messages := conv.MessageList()
	messages = append(messages,
		model.ConversationMessage{Role: model.RoleUser, Content: userNote},
		model.ConversationMessage{Role: model.RoleAI, Content: updatedText},
	)
	conv.SetMessageList(messages)
	if err := s.conversations.Save(conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *Service) saveTurnWithTitle(req AskRequest, answer, title string) (string, error) {
	id, err := s.saveTurn(nil, req, answer, nil, nil)
	if err != nil {
		return "", err
	}
	if title != "" {
		if conv, err := s.conversations.GetByIDAndUserID(id, req.UserID); err == nil && conv != nil {
			conv.Title = title
			if err := s.conversations.Save(conv); err != nil {
				s.logger.Warn("title update failed", zap.Error(err))
			}
		}
	}
	return id, nil
}
