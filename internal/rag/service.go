package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"grundbank/internal/ai"
	"grundbank/internal/config"
	"grundbank/internal/embedding"
	"grundbank/internal/model"
	"grundbank/internal/quota"
	"grundbank/internal/repository"
	"grundbank/internal/scrub"
	"grundbank/internal/style"
	"grundbank/internal/template"
	"grundbank/internal/vectorindex"
)

const (
	maxSavedSources       = 12
	maxSavedSourceContent = 240
	maxSavedImages        = 6
	maxTitleRunes         = 50
)

// Store views over the GORM repositories, narrowed to what the pipeline
// actually calls.
type assistantStore interface {
	GetByID(id string) (*model.Assistant, error)
	ListBindings(assistantID string) ([]model.AssistantLibrary, error)
}

type libraryStore interface {
	ListByIDs(ids []string) ([]model.Library, error)
}

type documentStore interface {
	ListByLibraryID(libraryID string) ([]model.Document, error)
}

type conversationStore interface {
	Create(conv *model.Conversation) error
	GetByIDAndUserID(id, userID string) (*model.Conversation, error)
	Save(conv *model.Conversation) error
}

type imageStore interface {
	ListByLibraryIDs(libraryIDs []string) ([]model.ImageAsset, error)
}

// chatClient is the completion surface the pipeline needs from the LLM
// client.
type chatClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, opts ai.CompleteOptions) (string, error)
}

// Service runs the full ask pipeline: plan, retrieve, generate, verify,
// enforce citations, persist the turn.
type Service struct {
	assistants    assistantStore
	libraries     libraryStore
	documents     documentStore
	conversations conversationStore
	images        imageStore
	index         vectorindex.Index
	embedder      embedding.Provider
	scrubber      *scrub.Scrubber
	styles        *style.Service
	quota         *quota.Service
	client        chatClient
	chatCfg       ai.ChatConfig
	llmCfg        config.LLMConfig
	logger        *zap.Logger
}

// Deps wires the service; Quota and Scrubber may be nil.
type Deps struct {
	Assistants    *repository.AssistantRepository
	Libraries     *repository.LibraryRepository
	Documents     *repository.DocumentRepository
	Conversations *repository.ConversationRepository
	Images        *repository.ImageAssetRepository
	Index         vectorindex.Index
	Embedder      embedding.Provider
	Scrubber      *scrub.Scrubber
	Styles        *style.Service
	Quota         *quota.Service
	Client        *ai.OpenAICompatibleClient
	LLM           config.LLMConfig
	Logger        *zap.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		assistants:    d.Assistants,
		libraries:     d.Libraries,
		documents:     d.Documents,
		conversations: d.Conversations,
		images:        d.Images,
		index:         d.Index,
		embedder:      d.Embedder,
		scrubber:      d.Scrubber,
		styles:        d.Styles,
		quota:         d.Quota,
		client:        d.Client,
		chatCfg:       ai.ChatConfig{BaseURL: d.LLM.BaseURL, APIKey: d.LLM.APIKey, Model: d.LLM.DefaultModel},
		llmCfg:        d.LLM,
		logger:        d.Logger,
	}
}

// AskRequest is one chat turn. ShowCitations defaults to true at the
// transport layer; SuggestImages is the assistant-level toggle resolved by
// the caller.
type AskRequest struct {
	UserID         string
	AssistantID    string
	ConversationID string
	Query          string
	ResponseMode   string
	TargetPages    int
	TargetWords    int
	Longform       bool
	ShowCitations  bool
	SuggestImages  bool
	Progress       ProgressFunc
}

type AskResult struct {
	ConversationID string                 `json:"conversation_id"`
	Answer         string                 `json:"answer"`
	Sources        []Source               `json:"sources"`
	MatchedImages  []model.MatchedImage   `json:"matched_images,omitempty"`
	Mode           string                 `json:"mode"`
	ModelUsed      string                 `json:"model_used"`
	Citations      int                    `json:"citations"`
	Debug          map[string]interface{} `json:"debug,omitempty"`
}

// Ask runs one complete turn. The conversation row is written exactly once,
// at the end, so a failed pipeline never leaves a half-written turn.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query", ErrEmptyField)
	}
	if s.quota != nil {
		if err := s.quota.EnforceChat(ctx, req.UserID, req.AssistantID); err != nil {
			return nil, err
		}
	}

	assistant, err := s.assistants.GetByID(req.AssistantID)
	if err != nil {
		return nil, err
	}
	if assistant == nil {
		return nil, ErrAssistantNotFound
	}

	// Person names leave the pipeline before the query reaches the
	// embedder, the model or the conversation record.
	req.Query = s.scrubBestEffort(ctx, req.Query)

	bindings, err := s.assistants.ListBindings(req.AssistantID)
	if err != nil {
		return nil, err
	}
	libraryIDs := make([]string, 0, len(bindings))
	overrides := map[string]int{}
	for _, b := range bindings {
		libraryIDs = append(libraryIDs, b.LibraryID)
		if b.HasOverride() {
			overrides[b.LibraryID] = b.Priority
		}
	}

	var tmpl *template.Structure
	if assistant.TemplatePath != "" {
		tmpl, err = template.ParseFile(assistant.TemplatePath)
		if err != nil {
			s.logger.Warn("template parse failed, continuing without",
				zap.String("path", assistant.TemplatePath), zap.Error(err))
			tmpl = nil
		}
	}

	conv, history, inline, currentDraft, err := s.loadConversation(req)
	if err != nil {
		return nil, err
	}
	if conv != nil && conv.AttachmentLibraryID != "" {
		libraryIDs = append(libraryIDs, conv.AttachmentLibraryID)
		pending, err := s.attachmentsPending(conv.AttachmentLibraryID)
		if err != nil {
			return nil, err
		}
		// Pending ingestion only blocks when no inline texts exist.
		if pending && len(inline) == 0 {
			return &AskResult{
				ConversationID: conv.ID,
				Answer:         AttachmentPendingAnswer,
				Mode:           "blocked",
			}, nil
		}
	}

	styleBlock := ""
	if s.styles != nil {
		combined, err := s.styles.Combined(req.UserID)
		if err != nil {
			s.logger.Warn("style rules unavailable", zap.Error(err))
		} else {
			styleBlock = combined.PromptBlock()
		}
		if _, err := s.styles.CapturePreferences(req.UserID, req.Query, "chat"); err != nil {
			s.logger.Warn("preference capture failed", zap.Error(err))
		}
	}

	hasTemplate := tmpl != nil && (len(tmpl.Sections) > 0 || len(tmpl.GlobalInstructions) > 0)
	modePlan := ResolveMode(ParseResponseMode(req.ResponseMode), req.Query,
		req.TargetPages, req.TargetWords, req.Longform, hasTemplate)
	baseK := modePlan.BaseK(req.TargetPages, hasTemplate)

	models := s.resolveModels(assistant)
	if modePlan.Mode == ModeSimple {
		models = models.pickFastModel()
	}

	s.emit(req.Progress, "retrieval", 10, "Söker i biblioteken...", "")

	queryVector, err := s.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	libs, err := s.libraries.ListByIDs(libraryIDs)
	if err != nil {
		return nil, err
	}
	plan := BuildPlan(libs, overrides)

	retrieval, err := s.retrieve(ctx, plan, queryVector, inline, modePlan, baseK)
	if err != nil {
		return nil, err
	}

	persona := strings.TrimSpace(assistant.Persona)
	if persona == "" {
		persona = s.llmCfg.DefaultPersona
	}

	if len(retrieval.Sources) == 0 && !hasTemplate {
		// The fixed answer is returned without a model call and without
		// writing a conversation turn.
		result := &AskResult{
			Answer: NoSourcesAnswer,
			Mode:   modePlan.Mode.String(),
		}
		if conv != nil {
			result.ConversationID = conv.ID
		}
		return result, nil
	}

	var matchedImages []model.MatchedImage
	if wantImages(req.SuggestImages, modePlan, req.Query) {
		matchedImages = s.searchImages(ctx, req.Query, plan, queryVector, defaultImageK)
	}

	templatePrompt := ""
	if hasTemplate {
		templatePrompt = tmpl.BuildPrompt()
	}
	systemPrompt := buildSystemPrompt(promptInput{
		Persona:           persona,
		StyleBlock:        styleBlock,
		ShowCitations:     req.ShowCitations,
		AllowList:         retrieval.AllowList(),
		Mode:              modePlan,
		ContextText:       retrieval.ContextText(),
		ImageContext:      imageContextBlock(matchedImages),
		TemplateStructure: templatePrompt,
		Plan:              plan,
		SuggestImages:     len(matchedImages) > 0,
	})

	s.emit(req.Progress, "generation", 25, "Skriver utkast...", "")
	draft, err := s.generate(ctx, genInput{
		SystemPrompt: systemPrompt,
		Query:        req.Query,
		CurrentDraft: currentDraft,
		History:      historyText(history),
		Persona:      persona,
		Mode:         modePlan,
		Models:       models,
		Progress:     req.Progress,
	})
	if err != nil {
		return nil, err
	}

	s.emit(req.Progress, "verify", 85, "Kontrollerar källstöd...", "")
	answer := s.verifyGrounding(ctx, req.Query, draft, retrieval.Sources, modePlan, models)
	answer = s.scrubBestEffort(ctx, answer)

	s.emit(req.Progress, "citations", 95, "Normaliserar källhänvisningar...", "")
	answer, citationCount := EnforceCitations(answer, retrieval.AllowList(), req.ShowCitations)

	result := &AskResult{
		Answer:        answer,
		Sources:       retrieval.Sources,
		MatchedImages: matchedImages,
		Mode:          modePlan.Mode.String(),
		ModelUsed:     models.Primary,
		Citations:     citationCount,
		Debug: map[string]interface{}{
			"requested_mode": string(modePlan.Requested),
			"base_k":         baseK,
			"target_words":   modePlan.TargetWords,
			"use_outline":    modePlan.UseOutline,
			"model_source":   models.Source,
			"source_count":   len(retrieval.Sources),
			"has_template":   hasTemplate,
		},
	}
	result.ConversationID, err = s.saveTurn(conv, req, answer, retrieval.Sources, matchedImages)
	if err != nil {
		return nil, err
	}
	s.emit(req.Progress, "done", 100, "Klart.", "")
	return result, nil
}

// loadConversation resolves the existing conversation, its trailing history,
// inline attachments and the latest AI draft.
func (s *Service) loadConversation(req AskRequest) (*model.Conversation, []model.ConversationMessage, []model.InlineAttachment, string, error) {
	if req.ConversationID == "" {
		return nil, nil, nil, "", nil
	}
	conv, err := s.conversations.GetByIDAndUserID(req.ConversationID, req.UserID)
	if err != nil {
		return nil, nil, nil, "", err
	}
	if conv == nil {
		return nil, nil, nil, "", ErrConversationNotFound
	}
	history := conv.MessageList()
	currentDraft := ""
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == model.RoleAI {
			currentDraft = history[i].Content
			break
		}
	}
	return conv, history, conv.InlineAttachments(), currentDraft, nil
}

// attachmentsPending reports whether any document in the conversation's
// attachment library is still being ingested.
func (s *Service) attachmentsPending(libraryID string) (bool, error) {
	docs, err := s.documents.ListByLibraryID(libraryID)
	if err != nil {
		return false, err
	}
	for _, doc := range docs {
		if doc.Status == model.DocumentProcessing {
			return true, nil
		}
	}
	return false, nil
}

// saveTurn appends the user/AI message pair and writes the conversation,
// creating it first if this was the opening turn. Stored sources and images
// are bounded copies, never the full retrieval payload.
func (s *Service) saveTurn(conv *model.Conversation, req AskRequest, answer string, sources []Source, images []model.MatchedImage) (string, error) {
	if conv == nil {
		conv = &model.Conversation{
			ID:          uuid.NewString(),
			UserID:      req.UserID,
			AssistantID: req.AssistantID,
			Title:       makeTitle(req.Query),
		}
		if err := s.conversations.Create(conv); err != nil {
			return "", err
		}
	}

	saved := make([]model.SavedSource, 0, len(sources))
	for i, src := range sources {
		if i >= maxSavedSources {
			break
		}
		saved = append(saved, model.SavedSource{
			SourceRef:       src.Ref,
			Type:            src.Type,
			Filename:        src.Filename,
			Page:            src.Page,
			DocID:           src.DocID,
			LibraryID:       src.LibraryID,
			LibraryName:     src.LibraryName,
			LibraryPriority: src.LibraryPriority,
			Content:         truncateRunes(src.Content, maxSavedSourceContent),
		})
	}
	if len(images) > maxSavedImages {
		images = images[:maxSavedImages]
	}

	messages := conv.MessageList()
	messages = append(messages,
		model.ConversationMessage{Role: model.RoleUser, Content: req.Query},
		model.ConversationMessage{Role: model.RoleAI, Content: answer, Sources: saved, MatchedImages: images},
	)
	conv.SetMessageList(messages)
	if err := s.conversations.Save(conv); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func makeTitle(query string) string {
	runes := []rune(strings.TrimSpace(query))
	if len(runes) <= maxTitleRunes {
		return string(runes)
	}
	return string(runes[:maxTitleRunes]) + "..."
}
