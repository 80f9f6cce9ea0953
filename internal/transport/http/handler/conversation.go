package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grundbank/internal/ingest"
	"grundbank/internal/model"
	"grundbank/internal/platform/rabbitmq"
	"grundbank/internal/repository"
	"grundbank/internal/transport/http/response"
)

const maxInlineTextRunes = 40000

type ConversationHandler struct {
	conversations *repository.ConversationRepository
	libraries     *repository.LibraryRepository
	documents     *repository.DocumentRepository
	publisher     *rabbitmq.TaskPublisher
	uploadDir     string
	logger        *zap.Logger
}

func NewConversationHandler(
	conversations *repository.ConversationRepository,
	libraries *repository.LibraryRepository,
	documents *repository.DocumentRepository,
	publisher *rabbitmq.TaskPublisher,
	uploadDir string,
	logger *zap.Logger,
) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		libraries:     libraries,
		documents:     documents,
		publisher:     publisher,
		uploadDir:     uploadDir,
		logger:        logger,
	}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	limit := 0
	if s := c.Query("limit"); s != "" {
		limit, _ = strconv.Atoi(s)
	}
	convs, err := h.conversations.ListByUserID(userID, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list conversations failed")
		return
	}
	response.OK(c, convs)
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{
		"conversation":       conv,
		"messages":           conv.MessageList(),
		"inline_attachments": conv.InlineAttachments(),
	})
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	convID := c.Param("id")
	if err := h.conversations.Delete(convID, userID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete conversation failed")
		return
	}
	response.OK(c, gin.H{"deleted_conversation_id": convID})
}

type CreateConversationRequest struct {
	AssistantID string `json:"assistant_id" binding:"required"`
	Title       string `json:"title" binding:"max=256"`
}

// Create opens an empty conversation so attachments can be added before the
// first question.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	conv := &model.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		AssistantID: req.AssistantID,
		Title:       strings.TrimSpace(req.Title),
	}
	if err := h.conversations.Create(conv); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create conversation failed")
		return
	}
	response.OK(c, conv)
}

type InlineAttachmentRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text" binding:"required"`
}

// AddInlineText attaches pasted text to the conversation. Inline texts skip
// ingestion and are injected directly as ATTACHMENT_INLINE sources.
func (h *ConversationHandler) AddInlineText(c *gin.Context) {
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}
	var req InlineAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	text := strings.TrimSpace(req.Text)
	if runes := []rune(text); len(runes) > maxInlineTextRunes {
		text = string(runes[:maxInlineTextRunes])
	}
	items := conv.InlineAttachments()
	items = append(items, model.InlineAttachment{
		Filename: strings.TrimSpace(req.Filename),
		Text:     text,
	})
	conv.SetInlineAttachments(items)
	if err := h.conversations.Save(conv); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "save conversation failed")
		return
	}
	response.OK(c, gin.H{"conversation_id": conv.ID, "inline_attachments": len(items)})
}

// AttachFile uploads a file into the conversation's private attachment
// library, creating the library on first use, and enqueues ingestion. The
// chat pipeline blocks with a pending answer until the document completes.
func (h *ConversationHandler) AttachFile(c *gin.Context) {
	userID, _ := getUserIDFromContext(c)
	conv, ok := h.ownedConversation(c)
	if !ok {
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large (max 25MB)")
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExts[ext] {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unsupported file type (pdf, docx, txt, md)")
		return
	}

	if conv.AttachmentLibraryID == "" {
		lib := &model.Library{
			ID:       uuid.NewString(),
			OwnerID:  userID,
			Name:     "Bilagor: " + conv.ID,
			Type:     model.LibraryAttachmentInline,
			Priority: 100,
		}
		if err := h.libraries.Create(lib); err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create attachment library failed")
			return
		}
		conv.AttachmentLibraryID = lib.ID
		if err := h.conversations.Save(conv); err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "save conversation failed")
			return
		}
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload dir unavailable")
		return
	}
	docID := uuid.NewString()
	storedPath := filepath.Join(h.uploadDir, docID+ext)
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store file failed")
		return
	}

	doc := &model.Document{
		ID:        docID,
		LibraryID: conv.AttachmentLibraryID,
		Filename:  file.Filename,
		Extension: ext,
		Status:    model.DocumentProcessing,
	}
	if err := h.documents.Create(doc); err != nil {
		_ = os.Remove(storedPath)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create document failed")
		return
	}

	task := ingest.Task{
		DocID:     docID,
		LibraryID: conv.AttachmentLibraryID,
		FilePath:  storedPath,
		Filename:  file.Filename,
	}
	if err := h.publisher.Publish(c.Request.Context(), task); err != nil {
		h.logger.Error("publish attachment ingest failed", zap.String("doc_id", docID), zap.Error(err))
		_ = h.documents.MarkFailed(docID, "kunde inte köa bearbetningen")
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "enqueue ingest failed")
		return
	}

	response.Accepted(c, gin.H{
		"conversation_id":       conv.ID,
		"attachment_library_id": conv.AttachmentLibraryID,
		"document":              doc,
	})
}

func (h *ConversationHandler) ownedConversation(c *gin.Context) (*model.Conversation, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return nil, false
	}
	convID := c.Param("id")
	if convID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing conversation id")
		return nil, false
	}
	conv, err := h.conversations.GetByIDAndUserID(convID, userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "conversation lookup failed")
		return nil, false
	}
	if conv == nil {
		response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, "conversation not found")
		return nil, false
	}
	return conv, true
}
