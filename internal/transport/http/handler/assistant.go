package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grundbank/internal/model"
	"grundbank/internal/repository"
	"grundbank/internal/template"
	"grundbank/internal/transport/http/response"
)

const maxTemplateSize = 5 << 20 // 5 MB

type AssistantHandler struct {
	assistants *repository.AssistantRepository
	libraries  *repository.LibraryRepository
	uploadDir  string
	logger     *zap.Logger
}

func NewAssistantHandler(
	assistants *repository.AssistantRepository,
	libraries *repository.LibraryRepository,
	uploadDir string,
	logger *zap.Logger,
) *AssistantHandler {
	return &AssistantHandler{assistants: assistants, libraries: libraries, uploadDir: uploadDir, logger: logger}
}

type AssistantRequest struct {
	Name            string `json:"name" binding:"required,max=256"`
	Persona         string `json:"persona"`
	ModelPreference string `json:"model_preference"`
}

func (h *AssistantHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req AssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	assistant := &model.Assistant{
		ID:              uuid.NewString(),
		OwnerID:         userID,
		Name:            strings.TrimSpace(req.Name),
		Persona:         strings.TrimSpace(req.Persona),
		ModelPreference: strings.TrimSpace(req.ModelPreference),
	}
	if err := h.assistants.Create(assistant); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create assistant failed")
		return
	}
	response.OK(c, assistant)
}

func (h *AssistantHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	assistants, err := h.assistants.ListByOwnerID(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list assistants failed")
		return
	}
	response.OK(c, assistants)
}

func (h *AssistantHandler) Get(c *gin.Context) {
	assistant, ok := h.ownedAssistant(c)
	if !ok {
		return
	}
	bindings, err := h.assistants.ListBindings(assistant.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list bindings failed")
		return
	}
	response.OK(c, gin.H{"assistant": assistant, "bindings": bindings})
}

func (h *AssistantHandler) Update(c *gin.Context) {
	assistant, ok := h.ownedAssistant(c)
	if !ok {
		return
	}
	var req AssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	assistant.Name = strings.TrimSpace(req.Name)
	assistant.Persona = strings.TrimSpace(req.Persona)
	assistant.ModelPreference = strings.TrimSpace(req.ModelPreference)
	if err := h.assistants.Update(assistant); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "update assistant failed")
		return
	}
	response.OK(c, assistant)
}

func (h *AssistantHandler) Delete(c *gin.Context) {
	assistant, ok := h.ownedAssistant(c)
	if !ok {
		return
	}
	if err := h.assistants.Delete(assistant.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete assistant failed")
		return
	}
	if assistant.TemplatePath != "" {
		if err := os.Remove(assistant.TemplatePath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("template file cleanup failed", zap.Error(err))
		}
	}
	response.OK(c, gin.H{"deleted_assistant_id": assistant.ID})
}

type BindingRequest struct {
	LibraryID string `json:"library_id" binding:"required"`
	Priority  *int   `json:"priority"`
}

type SetBindingsRequest struct {
	Bindings []BindingRequest `json:"bindings"`
}

// SetBindings replaces the assistant's library set atomically. A binding
// without priority keeps the library's own default.
func (h *AssistantHandler) SetBindings(c *gin.Context) {
	userID, _ := getUserIDFromContext(c)
	assistant, ok := h.ownedAssistant(c)
	if !ok {
		return
	}
	var req SetBindingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	bindings := make([]model.AssistantLibrary, 0, len(req.Bindings))
	for _, b := range req.Bindings {
		lib, err := h.libraries.GetByID(b.LibraryID)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "library lookup failed")
			return
		}
		if lib == nil || lib.OwnerID != userID {
			response.Error(c, http.StatusNotFound, response.CodeLibraryNotFound, "library not found: "+b.LibraryID)
			return
		}
		priority := -1
		if b.Priority != nil {
			priority = model.ClampPriority(*b.Priority)
		}
		bindings = append(bindings, model.AssistantLibrary{
			AssistantID: assistant.ID,
			LibraryID:   b.LibraryID,
			Priority:    priority,
		})
	}
	if err := h.assistants.ReplaceBindings(assistant.ID, bindings); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "replace bindings failed")
		return
	}
	response.OK(c, gin.H{"assistant_id": assistant.ID, "bindings": bindings})
}

// UploadTemplate stores a .docx structure template and validates that it
// parses before binding it to the assistant.
func (h *AssistantHandler) UploadTemplate(c *gin.Context) {
	assistant, ok := h.ownedAssistant(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}
	if file.Size > maxTemplateSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "template too large (max 5MB)")
		return
	}
	if strings.ToLower(filepath.Ext(file.Filename)) != ".docx" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only .docx templates are allowed")
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload dir unavailable")
		return
	}
	storedPath := filepath.Join(h.uploadDir, "template_"+assistant.ID+".docx")
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store template failed")
		return
	}

	structure, err := template.ParseFile(storedPath)
	if err != nil {
		_ = os.Remove(storedPath)
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "template could not be parsed: "+err.Error())
		return
	}

	assistant.TemplatePath = storedPath
	if err := h.assistants.Update(assistant); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "update assistant failed")
		return
	}
	response.OK(c, gin.H{
		"assistant_id":        assistant.ID,
		"template_path":       storedPath,
		"sections":            structure.Sections,
		"global_instructions": structure.GlobalInstructions,
	})
}

func (h *AssistantHandler) ownedAssistant(c *gin.Context) (*model.Assistant, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return nil, false
	}
	assistantID := c.Param("id")
	if assistantID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing assistant id")
		return nil, false
	}
	assistant, err := h.assistants.GetByID(assistantID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "assistant lookup failed")
		return nil, false
	}
	if assistant == nil || assistant.OwnerID != userID {
		response.Error(c, http.StatusNotFound, response.CodeAssistantNotFound, "assistant not found")
		return nil, false
	}
	return assistant, true
}
