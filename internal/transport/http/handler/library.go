package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grundbank/internal/model"
	"grundbank/internal/repository"
	"grundbank/internal/transport/http/response"
	"grundbank/internal/vectorindex"
)

type LibraryHandler struct {
	libraries *repository.LibraryRepository
	documents *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	images    *repository.ImageAssetRepository
	index     vectorindex.Index
	logger    *zap.Logger
}

func NewLibraryHandler(
	libraries *repository.LibraryRepository,
	documents *repository.DocumentRepository,
	chunks *repository.ChunkRepository,
	images *repository.ImageAssetRepository,
	index vectorindex.Index,
	logger *zap.Logger,
) *LibraryHandler {
	return &LibraryHandler{
		libraries: libraries,
		documents: documents,
		chunks:    chunks,
		images:    images,
		index:     index,
		logger:    logger,
	}
}

type CreateLibraryRequest struct {
	Name         string `json:"name" binding:"required,max=256"`
	Type         string `json:"type"`
	Priority     *int   `json:"priority"`
	ScrubEnabled bool   `json:"scrub_enabled"`
}

func (h *LibraryHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req CreateLibraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	priority := 50
	if req.Priority != nil {
		priority = model.ClampPriority(*req.Priority)
	}
	lib := &model.Library{
		ID:           uuid.NewString(),
		OwnerID:      userID,
		Name:         strings.TrimSpace(req.Name),
		Type:         model.ParseLibraryType(req.Type),
		Priority:     priority,
		ScrubEnabled: req.ScrubEnabled,
	}
	if err := h.libraries.Create(lib); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create library failed")
		return
	}
	response.OK(c, lib)
}

func (h *LibraryHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	libs, err := h.libraries.ListByOwnerID(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list libraries failed")
		return
	}
	response.OK(c, libs)
}

func (h *LibraryHandler) Get(c *gin.Context) {
	lib, ok := h.ownedLibrary(c)
	if !ok {
		return
	}
	count, err := h.chunks.CountByLibraryID(lib.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "library stats failed")
		return
	}
	response.OK(c, gin.H{"library": lib, "chunk_count": count})
}

type UpdatePriorityRequest struct {
	Priority int `json:"priority" binding:"min=0,max=100"`
}

func (h *LibraryHandler) UpdatePriority(c *gin.Context) {
	lib, ok := h.ownedLibrary(c)
	if !ok {
		return
	}
	var req UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.libraries.UpdatePriority(lib.ID, req.Priority); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "update priority failed")
		return
	}
	lib.Priority = model.ClampPriority(req.Priority)
	response.OK(c, lib)
}

// Delete removes the library and everything scoped to it: index entries,
// chunk rows, image assets and document records.
func (h *LibraryHandler) Delete(c *gin.Context) {
	lib, ok := h.ownedLibrary(c)
	if !ok {
		return
	}
	if err := h.index.DeleteLibrary(c.Request.Context(), lib.ID); err != nil {
		h.logger.Warn("index cleanup failed", zap.String("library_id", lib.ID), zap.Error(err))
	}
	if err := h.chunks.DeleteByLibraryID(lib.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete chunks failed")
		return
	}
	if err := h.images.DeleteByLibraryID(lib.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete images failed")
		return
	}
	if err := h.documents.DeleteByLibraryID(lib.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete documents failed")
		return
	}
	if err := h.libraries.Delete(lib.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete library failed")
		return
	}
	response.OK(c, gin.H{"deleted_library_id": lib.ID})
}

// ownedLibrary loads the :id library and enforces ownership. It writes the
// error response itself when the lookup fails.
func (h *LibraryHandler) ownedLibrary(c *gin.Context) (*model.Library, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return nil, false
	}
	libID := c.Param("id")
	if libID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing library id")
		return nil, false
	}
	lib, err := h.libraries.GetByID(libID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "library lookup failed")
		return nil, false
	}
	if lib == nil || lib.OwnerID != userID {
		response.Error(c, http.StatusNotFound, response.CodeLibraryNotFound, "library not found")
		return nil, false
	}
	return lib, true
}
