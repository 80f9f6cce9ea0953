package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"grundbank/internal/ingest"
	"grundbank/internal/model"
	"grundbank/internal/platform/rabbitmq"
	"grundbank/internal/repository"
	"grundbank/internal/transport/http/response"
	"grundbank/internal/vectorindex"
)

const maxUploadSize = 25 << 20 // 25 MB

var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".docx": true,
	".txt":  true,
	".md":   true,
}

type DocumentHandler struct {
	libraries *repository.LibraryRepository
	documents *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	images    *repository.ImageAssetRepository
	index     vectorindex.Index
	publisher *rabbitmq.TaskPublisher
	uploadDir string
	logger    *zap.Logger
}

func NewDocumentHandler(
	libraries *repository.LibraryRepository,
	documents *repository.DocumentRepository,
	chunks *repository.ChunkRepository,
	images *repository.ImageAssetRepository,
	index vectorindex.Index,
	publisher *rabbitmq.TaskPublisher,
	uploadDir string,
	logger *zap.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		libraries: libraries,
		documents: documents,
		chunks:    chunks,
		images:    images,
		index:     index,
		publisher: publisher,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// Upload stores the file, records a processing document and enqueues the
// ingestion task. The response carries the document id the client polls.
func (h *DocumentHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	libraryID := strings.TrimSpace(c.PostForm("library_id"))
	if libraryID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing library_id")
		return
	}
	lib, err := h.libraries.GetByID(libraryID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "library lookup failed")
		return
	}
	if lib == nil || lib.OwnerID != userID {
		response.Error(c, http.StatusNotFound, response.CodeLibraryNotFound, "library not found")
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

	interpretImages := c.PostForm("interpret_images") == "true"
	nameScrub := c.PostForm("name_scrub") == "true" || lib.ScrubEnabled

	doc := &model.Document{
		ID:              docID,
		LibraryID:       libraryID,
		Filename:        file.Filename,
		Extension:       ext,
		Status:          model.DocumentProcessing,
		InterpretImages: interpretImages,
		NameScrub:       nameScrub,
	}
	if err := h.documents.Create(doc); err != nil {
		_ = os.Remove(storedPath)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create document failed")
		return
	}

	task := ingest.Task{
		DocID:           docID,
		LibraryID:       libraryID,
		FilePath:        storedPath,
		Filename:        file.Filename,
		InterpretImages: interpretImages,
		NameScrub:       nameScrub,
	}
	if err := h.publisher.Publish(c.Request.Context(), task); err != nil {
		h.logger.Error("publish ingest task failed", zap.String("doc_id", docID), zap.Error(err))
		_ = h.documents.MarkFailed(docID, "kunde inte köa bearbetningen")
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "enqueue ingest failed")
		return
	}

	response.Accepted(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	libraryID := c.Query("library_id")
	if libraryID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing library_id")
		return
	}
	lib, err := h.libraries.GetByID(libraryID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "library lookup failed")
		return
	}
	if lib == nil || lib.OwnerID != userID {
		response.Error(c, http.StatusNotFound, response.CodeLibraryNotFound, "library not found")
		return
	}
	docs, err := h.documents.ListByLibraryID(libraryID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, docs)
}

// Status returns the progress record the ingestion worker maintains.
func (h *DocumentHandler) Status(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	doc, ok := h.ownedDocument(c)
	if !ok {
		return
	}
	if err := h.index.DeleteDocument(c.Request.Context(), doc.LibraryID, doc.ID); err != nil {
		h.logger.Warn("index cleanup failed", zap.String("doc_id", doc.ID), zap.Error(err))
	}
	if err := h.chunks.DeleteByDocID(doc.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete chunks failed")
		return
	}
	if err := h.images.DeleteByDocID(doc.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete images failed")
		return
	}
	if err := h.documents.Delete(doc.ID); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		return
	}
	response.OK(c, gin.H{"deleted_document_id": doc.ID})
}

func (h *DocumentHandler) ownedDocument(c *gin.Context) (*model.Document, bool) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return nil, false
	}
	docID := c.Param("id")
	if docID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing document id")
		return nil, false
	}
	doc, err := h.documents.GetByID(docID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "document lookup failed")
		return nil, false
	}
	if doc == nil {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "document not found")
		return nil, false
	}
	lib, err := h.libraries.GetByID(doc.LibraryID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "library lookup failed")
		return nil, false
	}
	if lib == nil || lib.OwnerID != userID {
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "document not found")
		return nil, false
	}
	return doc, true
}
