package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"grundbank/internal/jobs"
	"grundbank/internal/model"
	"grundbank/internal/quota"
	"grundbank/internal/rag"
	"grundbank/internal/transport/http/response"
)

// asyncJobTimeout bounds a background generation; long-form documents with
// many sections stay well under it.
const asyncJobTimeout = 15 * time.Minute

type ChatHandler struct {
	rag    *rag.Service
	jobs   jobs.Store
	logger *zap.Logger
}

func NewChatHandler(ragService *rag.Service, jobStore jobs.Store, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{rag: ragService, jobs: jobStore, logger: logger}
}

type AskRequest struct {
	AssistantID    string `json:"assistant_id" binding:"required"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query" binding:"required"`
	ResponseMode   string `json:"response_mode"`
	TargetPages    int    `json:"target_pages"`
	TargetWords    int    `json:"target_words"`
	Longform       bool   `json:"longform"`
	ShowCitations  *bool  `json:"show_citations"`
	SuggestImages  *bool  `json:"suggest_images"`
}

// Both toggles default to on when the client omits them.
func (r AskRequest) toServiceRequest(userID string) rag.AskRequest {
	showCitations := true
	if r.ShowCitations != nil {
		showCitations = *r.ShowCitations
	}
	suggestImages := true
	if r.SuggestImages != nil {
		suggestImages = *r.SuggestImages
	}
	return rag.AskRequest{
		UserID:         userID,
		AssistantID:    r.AssistantID,
		ConversationID: r.ConversationID,
		Query:          r.Query,
		ResponseMode:   r.ResponseMode,
		TargetPages:    r.TargetPages,
		TargetWords:    r.TargetWords,
		Longform:       r.Longform,
		ShowCitations:  showCitations,
		SuggestImages:  suggestImages,
	}
}

// Ask runs the full pipeline synchronously and returns the final answer.
func (h *ChatHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.rag.Ask(c.Request.Context(), req.toServiceRequest(userID))
	if err != nil {
		h.writeAskError(c, err)
		return
	}
	response.OK(c, result)
}

// AskAsync queues the pipeline as a polled job and returns immediately.
func (h *ChatHandler) AskAsync(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	job, err := h.jobs.Create(c.Request.Context(), userID, req.AssistantID, req.ConversationID, req.Query)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create job failed")
		return
	}

	serviceReq := req.toServiceRequest(userID)
	go h.runJob(job.ID, serviceReq)

	response.Accepted(c, gin.H{"job_id": job.ID, "status": job.Status})
}

// runJob executes one queued generation outside the request lifecycle.
func (h *ChatHandler) runJob(jobID string, req rag.AskRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), asyncJobTimeout)
	defer cancel()

	if _, err := h.jobs.Update(ctx, jobID, jobs.Update{
		Status:   jobs.StatusPtr(jobs.StatusRunning),
		Stage:    jobs.StringPtr("start"),
		Progress: jobs.IntPtr(1),
	}); err != nil {
		h.logger.Warn("job update failed", zap.String("job_id", jobID), zap.Error(err))
	}

	req.Progress = func(stage string, progress int, message, partial string) {
		upd := jobs.Update{
			Stage:    jobs.StringPtr(stage),
			Progress: jobs.IntPtr(progress),
			Message:  jobs.StringPtr(message),
		}
		if partial != "" {
			upd.PartialAnswer = jobs.StringPtr(partial)
		}
		if _, err := h.jobs.Update(ctx, jobID, upd); err != nil {
			h.logger.Warn("job progress update failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	result, err := h.rag.Ask(ctx, req)
	if err != nil {
		h.logger.Error("async ask failed", zap.String("job_id", jobID), zap.Error(err))
		if _, uerr := h.jobs.Update(ctx, jobID, jobs.Update{
			Status: jobs.StatusPtr(jobs.StatusFailed),
			Error:  jobs.StringPtr(err.Error()),
		}); uerr != nil {
			h.logger.Warn("job failure update failed", zap.String("job_id", jobID), zap.Error(uerr))
		}
		return
	}

	if _, err := h.jobs.Update(ctx, jobID, jobs.Update{
		Status:         jobs.StatusPtr(jobs.StatusCompleted),
		ConversationID: jobs.StringPtr(result.ConversationID),
		Stage:          jobs.StringPtr("done"),
		Progress:       jobs.IntPtr(100),
		Answer:         jobs.StringPtr(result.Answer),
		Sources:        savedSources(result.Sources),
		MatchedImages:  result.MatchedImages,
	}); err != nil {
		h.logger.Warn("job completion update failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func savedSources(sources []rag.Source) []model.SavedSource {
	saved := make([]model.SavedSource, 0, len(sources))
	for _, src := range sources {
		saved = append(saved, model.SavedSource{
			SourceRef:       src.Ref,
			Type:            src.Type,
			Filename:        src.Filename,
			Page:            src.Page,
			DocID:           src.DocID,
			LibraryID:       src.LibraryID,
			LibraryName:     src.LibraryName,
			LibraryPriority: src.LibraryPriority,
			Content:         src.Content,
		})
	}
	return saved
}

func (h *ChatHandler) JobStatus(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	jobID := c.Param("id")
	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "job lookup failed")
		return
	}
	if job == nil || job.UserID != userID {
		response.Error(c, http.StatusNotFound, response.CodeJobNotFound, "job not found")
		return
	}
	response.OK(c, job)
}

type EditBlockRequest struct {
	AssistantID    string `json:"assistant_id" binding:"required"`
	ConversationID string `json:"conversation_id"`
	FullText       string `json:"full_text" binding:"required"`
	BlockText      string `json:"block_text" binding:"required"`
	Comment        string `json:"comment" binding:"required"`
}

func (h *ChatHandler) EditBlock(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req EditBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.rag.EditBlock(c.Request.Context(), rag.EditRequest{
		UserID:         userID,
		AssistantID:    req.AssistantID,
		ConversationID: req.ConversationID,
		FullText:       req.FullText,
		BlockText:      req.BlockText,
		Comment:        req.Comment,
	})
	if err != nil {
		h.writeAskError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) writeAskError(c *gin.Context, err error) {
	var quotaErr *quota.ExceededError
	switch {
	case errors.As(err, &quotaErr):
		c.Header("Retry-After", strconv.Itoa(int(quotaErr.RetryAfter.Seconds())))
		response.Error(c, http.StatusTooManyRequests, response.CodeQuotaExceeded, quotaErr.Message)
	case errors.Is(err, rag.ErrAssistantNotFound):
		response.Error(c, http.StatusNotFound, response.CodeAssistantNotFound, "assistant not found")
	case errors.Is(err, rag.ErrConversationNotFound):
		response.Error(c, http.StatusNotFound, response.CodeConversationNotFound, "conversation not found")
	case errors.Is(err, rag.ErrEmptyField):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, rag.ErrBlockNotFound):
		response.Error(c, http.StatusConflict, response.CodeBlockNotFound, err.Error())
	default:
		h.logger.Error("chat request failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat request failed")
	}
}
