package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"grundbank/internal/style"
	"grundbank/internal/transport/http/response"
)

type StyleHandler struct {
	styles *style.Service
}

func NewStyleHandler(styles *style.Service) *StyleHandler {
	return &StyleHandler{styles: styles}
}

// Rules returns the three style tiers as the pipeline will apply them.
func (h *StyleHandler) Rules(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	combined, err := h.styles.Combined(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load style rules failed")
		return
	}
	response.OK(c, gin.H{
		"global":   combined.Global,
		"explicit": combined.Explicit,
		"adaptive": combined.Adaptive,
	})
}

type SetRulesRequest struct {
	Rules []string `json:"rules"`
}

// SetPersonalRules replaces the user's locked rule list.
func (h *StyleHandler) SetPersonalRules(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req SetRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	saved, err := h.styles.SetPersonalRules(userID, req.Rules)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "save personal rules failed")
		return
	}
	response.OK(c, gin.H{"rules": saved})
}

// SetGlobalRules replaces the organization-wide rule list.
func (h *StyleHandler) SetGlobalRules(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	var req SetRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if err := h.styles.SetGlobalRules(req.Rules); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "save global rules failed")
		return
	}
	response.OK(c, gin.H{"rules": req.Rules})
}
