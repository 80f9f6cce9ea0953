package handler

import (
	"github.com/gin-gonic/gin"

	"grundbank/internal/transport/http/middleware"
)

func getUserIDFromContext(c *gin.Context) (string, bool) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return "", false
	}
	userID, ok := raw.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}
