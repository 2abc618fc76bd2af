package handler

import (
	"errors"
	"net/http"

	"bpmn-backend/internal/service"
	"bpmn-backend/internal/storage"
	"bpmn-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// abortWithError 账户和会话接口的错误映射，响应体为 {"detail": ...}
func abortWithError(c *gin.Context, err error) {
	status, detail := http.StatusInternalServerError, "Internal server error"

	switch {
	case errors.Is(err, service.ErrForbidden):
		status, detail = http.StatusForbidden, "Not enough permissions"
	case errors.Is(err, storage.ErrChatNotFound):
		status, detail = http.StatusNotFound, "Chat not found"
	case errors.Is(err, storage.ErrEntryNotFound):
		status, detail = http.StatusNotFound, "Chat entry not found"
	case errors.Is(err, storage.ErrUserNotFound):
		status, detail = http.StatusNotFound, "User not found"
	case errors.Is(err, storage.ErrUserExists):
		status, detail = http.StatusBadRequest, "Username already registered"
	case errors.Is(err, storage.ErrInvalidData):
		status, detail = http.StatusBadRequest, "Invalid data"
	default:
		logger.Errorf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}

	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}
