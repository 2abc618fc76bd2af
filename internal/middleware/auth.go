package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"bpmn-backend/internal/model"
	"bpmn-backend/internal/service"

	"github.com/gin-gonic/gin"
)

const userKey = "current_user"

// UserResolver 由令牌找到当前用户
type UserResolver interface {
	CurrentUser(ctx context.Context, token string) (*model.User, error)
}

// Auth 校验 Bearer 令牌并把用户放进上下文
func Auth(resolver UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abortUnauthorized(c)
			return
		}

		user, err := resolver.CurrentUser(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, service.ErrInactiveUser) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Inactive user"})
				return
			}
			abortUnauthorized(c)
			return
		}

		c.Set(userKey, user)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
}

// CurrentUser 只能在 Auth 之后的处理器中使用
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(userKey); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}
