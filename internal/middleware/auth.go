package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	chatErrors "sudooom.date.chat/internal/errors"
	"sudooom.date.chat/internal/jwt"
	"sudooom.date.chat/pkg/response"
)

const (
	contextUserID   = "user_id"
	contextDeviceID = "device_id"
)

// JWTAuth JWT 认证中间件
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" {
			response.Unauthorized(c, chatErrors.ErrTokenInvalid)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, chatErrors.ErrTokenExpired)
			} else {
				response.Unauthorized(c, chatErrors.ErrTokenInvalid)
			}
			c.Abort()
			return
		}

		c.Set(contextUserID, claims.UserID)
		c.Set(contextDeviceID, claims.DeviceID)
		c.Next()
	}
}

// extractToken 从 Authorization header 提取 token
func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetUserID 从 context 获取 user_id
func GetUserID(c *gin.Context) int64 {
	return c.GetInt64(contextUserID)
}
