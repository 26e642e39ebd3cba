package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"github.com/Avishi2511/bug-tracker/internal/domain"
	"github.com/Avishi2511/bug-tracker/internal/policy"
	"github.com/Avishi2511/bug-tracker/internal/service"
)

// Gin 上下文键
const (
	ContextKeyUserID    = "user_id"
	ContextKeyPrincipal = "principal"
	ContextKeyUser      = "current_user"
)

// PrincipalLoader 按用户 ID 解析当前请求的主体。
// Token 只携带 user_id；角色和激活状态每次请求都从数据库重新解析，
// 这样停用账号或变更角色会立即生效，不必等 token 过期。
type PrincipalLoader interface {
	CurrentUser(ctx context.Context, userID uint) (*domain.User, error)
}

// Auth 返回一个 Gin 中间件，用于验证 JWT token 并装载请求主体。
// jwtSecret: 用于验证签名的密钥，必须提供。
func Auth(jwtSecret string, loader PrincipalLoader) gin.HandlerFunc {
	// 在创建中间件时就进行检查，避免运行时 panic
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}
	if loader == nil {
		panic("PrincipalLoader cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		// 1. 从请求头提取 Token
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				abortUnauthorized(c, "Authorization header is required")
			} else if errors.Is(err, jwt.ErrTokenMalformed) {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				abortUnauthorized(c, "Invalid token format")
			} else {
				logrus.WithError(err).Warn("Auth middleware: Error extracting token")
				abortUnauthorized(c, "Could not process token")
			}
			return
		}

		// 2. 验证 Token (传入 secret)
		claims, err := validateToken(tokenStr, jwtSecret)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")

			// 根据 JWT 错误类型提供更具体的日志，但对客户端返回通用错误
			var validationError *jwt.ValidationError
			if errors.As(err, &validationError) {
				if validationError.Errors&jwt.ValidationErrorExpired != 0 {
					logCtx.Warn("Reason: Token is expired")
				}
				if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
					logCtx.Warn("Reason: Token signature is invalid")
				}
			}
			abortUnauthorized(c, "Invalid or expired token")
			return
		}

		// 3. 从 Claims 中提取用户 ID
		userIDClaim, ok := claims["user_id"]
		if !ok {
			logrus.Error("Auth middleware: 'user_id' claim missing in token")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Token processing error"})
			c.Abort()
			return
		}

		// JWT 数字默认为 float64，需要安全转换为 uint
		userIDFloat, ok := userIDClaim.(float64)
		if !ok || userIDFloat <= 0 || userIDFloat != float64(uint(userIDFloat)) {
			logrus.Errorf("Auth middleware: 'user_id' claim is not a valid positive integer number: %v", userIDClaim)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Token processing error"})
			c.Abort()
			return
		}
		userID := uint(userIDFloat)

		// 4. 重新解析主体：角色与激活状态以数据库为准
		user, err := loader.CurrentUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, service.ErrAccountDisabled) {
				logrus.WithField("user_id", userID).Warn("Auth middleware: Account is deactivated")
				abortUnauthorized(c, "Account is deactivated")
			} else {
				logrus.WithError(err).WithField("user_id", userID).Warn("Auth middleware: Failed to resolve principal")
				abortUnauthorized(c, "Invalid or expired token")
			}
			return
		}

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyPrincipal, policy.FromUser(user))
		logrus.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// RequireAdmin 返回一个 Gin 中间件，拒绝非管理员请求。
// 必须在 Auth 之后挂载。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok || !p.IsAdmin() {
			logrus.WithFields(logrus.Fields{"user_id": p.UserID, "role": p.Role}).
				Warn("Admin-only route denied")
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Access denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetPrincipal 从 Gin 上下文读取已认证的请求主体。
func GetPrincipal(c *gin.Context) (policy.Principal, bool) {
	value, exists := c.Get(ContextKeyPrincipal)
	if !exists {
		return policy.Principal{}, false
	}
	p, ok := value.(policy.Principal)
	return p, ok
}

// GetCurrentUser 从 Gin 上下文读取已认证的用户实体。
func GetCurrentUser(c *gin.Context) (*domain.User, bool) {
	value, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	user, ok := value.(*domain.User)
	return user, ok
}

func abortUnauthorized(c *gin.Context, message string) {
	c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": message})
	c.Abort()
}

// ErrMissingAuthHeader 定义一个自定义错误，用于表示缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// extractToken 从 Gin 上下文中提取 Bearer Token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	// Authorization header 格式应为 "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	// 使用 EqualFold 忽略 "Bearer" 的大小写
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// validateToken 解析并验证 JWT token 字符串
// secret: 用于验证签名的密钥
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法是否为 HMAC (HS256)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}
