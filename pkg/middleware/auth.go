package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	TenantIDContextKey   = "tenant_id"
	OperatorIDContextKey = "operator_id"
	RoleContextKey       = "role"

	RoleAdmin = "admin"
)

// Claims carried by portal access tokens. Tokens are issued by the portal's
// identity service; this service only verifies them.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates HS256 bearer tokens and stores tenant, operator and role in the context
func Auth(secret []byte, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Warn("Invalid authorization header",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			)
			unauthorized(c, "missing or malformed authorization header")
			return
		}

		claims := &Claims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				unauthorized(c, "token expired")
				return
			}
			logger.Warn("Invalid token", zap.String("path", c.Request.URL.Path), zap.Error(err))
			unauthorized(c, "invalid token")
			return
		}

		if claims.TenantID == "" || claims.Subject == "" {
			unauthorized(c, "token lacks tenant or subject")
			return
		}

		c.Set(TenantIDContextKey, claims.TenantID)
		c.Set(OperatorIDContextKey, claims.Subject)
		c.Set(RoleContextKey, claims.Role)
		c.Next()
	}
}

// RequireRole rejects requests whose token does not carry the role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleContextKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "role " + role + " required",
			})
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "Unauthorized",
		"message": message,
	})
}

// TenantID returns the tenant set by Auth
func TenantID(c *gin.Context) string {
	return c.GetString(TenantIDContextKey)
}

// OperatorID returns the operator set by Auth
func OperatorID(c *gin.Context) string {
	return c.GetString(OperatorIDContextKey)
}
