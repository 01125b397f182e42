package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"memorial-site/internal/core/auth"
	"memorial-site/internal/transport/http/ez"
	resp "memorial-site/internal/transport/http/response"
)

func bearer(c *gin.Context) string {
	ah := c.GetHeader("Authorization")
	if !strings.HasPrefix(ah, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ez.KeyClaims, claims)
	c.Set(ez.KeyUserID, claims.UID)
	c.Set(ez.KeyRole, claims.Role)
}

// AuthJWT 整组强制登录（后台用）
func AuthJWT(j *auth.JWTer, requireRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearer(c)
		if tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "unauthorized"))
			return
		}
		claims, err := j.Parse(tok)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if requireRole != "" && claims.Role != requireRole {
			c.AbortWithStatusJSON(http.StatusForbidden, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth 只解析不拦截；令牌无效时打标记，由具体动作决定是否拒绝
func OptionalAuth(j *auth.JWTer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearer(c); tok != "" {
			if claims, err := j.Parse(tok); err == nil {
				setClaims(c, claims)
			} else {
				c.Set(ez.KeyTokenErr, true)
			}
		}
		c.Next()
	}
}
