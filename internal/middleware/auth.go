// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"laodong-rag-go/pkg/token"
)

// 存入 Gin 上下文的键。
const (
	ContextKeyIdentity = "identity"
	ContextKeyClaims   = "claims"
)

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 验证 Bearer token 后将完整 claims 与解析出的使用者识别存入上下文。
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少或格式錯誤的 JWT"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			// 区分过期与无效，错误讯息直接来自 token 验证
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		identity := token.ResolveIdentity(claims)
		if identity == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "JWT payload 缺少有效的使用者識別 (email/username)"})
			return
		}

		c.Set(ContextKeyIdentity, identity)
		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}
