package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextKey 上下文键类型
type ContextKey string

// CallerContextKey 调用方上下文键
const CallerContextKey ContextKey = "caller"

// AuthMiddleware JWT 认证中间件，成功后在上下文写入 Caller
func AuthMiddleware(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractTokenFromBearer(c.GetHeader("Authorization"))
		if token == "" {
			// WebSocket 握手无法自定义请求头
			token = c.Query("access_token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "缺少认证令牌"})
			return
		}

		claims, err := jwtService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "令牌验证失败: " + err.Error()})
			return
		}
		if claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "令牌类型错误"})
			return
		}

		caller, err := CallerFromClaims(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(string(CallerContextKey), caller)
		c.Request = c.Request.WithContext(WithCaller(c.Request.Context(), caller))
		c.Next()
	}
}

// RequirePermission 模块操作权限检查中间件
func RequirePermission(module Module, action Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := GetCaller(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
			return
		}
		if !HasPermission(caller.Role, module, action) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "权限不足"})
			return
		}
		c.Next()
	}
}

// RequireLevel 角色层级检查中间件
func RequireLevel(required Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := GetCaller(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未认证"})
			return
		}
		if !RoleLevelAtLeast(caller.Role, required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "角色层级不足"})
			return
		}
		c.Next()
	}
}

// GetCaller 从 Gin Context 获取调用方
func GetCaller(c *gin.Context) (Caller, bool) {
	v, exists := c.Get(string(CallerContextKey))
	if !exists {
		return Caller{}, false
	}
	caller, ok := v.(Caller)
	return caller, ok
}

// WithCaller 在标准 context.Context 中写入调用方
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, CallerContextKey, caller)
}

// CallerFromContext 从标准 context.Context 读取调用方
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(Caller)
	return caller, ok
}
