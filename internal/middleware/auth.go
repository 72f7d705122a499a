package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bankingservice/internal/services"
)

// ContextLoginKey - ключ, под которым логин из токена лежит в gin-контексте.
const ContextLoginKey = "login"

// публичные эндпоинты, не требующие токена
func isPublic(method, path string) bool {
	switch path {
	case "/auth/sign-up", "/auth/sign-in", "/healthz":
		return true
	}
	// легаси-регистрация с полным профилем тоже публичная
	if method == http.MethodPost && path == "/api/client" {
		return true
	}
	return false
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	})
}

// AuthMiddleware проверяет bearer-токен и кладёт логин клиента в контекст.
func AuthMiddleware(tokens *services.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		if isPublic(c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.SplitN(authHeader, " ", 2)
		if authHeader == "" || len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		login, err := tokens.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, services.ErrTokenExpired) {
				abortUnauthorized(c, "Token expired")
				return
			}
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set(ContextLoginKey, login)
		c.Next()
	}
}
