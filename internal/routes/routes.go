package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bankingservice/internal/handlers"
	"bankingservice/internal/middleware"
	"bankingservice/internal/services"
)

func SetupRoutes(
	r *gin.Engine,
	authHandler *handlers.AuthHandler,
	clientHandler *handlers.ClientHandler,
	tokens *services.TokenService,
) *gin.Engine {

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// JWT проверяется глобально; публичные пути перечислены в middleware
	r.Use(middleware.AuthMiddleware(tokens))

	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", authHandler.SignUp)
		auth.POST("/sign-in", authHandler.SignIn)
	}

	api := r.Group("/api")
	{
		api.POST("/client", clientHandler.Create)
		api.GET("/client/me", clientHandler.Me)
		api.PUT("/client/:id/main_phone", clientHandler.ChangeMainPhone)
		api.PUT("/client/:id/main_email", clientHandler.ChangeMainEmail)
		api.PUT("/client/:id/second_phone", clientHandler.SetSecondPhone)
		api.PUT("/client/:id/second_email", clientHandler.SetSecondEmail)
		api.PUT("/client/:id/cleared_phone", clientHandler.ClearSecondPhone)
		api.PUT("/client/:id/cleared_email", clientHandler.ClearSecondEmail)

		api.GET("/clients/email", clientHandler.GetByEmail)
		api.GET("/clients/phone", clientHandler.GetByPhone)
		api.GET("/clients/birthdate", clientHandler.GetByBirthdate)
		api.GET("/clients/person", clientHandler.GetByFIO)

		api.POST("/transfer", clientHandler.Transfer)
	}

	return r
}
