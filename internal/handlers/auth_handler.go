package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bankingservice/internal/models"
	"bankingservice/internal/services"
)

// AuthHandler - конвейеры sign-up/sign-in поверх регистрации,
// проверки учётных данных и выпуска токена.
type AuthHandler struct {
	clients *services.ClientService
	auth    *services.AuthService
	tokens  *services.TokenService
	log     *zap.SugaredLogger
}

func NewAuthHandler(clients *services.ClientService, auth *services.AuthService, tokens *services.TokenService, log *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{clients: clients, auth: auth, tokens: tokens, log: log}
}

// @Summary      Регистрация клиента
// @Description  Создаёт клиента и возвращает bearer-токен
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/sign-up [post]
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req models.SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	var errs []fieldError
	errs = requireField(errs, "login", req.Login)
	errs = requireField(errs, "password", req.Password)
	errs = requireNameField(errs, "name", req.Name)
	errs = requireNameField(errs, "surname", req.Surname)
	errs = requireField(errs, "phone_main", req.PhoneMain)
	errs = requireField(errs, "email_main", req.EmailMain)
	balance, errs := parseBalance(errs, req.InitialBalance)
	if len(errs) > 0 {
		errorResponse(c, http.StatusBadRequest, validationMessage(errs))
		return
	}

	client := &models.Client{
		Login:     strings.TrimSpace(req.Login),
		Name:      strings.TrimSpace(req.Name),
		Surname:   strings.TrimSpace(req.Surname),
		PhoneMain: strings.TrimSpace(req.PhoneMain),
		EmailMain: strings.TrimSpace(req.EmailMain),
	}
	id, err := h.clients.Register(c.Request.Context(), client, req.Password, balance)
	if err != nil {
		h.log.Infow("[auth][sign-up] rejected", "login", client.Login, "err", err)
		handleServiceError(c, err)
		return
	}

	token, err := h.tokens.Issue(client.Login)
	if err != nil {
		h.log.Errorw("[auth][sign-up] issue token failed", "login", client.Login, "err", err)
		errorResponse(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "token": token})
}

// @Summary      Вход в систему
// @Description  Проверяет логин/пароль и возвращает bearer-токен
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Router       /auth/sign-in [post]
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req models.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	login := strings.TrimSpace(req.Login)

	client, err := h.auth.Authenticate(c.Request.Context(), login, req.Password)
	if err != nil {
		h.log.Infow("[auth][sign-in] failed", "login", login)
		handleServiceError(c, err)
		return
	}

	token, err := h.tokens.Issue(client.Login)
	if err != nil {
		h.log.Errorw("[auth][sign-in] issue token failed", "login", login, "err", err)
		errorResponse(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
