package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bankingservice/internal/middleware"
	"bankingservice/internal/money"
	"bankingservice/internal/services"
)

// errorResponse - единый конверт ошибки: сообщение и метка времени в мс.
func errorResponse(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	})
}

// handleServiceError переводит доменную ошибку в HTTP-статус.
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrLoginTaken),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrPhoneTaken):
		errorResponse(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrNotFound):
		errorResponse(c, http.StatusNotFound, "Client not found!")
	case errors.Is(err, services.ErrInvalidCredentials):
		errorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrSameAccount),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInsufficientFunds):
		errorResponse(c, http.StatusBadRequest, err.Error())
	default:
		errorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}

func currentLogin(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.ContextLoginKey)
	if !ok {
		return "", false
	}
	login, ok := v.(string)
	return login, ok && login != ""
}

// fieldError - пара поле/сообщение для собираемой валидации.
type fieldError struct {
	field   string
	message string
}

// validationMessage собирает ошибки полей в строку вида
// "field - message ; " - формат исходного API.
func validationMessage(errs []fieldError) string {
	var b strings.Builder
	for _, e := range errs {
		b.WriteString(e.field)
		b.WriteString(" - ")
		b.WriteString(e.message)
		b.WriteString(" ; ")
	}
	return b.String()
}

func requireField(errs []fieldError, field, value string) []fieldError {
	if strings.TrimSpace(value) == "" {
		return append(errs, fieldError{field, "should not be empty"})
	}
	return errs
}

// имя и фамилия: обязательные, длина от 2 до 30
func requireNameField(errs []fieldError, field, value string) []fieldError {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, fieldError{field, "should not be empty"})
	}
	if n := len([]rune(v)); n < 2 || n > 30 {
		return append(errs, fieldError{field, "should be between 2 and 30 characters"})
	}
	return errs
}

// parseBalance разбирает необязательный стартовый баланс из запроса.
func parseBalance(errs []fieldError, value string) (*money.Amount, []fieldError) {
	if strings.TrimSpace(value) == "" {
		return nil, errs
	}
	a, err := money.Parse(value)
	if err != nil {
		return nil, append(errs, fieldError{"initial_balance", "invalid amount"})
	}
	if a < 0 {
		return nil, append(errs, fieldError{"initial_balance", "should not be negative"})
	}
	return &a, errs
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errorResponse(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// page/size из query; страница нулевая, границы нормализует сервис
func pageParams(c *gin.Context) (page, size int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ = strconv.Atoi(c.DefaultQuery("size", "0"))
	return page, size
}
