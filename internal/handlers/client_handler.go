package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bankingservice/internal/models"
	"bankingservice/internal/money"
	"bankingservice/internal/services"
)

type ClientHandler struct {
	service *services.ClientService
	log     *zap.SugaredLogger
}

func NewClientHandler(service *services.ClientService, log *zap.SugaredLogger) *ClientHandler {
	return &ClientHandler{service: service, log: log}
}

// @Summary      Легаси-регистрация клиента с полным профилем
// @Tags         Clients
// @Accept       json
// @Produce      json
// @Router       /api/client [post]
func (h *ClientHandler) Create(c *gin.Context) {
	var req models.CreateClientRequest
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

	var birthDate *models.Date
	if strings.TrimSpace(req.DateOfBirth) != "" {
		d, err := models.ParseDate(req.DateOfBirth)
		if err != nil {
			errs = append(errs, fieldError{"birth_date", "invalid date, want dd/MM/yyyy"})
		} else {
			birthDate = &d
		}
	}
	if len(errs) > 0 {
		errorResponse(c, http.StatusBadRequest, validationMessage(errs))
		return
	}

	client := &models.Client{
		Login:       strings.TrimSpace(req.Login),
		Name:        strings.TrimSpace(req.Name),
		Surname:     strings.TrimSpace(req.Surname),
		DateOfBirth: birthDate,
		PhoneMain:   strings.TrimSpace(req.PhoneMain),
		EmailMain:   strings.TrimSpace(req.EmailMain),
	}
	if v := strings.TrimSpace(req.Patronymic); v != "" {
		client.Patronymic = &v
	}
	if v := strings.TrimSpace(req.PhoneAdd); v != "" {
		client.PhoneAdd = &v
	}
	if v := strings.TrimSpace(req.EmailAdd); v != "" {
		client.EmailAdd = &v
	}

	id, err := h.service.Register(c.Request.Context(), client, req.Password, balance)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// contactUpdate - общий каркас PUT-правок контакта: id из пути, значение из
// тела, операция сервиса.
func (h *ClientHandler) contactUpdate(c *gin.Context, field string, value string, op func(int64, string) error) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	v := strings.TrimSpace(value)
	if v == "" {
		errorResponse(c, http.StatusBadRequest, validationMessage([]fieldError{{field, "should not be empty"}}))
		return
	}
	if err := op(id, v); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// @Summary      Смена основного телефона
// @Tags         Clients
// @Router       /api/client/{id}/main_phone [put]
func (h *ClientHandler) ChangeMainPhone(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.contactUpdate(c, "phone_main", req.PhoneMain, func(id int64, v string) error {
		return h.service.ChangeMainPhone(c.Request.Context(), id, v)
	})
}

// @Summary      Смена основного емейла
// @Tags         Clients
// @Router       /api/client/{id}/main_email [put]
func (h *ClientHandler) ChangeMainEmail(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.contactUpdate(c, "email_main", req.EmailMain, func(id int64, v string) error {
		return h.service.ChangeMainEmail(c.Request.Context(), id, v)
	})
}

// @Summary      Установка дополнительного телефона
// @Tags         Clients
// @Router       /api/client/{id}/second_phone [put]
func (h *ClientHandler) SetSecondPhone(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.contactUpdate(c, "phone_additional", req.PhoneAdd, func(id int64, v string) error {
		return h.service.SetAdditionalPhone(c.Request.Context(), id, v)
	})
}

// @Summary      Установка дополнительного емейла
// @Tags         Clients
// @Router       /api/client/{id}/second_email [put]
func (h *ClientHandler) SetSecondEmail(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	h.contactUpdate(c, "email_additional", req.EmailAdd, func(id int64, v string) error {
		return h.service.SetAdditionalEmail(c.Request.Context(), id, v)
	})
}

// @Summary      Удаление дополнительного телефона
// @Tags         Clients
// @Router       /api/client/{id}/cleared_phone [put]
func (h *ClientHandler) ClearSecondPhone(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.ClearAdditionalPhone(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// @Summary      Удаление дополнительного емейла
// @Tags         Clients
// @Router       /api/client/{id}/cleared_email [put]
func (h *ClientHandler) ClearSecondEmail(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.ClearAdditionalEmail(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// @Summary      Поиск клиента по основному емейлу
// @Tags         Clients
// @Router       /api/clients/email [get]
func (h *ClientHandler) GetByEmail(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		errorResponse(c, http.StatusBadRequest, validationMessage([]fieldError{{"email", "should not be empty"}}))
		return
	}
	client, err := h.service.FindByEmail(c.Request.Context(), email)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// @Summary      Поиск клиента по любому из телефонов
// @Tags         Clients
// @Router       /api/clients/phone [get]
func (h *ClientHandler) GetByPhone(c *gin.Context) {
	phone := strings.TrimSpace(c.Query("phoneNumber"))
	if phone == "" {
		errorResponse(c, http.StatusBadRequest, validationMessage([]fieldError{{"phoneNumber", "should not be empty"}}))
		return
	}
	client, err := h.service.FindByPhone(c.Request.Context(), phone)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// @Summary      Клиенты, родившиеся строго после даты
// @Tags         Clients
// @Router       /api/clients/birthdate [get]
func (h *ClientHandler) GetByBirthdate(c *gin.Context) {
	d, err := models.ParseDate(strings.TrimSpace(c.Query("birthdate")))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, validationMessage([]fieldError{{"birthdate", "invalid date, want dd/MM/yyyy"}}))
		return
	}
	page, size := pageParams(c)
	clients, err := h.service.FindByBirthdateAfter(c.Request.Context(), d.Time, page, size)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// @Summary      Поиск по ФИО (LIKE, без учёта регистра)
// @Tags         Clients
// @Router       /api/clients/person [get]
func (h *ClientHandler) GetByFIO(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	surname := strings.TrimSpace(c.Query("surname"))
	patronymic := strings.TrimSpace(c.Query("patronymic"))

	var errs []fieldError
	errs = requireField(errs, "name", name)
	errs = requireField(errs, "surname", surname)
	if len(errs) > 0 {
		errorResponse(c, http.StatusBadRequest, validationMessage(errs))
		return
	}

	page, size := pageParams(c)
	clients, err := h.service.FindByFIO(c.Request.Context(), name, surname, patronymic, page, size)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// @Summary      Профиль текущего клиента
// @Tags         Clients
// @Router       /api/client/me [get]
func (h *ClientHandler) Me(c *gin.Context) {
	login, ok := currentLogin(c)
	if !ok {
		errorResponse(c, http.StatusUnauthorized, "Missing principal")
		return
	}
	client, err := h.service.GetCurrentClient(c.Request.Context(), login)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// @Summary      Перевод средств между клиентами
// @Description  Отправителем может быть только аутентифицированный клиент
// @Tags         Transfer
// @Router       /api/transfer [post]
func (h *ClientHandler) Transfer(c *gin.Context) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, validationMessage([]fieldError{{"amount", "invalid amount"}}))
		return
	}

	login, ok := currentLogin(c)
	if !ok {
		errorResponse(c, http.StatusUnauthorized, "Missing principal")
		return
	}
	caller, err := h.service.GetCurrentClient(c.Request.Context(), login)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if caller.ID != req.FromClientID {
		h.log.Infow("[transfer] caller is not the sender", "caller", caller.ID, "from", req.FromClientID)
		errorResponse(c, http.StatusUnauthorized, "Transfer sender must be the authenticated client")
		return
	}

	if err := h.service.Transfer(c.Request.Context(), req.FromClientID, req.ToClientID, amount); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
