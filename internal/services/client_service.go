package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bankingservice/internal/models"
	"bankingservice/internal/money"
	"bankingservice/internal/repositories"
)

// AccrualConfig - параметры правила роста баланса.
type AccrualConfig struct {
	Rate      int64 // множитель за цикл, масштаб money.FactorScale (1.05 -> 10500)
	CapFactor int64 // потолок к initial_funds (2.07 -> 20700)
}

// PageConfig - умолчание и максимум размера страницы для поисков.
type PageConfig struct {
	DefaultSize int
	MaxSize     int
}

// ClientService - доменные операции над клиентами: регистрация, правка
// контактов с проверками уникальности, поиски, начисление, переводы.
type ClientService struct {
	repo    repositories.ClientRepository
	auth    *AuthService
	accrual AccrualConfig
	pages   PageConfig
	initial money.Amount
	log     *zap.SugaredLogger
}

func NewClientService(
	repo repositories.ClientRepository,
	auth *AuthService,
	accrual AccrualConfig,
	pages PageConfig,
	initialBalance money.Amount,
	log *zap.SugaredLogger,
) *ClientService {
	return &ClientService{
		repo:    repo,
		auth:    auth,
		accrual: accrual,
		pages:   pages,
		initial: initialBalance,
		log:     log,
	}
}

// translateConflict переводит конфликт хранилища в доменную ошибку по полю.
func translateConflict(err error) error {
	var conflict *repositories.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}
	switch {
	case conflict.Field == repositories.FieldLogin:
		return ErrLoginTaken
	case strings.HasPrefix(conflict.Field, "email"):
		return ErrEmailTaken
	case strings.HasPrefix(conflict.Field, "phone"):
		return ErrPhoneTaken
	}
	return err
}

// Register хеширует пароль и вставляет клиента. Если стартовый баланс не
// задан, берётся сконфигурированное значение; initial_funds после создания
// не меняется.
func (s *ClientService) Register(ctx context.Context, client *models.Client, password string, initialBalance *money.Amount) (int64, error) {
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return 0, err
	}
	client.PasswordHash = hash

	balance := s.initial
	if initialBalance != nil {
		balance = *initialBalance
	}
	client.InitialFunds = balance
	client.Funds = balance

	id, err := s.repo.Create(ctx, client)
	if err != nil {
		return 0, translateConflict(err)
	}
	s.log.Infow("client registered", "id", id, "login", client.Login)
	return id, nil
}

func (s *ClientService) translateUpdate(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrNotFound
	}
	return translateConflict(err)
}

func (s *ClientService) ChangeMainPhone(ctx context.Context, id int64, phone string) error {
	return s.translateUpdate(s.repo.ChangeMainPhone(ctx, id, phone))
}

func (s *ClientService) ChangeMainEmail(ctx context.Context, id int64, email string) error {
	return s.translateUpdate(s.repo.ChangeMainEmail(ctx, id, email))
}

func (s *ClientService) SetAdditionalPhone(ctx context.Context, id int64, phone string) error {
	return s.translateUpdate(s.repo.SetAdditionalPhone(ctx, id, phone))
}

func (s *ClientService) SetAdditionalEmail(ctx context.Context, id int64, email string) error {
	return s.translateUpdate(s.repo.SetAdditionalEmail(ctx, id, email))
}

func (s *ClientService) ClearAdditionalPhone(ctx context.Context, id int64) error {
	return s.translateUpdate(s.repo.ClearAdditionalPhone(ctx, id))
}

func (s *ClientService) ClearAdditionalEmail(ctx context.Context, id int64) error {
	return s.translateUpdate(s.repo.ClearAdditionalEmail(ctx, id))
}

func (s *ClientService) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	c, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// FindByEmail ищет только по основному емейлу - так устроен исходный эндпоинт.
func (s *ClientService) FindByEmail(ctx context.Context, email string) (*models.Client, error) {
	c, err := s.repo.GetByEmailMain(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// FindByPhone ищет по основному или дополнительному номеру; по инварианту
// уникальности совпадение не больше одного.
func (s *ClientService) FindByPhone(ctx context.Context, phone string) (*models.Client, error) {
	c, err := s.repo.GetByPhoneEither(ctx, phone)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// normalizePage превращает (pageNo, pageSize) в limit/offset; страница
// нулевая, размер ограничен конфигом.
func (s *ClientService) normalizePage(pageNo, pageSize int) (limit, offset int) {
	if pageNo < 0 {
		pageNo = 0
	}
	if pageSize <= 0 {
		pageSize = s.pages.DefaultSize
	}
	if pageSize > s.pages.MaxSize {
		pageSize = s.pages.MaxSize
	}
	return pageSize, pageNo * pageSize
}

func (s *ClientService) FindByBirthdateAfter(ctx context.Context, after time.Time, pageNo, pageSize int) ([]*models.Client, error) {
	limit, offset := s.normalizePage(pageNo, pageSize)
	clients, err := s.repo.FindByBirthdateAfter(ctx, after, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, ErrNotFound
	}
	return clients, nil
}

func (s *ClientService) FindByFIO(ctx context.Context, name, surname, patronymic string, pageNo, pageSize int) ([]*models.Client, error) {
	limit, offset := s.normalizePage(pageNo, pageSize)
	clients, err := s.repo.FindByFIO(ctx, name, surname, patronymic, limit, offset)
	if err != nil {
		return nil, err
	}
	if len(clients) == 0 {
		return nil, ErrNotFound
	}
	return clients, nil
}

// GetCurrentClient возвращает запись аутентифицированного клиента по логину
// из проверенного токена.
func (s *ClientService) GetCurrentClient(ctx context.Context, login string) (*models.Client, error) {
	c, err := s.repo.GetByLogin(ctx, login)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// UpdateBalance прогоняет правило начисления по всем клиентам. Строка с
// ошибкой логируется и пропускается, цикл не прерывается.
func (s *ClientService) UpdateBalance(ctx context.Context) error {
	ids, err := s.repo.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("accrual: list clients: %w", err)
	}
	var failed int
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.repo.AccrueBalance(ctx, id, s.accrual.Rate, s.accrual.CapFactor); err != nil {
			failed++
			s.log.Warnw("accrual failed for client", "id", id, "err", err)
		}
	}
	s.log.Infow("accrual cycle finished", "clients", len(ids), "failed", failed)
	return nil
}

// Transfer переводит деньги между клиентами, сохраняя суммарный баланс.
func (s *ClientService) Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) error {
	if fromID == toID {
		return ErrSameAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	err := s.repo.Transfer(ctx, fromID, toID, amount)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrInsufficientFunds):
		return ErrInsufficientFunds
	case err != nil:
		return err
	}
	s.log.Infow("transfer completed", "from", fromID, "to", toID, "amount", amount.String())
	return nil
}
