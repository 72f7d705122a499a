package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"bankingservice/internal/models"
	"bankingservice/internal/repositories"
)

// dummyHash - bcrypt от случайной строки. Сравниваем с ним пароль, когда
// логин не найден: время ответа не выдаёт существование учётки.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// AuthService отвечает за хеширование паролей и проверку учётных данных.
type AuthService struct {
	repo repositories.ClientRepository
	cost int
}

func NewAuthService(repo repositories.ClientRepository, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, cost: bcryptCost}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *AuthService) CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Authenticate проверяет пару логин/пароль и возвращает клиента.
func (s *AuthService) Authenticate(ctx context.Context, login, password string) (*models.Client, error) {
	client, err := s.repo.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// холостое сравнение против фиктивного хеша
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !s.CheckPassword(password, client.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return client, nil
}
