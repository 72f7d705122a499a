package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Фиксированные значения токена - как у исходного сервиса.
const tokenSubject = "User details"

// TokenService выпускает и проверяет bearer-токены, привязанные к логину.
// Состояния нет: один общий секрет, проверка чистая, без списка отзыва.
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

type tokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Issue подписывает HS256-токен с логином клиента и сроком действия TTL.
func (s *TokenService) Issue(login string) (string, error) {
	now := time.Now()
	claims := &tokenClaims{
		Username: login,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenSubject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify возвращает логин из валидного токена. Просроченный хоть на секунду
// токен - ErrTokenExpired, всё остальное - ErrTokenInvalid.
func (s *TokenService) Verify(tokenStr string) (string, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		// принимаем только HMAC
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithSubject(tokenSubject),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrTokenInvalid
	}
	if !token.Valid || claims.Username == "" {
		// токены старого формата без claim "username" не принимаем
		return "", ErrTokenInvalid
	}
	return claims.Username, nil
}
