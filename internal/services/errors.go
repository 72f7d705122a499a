package services

import "errors"

// Ошибки доменного слоя; транспорт переводит их в HTTP-статусы.
var (
	ErrLoginTaken         = errors.New("login is already taken")
	ErrEmailTaken         = errors.New("email is already taken")
	ErrPhoneTaken         = errors.New("phone number is already taken")
	ErrNotFound           = errors.New("client not found")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrSameAccount        = errors.New("cannot transfer money to the same client")
	ErrInvalidAmount      = errors.New("transfer amount must be positive")
	ErrInsufficientFunds  = errors.New("insufficient balance")
)
