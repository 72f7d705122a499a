package repositories

import (
	"errors"
	"fmt"
)

// Поля уникальности, по которым может случиться конфликт при вставке/изменении.
const (
	FieldLogin     = "login"
	FieldEmailMain = "email_main"
	FieldEmailAdd  = "email_additional"
	FieldPhoneMain = "phone_main"
	FieldPhoneAdd  = "phone_additional"
)

var (
	ErrNotFound          = errors.New("client not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// ConflictError несёт точное поле, по которому нарушена уникальность.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique conflict on %s", e.Field)
}
