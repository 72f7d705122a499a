package models

import (
	"fmt"
	"strings"
	"time"

	"bankingservice/internal/money"
)

// DateLayout - формат дат на проводе (как у исходного API).
const DateLayout = "02/01/2006"

// Date - календарная дата без времени, сериализуется как dd/MM/yyyy.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, want dd/MM/yyyy", s)
	}
	return Date{t}, nil
}

func (d Date) String() string { return d.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Client - банковский клиент: учётные данные, контакты, баланс.
type Client struct {
	ID           int64        `json:"id"`
	Login        string       `json:"login"`
	PasswordHash string       `json:"-"` // не отдаём наружу
	Name         string       `json:"name"`
	Surname      string       `json:"surname"`
	Patronymic   *string      `json:"patronymic,omitempty"`
	DateOfBirth  *Date        `json:"birth_date,omitempty"`
	PhoneMain    string       `json:"phone_main"`
	PhoneAdd     *string      `json:"phone_additional,omitempty"`
	EmailMain    string       `json:"email_main"`
	EmailAdd     *string      `json:"email_additional,omitempty"`
	InitialFunds money.Amount `json:"initial_balance"`
	Funds        money.Amount `json:"current_balance"`
}

type SignUpRequest struct {
	Login          string `json:"login"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	PhoneMain      string `json:"phone_main"`
	EmailMain      string `json:"email_main"`
	InitialBalance string `json:"initial_balance"`
}

type SignInRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// CreateClientRequest - "легаси" регистрация с полным профилем (POST /api/client).
type CreateClientRequest struct {
	Login          string `json:"login"`
	Password       string `json:"password"`
	Name           string `json:"name"`
	Surname        string `json:"surname"`
	Patronymic     string `json:"patronymic"`
	DateOfBirth    string `json:"birth_date"`
	PhoneMain      string `json:"phone_main"`
	PhoneAdd       string `json:"phone_additional"`
	EmailMain      string `json:"email_main"`
	EmailAdd       string `json:"email_additional"`
	InitialBalance string `json:"initial_balance"`
}

type ContactRequest struct {
	PhoneMain string `json:"phone_main"`
	PhoneAdd  string `json:"phone_additional"`
	EmailMain string `json:"email_main"`
	EmailAdd  string `json:"email_additional"`
}

type TransferRequest struct {
	FromClientID int64  `json:"from_client_id"`
	ToClientID   int64  `json:"to_client_id"`
	Amount       string `json:"amount"`
}
