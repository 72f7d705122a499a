package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"bankingservice/internal/models"
	"bankingservice/internal/money"
)

// ClientRepository - хранилище клиентов. Владеет индексами уникальности:
// каждый метод записи выполняется одной транзакцией над нужными строками.
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) (int64, error)

	GetByID(ctx context.Context, id int64) (*models.Client, error)
	GetByLogin(ctx context.Context, login string) (*models.Client, error)
	GetByEmailMain(ctx context.Context, email string) (*models.Client, error)
	GetByPhoneEither(ctx context.Context, phone string) (*models.Client, error)
	FindByBirthdateAfter(ctx context.Context, after time.Time, limit, offset int) ([]*models.Client, error)
	FindByFIO(ctx context.Context, name, surname, patronymic string, limit, offset int) ([]*models.Client, error)

	ChangeMainPhone(ctx context.Context, id int64, phone string) error
	ChangeMainEmail(ctx context.Context, id int64, email string) error
	SetAdditionalPhone(ctx context.Context, id int64, phone string) error
	SetAdditionalEmail(ctx context.Context, id int64, email string) error
	ClearAdditionalPhone(ctx context.Context, id int64) error
	ClearAdditionalEmail(ctx context.Context, id int64) error

	Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) error
	AccrueBalance(ctx context.Context, id int64, rate, capFactor int64) error
	ListIDs(ctx context.Context) ([]int64, error)
}

type postgresClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) ClientRepository {
	return &postgresClientRepository{db: db}
}

const clientColumns = `
	id, login, password_hash, name, surname, patronymic, birth_date,
	phone_main, phone_additional, email_main, email_additional,
	initial_funds, funds
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	c := &models.Client{}
	var (
		patronymic sql.NullString
		birthDate  sql.NullTime
		phoneAdd   sql.NullString
		emailAdd   sql.NullString
	)
	err := row.Scan(
		&c.ID, &c.Login, &c.PasswordHash, &c.Name, &c.Surname, &patronymic, &birthDate,
		&c.PhoneMain, &phoneAdd, &c.EmailMain, &emailAdd,
		&c.InitialFunds, &c.Funds,
	)
	if err != nil {
		return nil, err
	}
	if patronymic.Valid {
		s := patronymic.String
		c.Patronymic = &s
	}
	if birthDate.Valid {
		d := models.Date{Time: birthDate.Time}
		c.DateOfBirth = &d
	}
	if phoneAdd.Valid {
		s := phoneAdd.String
		c.PhoneAdd = &s
	}
	if emailAdd.Valid {
		s := emailAdd.String
		c.EmailAdd = &s
	}
	return c, nil
}

// conflictField переводит нарушение уникального индекса Postgres (23505)
// в имя колонки; подстраховка на случай гонки между проверкой и вставкой.
func conflictField(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return "", false
	}
	for _, f := range []string{FieldEmailMain, FieldEmailAdd, FieldPhoneMain, FieldPhoneAdd, FieldLogin} {
		if strings.Contains(pqErr.Constraint, f) {
			return f, true
		}
	}
	return "", false
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func valueTaken(ctx context.Context, q execer, query, value string) (bool, error) {
	var taken bool
	if err := q.QueryRowContext(ctx, query, value).Scan(&taken); err != nil {
		return false, err
	}
	return taken, nil
}

const (
	loginTakenQ = `SELECT EXISTS (SELECT 1 FROM clients WHERE login = $1)`
	emailTakenQ = `SELECT EXISTS (SELECT 1 FROM clients WHERE email_main = $1 OR email_additional = $1)`
	phoneTakenQ = `SELECT EXISTS (SELECT 1 FROM clients WHERE phone_main = $1 OR phone_additional = $1)`
)

func (r *postgresClientRepository) Create(ctx context.Context, client *models.Client) (int64, error) {
	// дубль собственного контакта во втором слоте - конфликт ещё до SQL:
	// EXISTS смотрит только существующие строки и этого не поймает
	if client.EmailAdd != nil && *client.EmailAdd == client.EmailMain {
		return 0, &ConflictError{Field: FieldEmailAdd}
	}
	if client.PhoneAdd != nil && *client.PhoneAdd == client.PhoneMain {
		return 0, &ConflictError{Field: FieldPhoneAdd}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("create client: begin: %w", err)
	}
	defer tx.Rollback()

	// Явные проверки: уникальный индекс на колонку не ловит пересечение
	// main-значения одной строки с additional-значением другой.
	checks := []struct {
		query string
		value string
		field string
	}{
		{loginTakenQ, client.Login, FieldLogin},
		{emailTakenQ, client.EmailMain, FieldEmailMain},
		{phoneTakenQ, client.PhoneMain, FieldPhoneMain},
	}
	if client.EmailAdd != nil {
		checks = append(checks, struct {
			query string
			value string
			field string
		}{emailTakenQ, *client.EmailAdd, FieldEmailAdd})
	}
	if client.PhoneAdd != nil {
		checks = append(checks, struct {
			query string
			value string
			field string
		}{phoneTakenQ, *client.PhoneAdd, FieldPhoneAdd})
	}
	for _, ch := range checks {
		taken, err := valueTaken(ctx, tx, ch.query, ch.value)
		if err != nil {
			return 0, fmt.Errorf("create client: check %s: %w", ch.field, err)
		}
		if taken {
			return 0, &ConflictError{Field: ch.field}
		}
	}

	const q = `
		INSERT INTO clients (
			login, password_hash, name, surname, patronymic, birth_date,
			phone_main, phone_additional, email_main, email_additional,
			initial_funds, funds
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id
	`
	var (
		patronymic sql.NullString
		birthDate  sql.NullTime
		phoneAdd   sql.NullString
		emailAdd   sql.NullString
	)
	if client.Patronymic != nil {
		patronymic = sql.NullString{String: *client.Patronymic, Valid: true}
	}
	if client.DateOfBirth != nil {
		birthDate = sql.NullTime{Time: client.DateOfBirth.Time, Valid: true}
	}
	if client.PhoneAdd != nil {
		phoneAdd = sql.NullString{String: *client.PhoneAdd, Valid: true}
	}
	if client.EmailAdd != nil {
		emailAdd = sql.NullString{String: *client.EmailAdd, Valid: true}
	}

	var id int64
	err = tx.QueryRowContext(ctx, q,
		client.Login, client.PasswordHash, client.Name, client.Surname, patronymic, birthDate,
		client.PhoneMain, phoneAdd, client.EmailMain, emailAdd,
		int64(client.InitialFunds), int64(client.Funds),
	).Scan(&id)
	if err != nil {
		if field, ok := conflictField(err); ok {
			return 0, &ConflictError{Field: field}
		}
		return 0, fmt.Errorf("create client: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("create client: commit: %w", err)
	}
	client.ID = id
	return id, nil
}

func (r *postgresClientRepository) getBy(ctx context.Context, where string, arg any) (*models.Client, error) {
	q := `SELECT ` + clientColumns + ` FROM clients WHERE ` + where
	c, err := scanClient(r.db.QueryRowContext(ctx, q, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get client: %w", err)
	}
	return c, nil
}

func (r *postgresClientRepository) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	return r.getBy(ctx, `id = $1`, id)
}

func (r *postgresClientRepository) GetByLogin(ctx context.Context, login string) (*models.Client, error) {
	return r.getBy(ctx, `login = $1`, login)
}

func (r *postgresClientRepository) GetByEmailMain(ctx context.Context, email string) (*models.Client, error) {
	// по построению исходного эндпоинта ищем только по основному емейлу
	return r.getBy(ctx, `email_main = $1`, email)
}

func (r *postgresClientRepository) GetByPhoneEither(ctx context.Context, phone string) (*models.Client, error) {
	return r.getBy(ctx, `phone_main = $1 OR phone_additional = $1`, phone)
}

func (r *postgresClientRepository) queryClients(ctx context.Context, q string, args ...any) ([]*models.Client, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query clients: %w", err)
	}
	defer rows.Close()

	var res []*models.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *postgresClientRepository) FindByBirthdateAfter(ctx context.Context, after time.Time, limit, offset int) ([]*models.Client, error) {
	q := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE birth_date > $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`
	return r.queryClients(ctx, q, after, limit, offset)
}

func (r *postgresClientRepository) FindByFIO(ctx context.Context, name, surname, patronymic string, limit, offset int) ([]*models.Client, error) {
	// Шаблоны LIKE берём как есть - wildcards подставляет вызывающий.
	// Пустое отчество не фильтрует (у клиента его может не быть вовсе).
	q := `
		SELECT ` + clientColumns + `
		FROM clients
		WHERE LOWER(name) LIKE LOWER($1)
		  AND LOWER(surname) LIKE LOWER($2)
		  AND ($3 = '' OR LOWER(COALESCE(patronymic, '')) LIKE LOWER($3))
		ORDER BY id
		LIMIT $4 OFFSET $5
	`
	return r.queryClients(ctx, q, name, surname, patronymic, limit, offset)
}

// changeContact - общая схема правки контакта: блокируем строку, проверяем
// глобальную уникальность нового значения, пишем.
func (r *postgresClientRepository) changeContact(ctx context.Context, id int64, value, takenQ, updateQ, field string, idempotentSlot func(*models.Client) *string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("change %s: begin: %w", field, err)
	}
	defer tx.Rollback()

	c, err := scanClient(tx.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("change %s: lock row: %w", field, err)
	}

	// установка дополнительного контакта в то же значение - no-op
	if idempotentSlot != nil {
		if cur := idempotentSlot(c); cur != nil && *cur == value {
			return tx.Commit()
		}
	}

	taken, err := valueTaken(ctx, tx, takenQ, value)
	if err != nil {
		return fmt.Errorf("change %s: check: %w", field, err)
	}
	if taken {
		return &ConflictError{Field: field}
	}

	if _, err := tx.ExecContext(ctx, updateQ, value, id); err != nil {
		if f, ok := conflictField(err); ok {
			return &ConflictError{Field: f}
		}
		return fmt.Errorf("change %s: update: %w", field, err)
	}
	return tx.Commit()
}

func (r *postgresClientRepository) ChangeMainPhone(ctx context.Context, id int64, phone string) error {
	return r.changeContact(ctx, id, phone, phoneTakenQ,
		`UPDATE clients SET phone_main = $1 WHERE id = $2`, FieldPhoneMain, nil)
}

func (r *postgresClientRepository) ChangeMainEmail(ctx context.Context, id int64, email string) error {
	return r.changeContact(ctx, id, email, emailTakenQ,
		`UPDATE clients SET email_main = $1 WHERE id = $2`, FieldEmailMain, nil)
}

func (r *postgresClientRepository) SetAdditionalPhone(ctx context.Context, id int64, phone string) error {
	return r.changeContact(ctx, id, phone, phoneTakenQ,
		`UPDATE clients SET phone_additional = $1 WHERE id = $2`, FieldPhoneAdd,
		func(c *models.Client) *string { return c.PhoneAdd })
}

func (r *postgresClientRepository) SetAdditionalEmail(ctx context.Context, id int64, email string) error {
	return r.changeContact(ctx, id, email, emailTakenQ,
		`UPDATE clients SET email_additional = $1 WHERE id = $2`, FieldEmailAdd,
		func(c *models.Client) *string { return c.EmailAdd })
}

func (r *postgresClientRepository) clearContact(ctx context.Context, id int64, updateQ string) error {
	res, err := r.db.ExecContext(ctx, updateQ, id)
	if err != nil {
		return fmt.Errorf("clear contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postgresClientRepository) ClearAdditionalPhone(ctx context.Context, id int64) error {
	return r.clearContact(ctx, id, `UPDATE clients SET phone_additional = NULL WHERE id = $1`)
}

func (r *postgresClientRepository) ClearAdditionalEmail(ctx context.Context, id int64) error {
	return r.clearContact(ctx, id, `UPDATE clients SET email_additional = NULL WHERE id = $1`)
}

// Transfer атомарно двигает деньги между двумя клиентами. Обе строки
// блокируются в порядке возрастания id - фиксированный порядок исключает
// дедлок между встречными переводами.
func (r *postgresClientRepository) Transfer(ctx context.Context, fromID, toID int64, amount money.Amount) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transfer: begin: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT id, funds FROM clients WHERE id = $1 OR id = $2 ORDER BY id FOR UPDATE`,
		fromID, toID)
	if err != nil {
		return fmt.Errorf("transfer: lock rows: %w", err)
	}
	funds := make(map[int64]money.Amount, 2)
	for rows.Next() {
		var id, v int64
		if err := rows.Scan(&id, &v); err != nil {
			rows.Close()
			return fmt.Errorf("transfer: scan: %w", err)
		}
		funds[id] = money.Amount(v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	fromFunds, okFrom := funds[fromID]
	_, okTo := funds[toID]
	if !okFrom || !okTo {
		return ErrNotFound
	}
	if fromFunds < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE clients SET funds = funds - $1 WHERE id = $2`, int64(amount), fromID); err != nil {
		return fmt.Errorf("transfer: debit: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE clients SET funds = funds + $1 WHERE id = $2`, int64(amount), toID); err != nil {
		return fmt.Errorf("transfer: credit: %w", err)
	}
	return tx.Commit()
}

// AccrueBalance применяет процент роста к одной строке под блокировкой.
// Потолок - initial_funds * capFactor, сравнение включительное.
func (r *postgresClientRepository) AccrueBalance(ctx context.Context, id int64, rate, capFactor int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("accrue: begin: %w", err)
	}
	defer tx.Rollback()

	var initial, funds int64
	err = tx.QueryRowContext(ctx,
		`SELECT initial_funds, funds FROM clients WHERE id = $1 FOR UPDATE`, id).
		Scan(&initial, &funds)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("accrue: lock row: %w", err)
	}

	maxFunds := money.Amount(initial).MulFactor(capFactor)
	cur := money.Amount(funds)
	if cur > maxFunds {
		return tx.Commit()
	}
	next := cur.MulFactor(rate)
	if next > maxFunds {
		next = maxFunds
	}
	if next == cur {
		return tx.Commit()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE clients SET funds = $1 WHERE id = $2`, int64(next), id); err != nil {
		return fmt.Errorf("accrue: update: %w", err)
	}
	return tx.Commit()
}

func (r *postgresClientRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
