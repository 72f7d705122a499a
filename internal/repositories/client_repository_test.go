package repositories

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankingservice/internal/models"
	"bankingservice/internal/money"
)

func newMockRepo(t *testing.T) (ClientRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClientRepository(db), mock
}

func existsRows(v bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"exists"}).AddRow(v)
}

func TestPostgresCreate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE login`).
		WithArgs("alice").WillReturnRows(existsRows(false))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE email_main`).
		WithArgs("a@x").WillReturnRows(existsRows(false))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE phone_main`).
		WithArgs("+1").WillReturnRows(existsRows(false))
	mock.ExpectQuery(`INSERT INTO clients`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	c := &models.Client{
		Login: "alice", PasswordHash: "h", Name: "Alice", Surname: "Smith",
		PhoneMain: "+1", EmailMain: "a@x",
	}
	id, err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int64(7), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateEmailConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE login`).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE email_main`).
		WillReturnRows(existsRows(true))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &models.Client{
		Login: "bob", PasswordHash: "h", Name: "Bob", Surname: "Stone",
		PhoneMain: "p", EmailMain: "a@x",
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, FieldEmailMain, conflict.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Гонка между проверкой и вставкой: уникальный индекс срабатывает на
// INSERT, ошибка 23505 переводится в конфликт по имени констрейнта.
func TestPostgresCreateUniqueViolationBackstop(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE login`).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE email_main`).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM clients WHERE phone_main`).
		WillReturnRows(existsRows(false))
	mock.ExpectQuery(`INSERT INTO clients`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "clients_phone_main_key"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &models.Client{
		Login: "bob", PasswordHash: "h", Name: "Bob", Surname: "Stone",
		PhoneMain: "p", EmailMain: "b@x",
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, FieldPhoneMain, conflict.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Дубль собственного контакта между слотами одной записи отклоняется до
// обращения к базе - как и в хранилище в памяти.
func TestPostgresCreateOwnSlotDuplicate(t *testing.T) {
	repo, mock := newMockRepo(t)

	phone := "+1"
	_, err := repo.Create(context.Background(), &models.Client{
		Login: "alice", PasswordHash: "h", Name: "Alice", Surname: "Smith",
		PhoneMain: "+1", PhoneAdd: &phone, EmailMain: "a@x",
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, FieldPhoneAdd, conflict.Field)

	email := "a@x"
	_, err = repo.Create(context.Background(), &models.Client{
		Login: "alice", PasswordHash: "h", Name: "Alice", Surname: "Smith",
		PhoneMain: "+1", EmailMain: "a@x", EmailAdd: &email,
	})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, FieldEmailAdd, conflict.Field)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT(.|\n)+FROM clients WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func transferLockRows(pairs ...[2]int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "funds"})
	for _, p := range pairs {
		rows.AddRow(p[0], p[1])
	}
	return rows
}

func TestPostgresTransfer(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	// обе строки блокируются одним запросом в порядке возрастания id
	mock.ExpectQuery(`SELECT id, funds FROM clients WHERE id = \$1 OR id = \$2 ORDER BY id FOR UPDATE`).
		WithArgs(int64(2), int64(1)).
		WillReturnRows(transferLockRows([2]int64{1, 5000}, [2]int64{2, 10000}))
	mock.ExpectExec(`UPDATE clients SET funds = funds - \$1 WHERE id = \$2`).
		WithArgs(int64(3000), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE clients SET funds = funds \+ \$1 WHERE id = \$2`).
		WithArgs(int64(3000), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Transfer(context.Background(), 2, 1, money.Amount(3000))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransferInsufficientFunds(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, funds FROM clients`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(transferLockRows([2]int64{1, 1000}, [2]int64{2, 0}))
	mock.ExpectRollback()

	err := repo.Transfer(context.Background(), 1, 2, money.Amount(5000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransferNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, funds FROM clients`).
		WithArgs(int64(1), int64(99)).
		WillReturnRows(transferLockRows([2]int64{1, 1000}))
	mock.ExpectRollback()

	err := repo.Transfer(context.Background(), 1, 99, money.Amount(100))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAccrueBalance(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT initial_funds, funds FROM clients WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"initial_funds", "funds"}).AddRow(int64(10000), int64(10000)))
	mock.ExpectExec(`UPDATE clients SET funds = \$1 WHERE id = \$2`).
		WithArgs(int64(10500), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.AccrueBalance(context.Background(), 1, 10500, 20700))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// На потолке начисление ничего не пишет.
func TestPostgresAccrueBalanceAtCap(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT initial_funds, funds FROM clients WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"initial_funds", "funds"}).AddRow(int64(10000), int64(20700)))
	mock.ExpectCommit()

	require.NoError(t, repo.AccrueBalance(context.Background(), 1, 10500, 20700))
	assert.NoError(t, mock.ExpectationsWereMet())
}
