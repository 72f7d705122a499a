package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"bankingservice/internal/handlers"
	"bankingservice/internal/repositories"
	"bankingservice/internal/routes"
	"bankingservice/internal/services"
)

type testServer struct {
	router *gin.Engine
	repo   *repositories.MemoryClientRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repositories.NewMemoryClientRepository()
	log := zap.NewNop().Sugar()
	auth := services.NewAuthService(repo, bcrypt.MinCost)
	tokens := services.NewTokenService("test-secret", "banking", time.Hour)
	clients := services.NewClientService(
		repo,
		auth,
		services.AccrualConfig{Rate: 10500, CapFactor: 20700},
		services.PageConfig{DefaultSize: 20, MaxSize: 100},
		0,
		log,
	)

	router := gin.New()
	routes.SetupRoutes(
		router,
		handlers.NewAuthHandler(clients, auth, tokens, log),
		handlers.NewClientHandler(clients, log),
		tokens,
	)
	return &testServer{router: router, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func signUpBody(login, email, phone, balance string) map[string]string {
	return map[string]string{
		"login":           login,
		"password":        "pw1",
		"name":            "Alice",
		"surname":         "Smith",
		"phone_main":      phone,
		"email_main":      email,
		"initial_balance": balance,
	}
}

func (s *testServer) signUp(t *testing.T, login, email, phone, balance string) (int64, string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/auth/sign-up", "", signUpBody(login, email, phone, balance))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	return int64(body["id"].(float64)), body["token"].(string)
}

func TestSignUpAndSignIn(t *testing.T) {
	s := newTestServer(t)

	id, token := s.signUp(t, "alice", "a@x", "+1", "100.00")
	assert.NotEmpty(t, token)

	// вход с теми же учётными данными даёт рабочий токен
	w := s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{
		"login": "alice", "password": "pw1",
	})
	require.Equal(t, http.StatusOK, w.Code)
	token2 := decodeBody(t, w)["token"].(string)
	assert.NotEmpty(t, token2)

	w = s.do(t, http.MethodGet, "/api/client/me", token2, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeBody(t, w)
	assert.Equal(t, "alice", me["login"])
	assert.Equal(t, "100.00", me["current_balance"])

	c, err := s.repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "100.00", c.Funds.String())
}

func TestSignInWrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice", "a@x", "+1", "")

	w := s.do(t, http.MethodPost, "/auth/sign-in", "", map[string]string{
		"login": "alice", "password": "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body, "message")
	assert.Contains(t, body, "timestamp")
}

func TestSignUpDuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "alice", "a@x", "+1", "")

	w := s.do(t, http.MethodPost, "/auth/sign-up", "", signUpBody("bob", "a@x", "+2", ""))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSignUpValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/auth/sign-up", "", map[string]string{
		"login": "alice", "password": "pw1", "name": "A",
		"phone_main": "+1", "email_main": "a@x",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	msg := decodeBody(t, w)["message"].(string)
	assert.Contains(t, msg, "name - should be between 2 and 30 characters")
	assert.Contains(t, msg, "surname - should not be empty")
}

func TestAdditionalPhoneFlow(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.signUp(t, "alice", "a@x", "+1", "")
	bobID, bobToken := s.signUp(t, "bob", "b@x", "+2", "")

	put := func(token string, id int64, path string, body any) *httptest.ResponseRecorder {
		return s.do(t, http.MethodPut, fmt.Sprintf("/api/client/%d/%s", id, path), token, body)
	}

	w := put(aliceToken, aliceID, "second_phone", map[string]string{"phone_additional": "+100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// у Боба тот же номер не пройдёт
	w = put(bobToken, bobID, "second_phone", map[string]string{"phone_additional": "+100"})
	require.Equal(t, http.StatusConflict, w.Code)

	// после очистки у Алисы Боб занимает номер
	w = put(aliceToken, aliceID, "cleared_phone", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = put(bobToken, bobID, "second_phone", map[string]string{"phone_additional": "+100"})
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLookupEndpoints(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signUp(t, "alice", "a@x", "+1", "")

	w := s.do(t, http.MethodGet, "/api/clients/email?email=a@x", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decodeBody(t, w)["login"])

	w = s.do(t, http.MethodGet, "/api/clients/phone?phoneNumber=%2B1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/clients/email?email=absent@x", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Client not found!", decodeBody(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/clients/birthdate?birthdate=31-12-1999", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferFlow(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.signUp(t, "alice", "a@x", "+1", "100.00")
	bobID, bobToken := s.signUp(t, "bob", "b@x", "+2", "50.00")

	transfer := func(token string, from, to int64, amount string) *httptest.ResponseRecorder {
		return s.do(t, http.MethodPost, "/api/transfer", token, map[string]any{
			"from_client_id": from,
			"to_client_id":   to,
			"amount":         amount,
		})
	}

	w := transfer(aliceToken, aliceID, bobID, "30.00")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	a, _ := s.repo.GetByID(context.Background(), aliceID)
	b, _ := s.repo.GetByID(context.Background(), bobID)
	assert.Equal(t, "70.00", a.Funds.String())
	assert.Equal(t, "80.00", b.Funds.String())

	// нехватка средств - балансы не меняются
	w = transfer(aliceToken, aliceID, bobID, "200.00")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	a, _ = s.repo.GetByID(context.Background(), aliceID)
	assert.Equal(t, "70.00", a.Funds.String())

	// отправителем может быть только сам аутентифицированный клиент
	w = transfer(bobToken, aliceID, bobID, "10.00")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = transfer(aliceToken, aliceID, aliceID, "10.00")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBearerRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/clients/email?email=a@x", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body := decodeBody(t, w)
	assert.Contains(t, body, "message")
	assert.Contains(t, body, "timestamp")

	w = s.do(t, http.MethodGet, "/api/clients/email?email=a@x", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// легаси-регистрация публичная
	w = s.do(t, http.MethodPost, "/api/client", "", map[string]string{
		"login": "carol", "password": "pw", "name": "Carol", "surname": "Jones",
		"phone_main": "+3", "email_main": "c@x", "birth_date": "01/01/1990",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
