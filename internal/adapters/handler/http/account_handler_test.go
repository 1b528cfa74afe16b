package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/core/services"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func setupAccountHandler() (*gin.Engine, *MockAccountRepository, *services.TokenService) {
	gin.SetMode(gin.TestMode)

	mockRepo := new(MockAccountRepository)
	tokens := services.NewTokenService("account-secret", "kanso-test", time.Hour)
	handler := NewAccountHandler(services.NewAccountService(mockRepo, tokens, zerolog.Nop()), zerolog.Nop())

	router := gin.New()
	handler.RegisterRoutes(router.Group(""))

	return router, mockRepo, tokens
}

func postJSON(router *gin.Engine, path string, payload map[string]string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewBuffer(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAccountHandler_Register(t *testing.T) {
	t.Run("Success: Should return 201 and created account (No Password)", func(t *testing.T) {
		router, mockRepo, _ := setupAccountHandler()
		mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Account")).Return(nil)

		w := postJSON(router, "/auth/register", map[string]string{
			"email":    "api_test@kanso.app",
			"password": "PasswordSuperSegreta1!",
		})

		assert.Equal(t, http.StatusCreated, w.Code)

		var response accountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "api_test@kanso.app", response.Email)
		assert.NotEmpty(t, response.ID)
		assert.NotContains(t, w.Body.String(), "password")

		mockRepo.AssertExpectations(t)
	})

	tests := []struct {
		name       string
		payload    map[string]string
		repoErr    error
		wantStatus int
	}{
		{
			name:       "Fail: Should return 400 for invalid email",
			payload:    map[string]string{"email": "not-an-email", "password": "Password123!"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Fail: Should return 400 for short password",
			payload:    map[string]string{"email": "valid@email.com", "password": "short"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Fail: Should return 409 Conflict if email exists",
			payload:    map[string]string{"email": "duplicate@kanso.app", "password": "PasswordValidissima!"},
			repoErr:    domain.ErrEmailAlreadyExists,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "Fail: Should return 500 on DB failure",
			payload:    map[string]string{"email": "crash@kanso.app", "password": "PasswordValidissima!"},
			repoErr:    errors.New("db connection lost"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, mockRepo, _ := setupAccountHandler()
			if tt.repoErr != nil {
				mockRepo.On("Create", mock.Anything, mock.Anything).Return(tt.repoErr)
			}

			w := postJSON(router, "/auth/register", tt.payload)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.repoErr == nil {
				mockRepo.AssertNotCalled(t, "Create")
			}
		})
	}
}

func TestAccountHandler_Login(t *testing.T) {
	stored, err := domain.NewAccount("acc-42", "me@kanso.app", time.Now())
	require.NoError(t, err)
	require.NoError(t, stored.SetPassword("CorrectHorse1", time.Now()))

	t.Run("Success: Should return a token for the account", func(t *testing.T) {
		router, mockRepo, tokens := setupAccountHandler()
		mockRepo.On("GetByEmail", mock.Anything, "me@kanso.app").Return(stored, nil)

		w := postJSON(router, "/auth/login", map[string]string{"email": "me@kanso.app", "password": "CorrectHorse1"})
		require.Equal(t, http.StatusOK, w.Code)

		var response loginResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "acc-42", response.OwnerID)

		owner, err := tokens.ValidateToken(response.Token)
		require.NoError(t, err)
		assert.Equal(t, "acc-42", owner)
	})

	t.Run("Fail: Should return 401 for a wrong password", func(t *testing.T) {
		router, mockRepo, _ := setupAccountHandler()
		mockRepo.On("GetByEmail", mock.Anything, "me@kanso.app").Return(stored, nil)

		w := postJSON(router, "/auth/login", map[string]string{"email": "me@kanso.app", "password": "WrongHorse1"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Fail: Should return 400 without a password", func(t *testing.T) {
		router, _, _ := setupAccountHandler()

		w := postJSON(router, "/auth/login", map[string]string{"email": "me@kanso.app"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
