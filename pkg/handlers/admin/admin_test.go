package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chris/stars-ledger/pkg/api"
	"github.com/chris/stars-ledger/pkg/handlers/admin"
	"github.com/chris/stars-ledger/pkg/middleware"
	"github.com/chris/stars-ledger/pkg/models"
	"github.com/chris/stars-ledger/pkg/settlement"
	"github.com/chris/stars-ledger/pkg/storage"
	"github.com/chris/stars-ledger/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	actor   string
	outcome *settlement.Outcome
	intent  *models.PaymentIntent
	account *models.Account
	err     error
}

func (s *stubService) ManualVerify(_ context.Context, _ int64, actorID string) (*settlement.Outcome, error) {
	s.actor = actorID
	return s.outcome, s.err
}

func (s *stubService) Refund(_ context.Context, _ int64, actorID string) (*models.PaymentIntent, error) {
	s.actor = actorID
	return s.intent, s.err
}

func (s *stubService) Fail(_ context.Context, _ int64, actorID string) (*models.PaymentIntent, error) {
	s.actor = actorID
	return s.intent, s.err
}

func (s *stubService) AdjustBalance(_ context.Context, _ string, _ int64, actorID string) (*models.Account, error) {
	s.actor = actorID
	return s.account, s.err
}

func (s *stubService) SetAccountStatus(_ context.Context, _ string, _ models.AccountStatus, actorID string) (*models.Account, error) {
	s.actor = actorID
	return s.account, s.err
}

type stubAudit struct {
	limit int32
}

func (s *stubAudit) List(_ context.Context, limit int32) ([]models.AuditLogEntry, error) {
	s.limit = limit
	return []models.AuditLogEntry{{ID: "1", ActorID: "100", Action: models.ActionRefund, TargetID: "3"}}, nil
}

func asAdmin(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithAdmin(req.Context(), "100"))
}

type stubAuthenticator struct {
	initData string
	err      error
}

func (s *stubAuthenticator) Login(initData string) (string, time.Time, error) {
	s.initData = initData
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	return "signed-token", time.Now().Add(time.Hour), nil
}

func login(h *admin.AdminHandler, body string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.AdminLogin(rr, httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body)))
	return rr
}

func TestAdminLogin(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		auth := &stubAuthenticator{}
		h := admin.NewAdminHandler(auth, nil, nil, nil)

		rr := login(h, `{"initData":"auth_date=1&hash=abc"}`)

		var body api.AdminLoginResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "signed-token", body.Token)
		assert.Equal(t, "auth_date=1&hash=abc", auth.initData)
		assert.WithinDuration(t, time.Now().Add(time.Hour), body.ExpiresAt, time.Minute)
	})

	t.Run("Telegram Id Alone Is Rejected", func(t *testing.T) {
		auth := &stubAuthenticator{}
		h := admin.NewAdminHandler(auth, nil, nil, nil)

		rr := login(h, `{"telegramId":100}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, auth.initData)
	})

	t.Run("Forged Init Data", func(t *testing.T) {
		h := admin.NewAdminHandler(&stubAuthenticator{err: middleware.ErrInvalidInitData}, nil, nil, nil)

		rr := login(h, `{"initData":"user=%7B%22id%22%3A100%7D&hash=00"}`)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Expired Init Data", func(t *testing.T) {
		h := admin.NewAdminHandler(&stubAuthenticator{err: middleware.ErrInitDataExpired}, nil, nil, nil)

		rr := login(h, `{"initData":"auth_date=1&hash=abc"}`)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("Not Admin", func(t *testing.T) {
		h := admin.NewAdminHandler(&stubAuthenticator{err: middleware.ErrNotAdmin}, nil, nil, nil)

		rr := login(h, `{"initData":"auth_date=1&hash=abc"}`)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Disabled", func(t *testing.T) {
		h := admin.NewAdminHandler(&stubAuthenticator{err: middleware.ErrAuthDisabled}, nil, nil, nil)

		rr := login(h, `{"initData":"auth_date=1&hash=abc"}`)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestListPayments(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStorage := new(mocks.ApiStore)
		mockStorage.On("ListIntents", mock.Anything, mock.MatchedBy(func(s *models.IntentStatus) bool {
			return s != nil && *s == models.PAID
		}), int32(200)).Return([]models.PaymentIntent{{ID: 3, AccountID: "42", Amount: 100, Status: models.PAID}}, nil)
		h := admin.NewAdminHandler(nil, mockStorage, nil, nil)

		status, limit := "paid", int32(1000)
		rr := httptest.NewRecorder()
		h.ListPayments(rr, asAdmin(httptest.NewRequest(http.MethodGet, "/api/admin/payments", nil)), api.ListPaymentsParams{Status: &status, Limit: &limit})

		var body []api.PaymentIntent
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, http.StatusOK, rr.Code)
		require.Len(t, body, 1)
		assert.Equal(t, "42", body[0].TelegramId)
		mockStorage.AssertExpectations(t)
	})

	t.Run("Unknown Status", func(t *testing.T) {
		mockStorage := new(mocks.ApiStore)
		h := admin.NewAdminHandler(nil, mockStorage, nil, nil)

		status := "lost"
		rr := httptest.NewRecorder()
		h.ListPayments(rr, httptest.NewRequest(http.MethodGet, "/", nil), api.ListPaymentsParams{Status: &status})

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockStorage.AssertNotCalled(t, "ListIntents", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestListUsers(t *testing.T) {
	mockStorage := new(mocks.ApiStore)
	mockStorage.On("ListAccounts", mock.Anything, (*models.AccountStatus)(nil)).Return([]models.Account{{ID: "42", Balance: 10, Status: models.ACTIVE}}, nil)
	h := admin.NewAdminHandler(nil, mockStorage, nil, nil)

	rr := httptest.NewRecorder()
	h.ListUsers(rr, httptest.NewRequest(http.MethodGet, "/", nil), api.ListUsersParams{})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"balanceStars":10`)
	mockStorage.AssertExpectations(t)
}

func TestListLogs(t *testing.T) {
	audit := &stubAudit{}
	h := admin.NewAdminHandler(nil, nil, audit, nil)

	rr := httptest.NewRecorder()
	h.ListLogs(rr, httptest.NewRequest(http.MethodGet, "/", nil), api.ListLogsParams{})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int32(50), audit.limit)
	assert.Contains(t, rr.Body.String(), `"action":"payment_refund"`)
}

func TestGetStats(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStorage := new(mocks.ApiStore)
		mockStorage.On("ListAccounts", mock.Anything, (*models.AccountStatus)(nil)).Return([]models.Account{{ID: "42"}}, nil)
		mockStorage.On("ListIntents", mock.Anything, (*models.IntentStatus)(nil), int32(0)).Return([]models.PaymentIntent{{ID: 1, Amount: 100, Status: models.PAID}}, nil)
		h := admin.NewAdminHandler(nil, mockStorage, nil, nil)

		rr := httptest.NewRecorder()
		h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"accounts":1,"blockedAccounts":0,"payments":{"paid":1},"starsPaid":100}`, rr.Body.String())
	})

	t.Run("Generic Storage Failure", func(t *testing.T) {
		mockStorage := new(mocks.ApiStore)
		mockStorage.On("ListAccounts", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
		h := admin.NewAdminHandler(nil, mockStorage, nil, nil)

		rr := httptest.NewRecorder()
		h.GetStats(rr, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestPaymentActions(t *testing.T) {
	t.Run("Verify", func(t *testing.T) {
		service := &stubService{outcome: &settlement.Outcome{Status: settlement.StatusPaid, Intent: &models.PaymentIntent{ID: 3, Status: models.PAID}}}
		h := admin.NewAdminHandler(nil, nil, nil, service)

		rr := httptest.NewRecorder()
		h.VerifyPayment(rr, asAdmin(httptest.NewRequest(http.MethodPost, "/", nil)), 3)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "100", service.actor)
		assert.Contains(t, rr.Body.String(), `"status":"paid"`)
	})

	t.Run("Refund Pending Conflicts", func(t *testing.T) {
		h := admin.NewAdminHandler(nil, nil, nil, &stubService{err: storage.ErrInvalidTransition})

		rr := httptest.NewRecorder()
		h.RefundPayment(rr, asAdmin(httptest.NewRequest(http.MethodPost, "/", nil)), 3)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Fail Unknown", func(t *testing.T) {
		h := admin.NewAdminHandler(nil, nil, nil, &stubService{err: storage.ErrIntentNotFound})

		rr := httptest.NewRecorder()
		h.FailPayment(rr, asAdmin(httptest.NewRequest(http.MethodPost, "/", nil)), 404)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestUserActions(t *testing.T) {
	t.Run("Adjust Balance", func(t *testing.T) {
		service := &stubService{account: &models.Account{ID: "42", Balance: 70, Status: models.ACTIVE}}
		h := admin.NewAdminHandler(nil, nil, nil, service)

		rr := httptest.NewRecorder()
		h.AdjustUserBalance(rr, asAdmin(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta":-30}`))), "42")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"balanceStars":70`)
	})

	t.Run("Zero Delta", func(t *testing.T) {
		h := admin.NewAdminHandler(nil, nil, nil, &stubService{err: settlement.ErrValidation})

		rr := httptest.NewRecorder()
		h.AdjustUserBalance(rr, asAdmin(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta":0}`))), "42")

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Set Status", func(t *testing.T) {
		service := &stubService{account: &models.Account{ID: "42", Status: models.BLOCKED}}
		h := admin.NewAdminHandler(nil, nil, nil, service)

		rr := httptest.NewRecorder()
		h.SetUserStatus(rr, asAdmin(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"blocked"}`))), "42")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"status":"blocked"`)
	})
}
