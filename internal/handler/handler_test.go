package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/davyttu/confidance-crypto/internal/auth"
	"github.com/davyttu/confidance-crypto/internal/config"
	"github.com/davyttu/confidance-crypto/internal/models"
	"github.com/davyttu/confidance-crypto/internal/repository"
	"github.com/davyttu/confidance-crypto/internal/service"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	knownContract = "0x1111111111111111111111111111111111111111"
	wallet        = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

// fakeStore serves one recurring payment; unused Store methods panic.
type fakeStore struct {
	service.Store
	links         map[string]*models.PaymentLink
	notifications []models.Notification
	created       []string
}

func (f *fakeStore) CreateScheduledPayment(ctx context.Context, p *models.ScheduledPayment) error {
	if p.ContractAddress == knownContract {
		return repository.ErrDuplicate
	}
	f.created = append(f.created, "scheduled:"+p.ContractAddress+":"+p.Payer)
	return nil
}

func (f *fakeStore) CreateRecurringPayment(ctx context.Context, p *models.RecurringPayment) error {
	if p.ContractAddress == knownContract {
		return repository.ErrDuplicate
	}
	f.created = append(f.created, "recurring:"+p.ContractAddress+":"+p.Payer)
	return nil
}

func (f *fakeStore) FindRecurringByContract(ctx context.Context, c string) (*models.RecurringPayment, error) {
	if c != knownContract {
		return nil, repository.ErrNotFound
	}
	return &models.RecurringPayment{
		ContractAddress: knownContract, Payer: wallet, TokenSymbol: "USDC",
		MonthlyAmount: decimal.NewFromInt(50), TotalMonths: 12, ExecutedMonths: 1,
		FirstPaymentAt: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), Status: models.RecurringActive,
	}, nil
}

func (f *fakeStore) ListRecurringEvents(ctx context.Context, c string) ([]models.RecurringPaymentEvent, error) {
	return []models.RecurringPaymentEvent{
		{ContractAddress: c, EventType: models.EventCreated},
		{ContractAddress: c, EventType: models.EventExecuted, MonthIndex: 1, TxHash: "0xabc"},
	}, nil
}

func (f *fakeStore) FindScheduledByContract(ctx context.Context, c string) (*models.ScheduledPayment, error) {
	return nil, repository.ErrNotFound
}

func (f *fakeStore) CreatePaymentLink(ctx context.Context, l *models.PaymentLink) error {
	cp := *l
	f.links[l.ID] = &cp
	return nil
}

func (f *fakeStore) FindPaymentLink(ctx context.Context, id string) (*models.PaymentLink, error) {
	l, ok := f.links[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, user string, limit int) ([]models.Notification, error) {
	out := []models.Notification{}
	for _, n := range f.notifications {
		if n.UserAddress == user {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, id int64, user string) error {
	for _, n := range f.notifications {
		if n.ID == id && n.UserAddress == user {
			return nil
		}
	}
	return repository.ErrNotFound
}

type testServer struct {
	router http.Handler
	jwt    *auth.JWTManager
	store  *fakeStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := &fakeStore{
		links:         map[string]*models.PaymentLink{},
		notifications: []models.Notification{{ID: 7, UserAddress: wallet, Kind: models.NotificationReleased, Title: "Payment released"}},
	}
	svc := service.NewService(store, log, &config.Config{LinkSecret: "link-secret"}, nil)
	jm := auth.NewJWTManager("jwt-secret", time.Hour)
	return &testServer{router: NewRouter(NewHandler(svc, log), jm), jwt: jm, store: store}
}

func (s *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGetRecurring(t *testing.T) {
	s := newTestServer(t)

	t.Run("found", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/recurring/"+knownContract, "", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var body models.RecurringDetails
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, knownContract, body.Payment.ContractAddress)
		assert.Len(t, body.Events, 2)
		require.NotNil(t, body.NextPaymentAt)
		assert.True(t, body.NextPaymentAt.Equal(time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("missing_0x_prefix", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/recurring/1111111111111111111111111111111111111111", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid address")
	})

	t.Run("not_hex", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/recurring/0xnothex", "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/recurring/0x9999999999999999999999999999999999999999", "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
	})
}

func TestGetScheduledNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/scheduled/0x9999999999999999999999999999999999999999", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentLinks(t *testing.T) {
	s := newTestServer(t)
	token, err := s.jwt.Generate(wallet)
	require.NoError(t, err)

	body := `{"payee":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","token_symbol":"usdc","amount":"12.5","chain_id":8453,"expires_in":"1h"}`

	rec := s.do(t, http.MethodPost, "/payment-links", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/payment-links", body, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var link models.PaymentLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))
	assert.Equal(t, wallet, link.Creator)
	assert.Equal(t, "USDC", link.TokenSymbol)

	rec = s.do(t, http.MethodGet, "/payment-links/"+link.ID, "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	past := time.Now().Add(-time.Minute)
	s.store.links[link.ID].ExpiresAt = &past
	rec = s.do(t, http.MethodGet, "/payment-links/"+link.ID, "", "")
	// expiry is covered by the signature, so tampering reads as unknown
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/payment-links", `{"payee":"bad"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/payment-links", `{`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExpiredPaymentLink(t *testing.T) {
	s := newTestServer(t)
	token, err := s.jwt.Generate(wallet)
	require.NoError(t, err)

	body := `{"payee":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","token_symbol":"USDC","amount":"1","chain_id":8453,"expires_in":"1ms"}`
	rec := s.do(t, http.MethodPost, "/payment-links", body, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var link models.PaymentLink
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &link))

	time.Sleep(5 * time.Millisecond)
	rec = s.do(t, http.MethodGet, "/payment-links/"+link.ID, "", "")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestNotifications(t *testing.T) {
	s := newTestServer(t)
	token, err := s.jwt.Generate(wallet)
	require.NoError(t, err)

	rec := s.do(t, http.MethodGet, "/notifications", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = s.do(t, http.MethodPost, "/notifications/7/read", "", token)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/notifications/8/read", "", token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/notifications/abc/read", "", token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateUnavailable(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/rates/eur", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRegisterPayments(t *testing.T) {
	s := newTestServer(t)
	token, err := s.jwt.Generate(wallet)
	require.NoError(t, err)

	scheduled := `{"contract_address":"0x2222222222222222222222222222222222222222","chain_id":8453,
		"payee":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","token_symbol":"ETH","amount":"0.1",
		"release_time":"2026-07-01T00:00:00Z"}`
	recurring := `{"contract_address":"0x3333333333333333333333333333333333333333","chain_id":137,
		"payee":"0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb","token_symbol":"USDC","monthly_amount":"25",
		"first_payment_at":"2026-07-01T00:00:00Z","total_months":6}`

	rec := s.do(t, http.MethodPost, "/scheduled", scheduled, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/scheduled", scheduled, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sp models.ScheduledPayment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sp))
	assert.Equal(t, wallet, sp.Payer)

	rec = s.do(t, http.MethodPost, "/recurring", recurring, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, []string{
		"scheduled:0x2222222222222222222222222222222222222222:" + wallet,
		"recurring:0x3333333333333333333333333333333333333333:" + wallet,
	}, s.store.created)

	dup := strings.Replace(recurring, "0x3333333333333333333333333333333333333333", knownContract, 1)
	rec = s.do(t, http.MethodPost, "/recurring", dup, token)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/scheduled", `{"contract_address":"2222"}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestBodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	token, err := s.jwt.Generate(wallet)
	require.NoError(t, err)

	body := `{"description":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rec := s.do(t, http.MethodPost, "/payment-links", body, token)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
