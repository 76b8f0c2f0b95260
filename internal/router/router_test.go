package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rafflehub/config"
	"rafflehub/internal/auth"
	"rafflehub/internal/database/dbtest"
	"rafflehub/internal/domain"
	"rafflehub/internal/models"
	"rafflehub/internal/service"
	"rafflehub/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	cfg    *config.Config
	engine *gin.Engine
	admin  string
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:     config.ServerConfig{Env: "test"},
		JWT:        config.JWTConfig{AccessSecret: "test-secret", Issuer: "rafflehub"},
		Commission: config.CommissionConfig{MaxDepth: 3},
		Raffle:     config.RaffleConfig{MaxSelectionAttempts: 3},
	}
	db := dbtest.New(t)
	svc := service.New(cfg, db, nil, nil)
	hub := ws.NewHub()
	svc.Ledger.SetNotifier(hub)

	env := &testEnv{t: t, db: db, cfg: cfg, engine: Setup(cfg, svc, hub, nil, nil)}
	env.admin = env.token(1, domain.RoleAdmin)
	return env
}

func (e *testEnv) token(userID uint, role string) string {
	e.t.Helper()
	tok, err := auth.GenerateAccessToken(&e.cfg.JWT, userID, role, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedUser(name string, sponsor *models.User) *models.User {
	e.t.Helper()
	u := &models.User{UUID: uuid.NewString(), Username: name, Role: domain.RoleUser}
	if sponsor != nil {
		id := sponsor.ID
		u.SponsorID = &id
	}
	require.NoError(e.t, e.db.Create(u).Error)
	return u
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestAPIRequiresToken(t *testing.T) {
	env := setupTest(t)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/wallet", "", nil).Code)

	user := env.token(5, domain.RoleUser)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/v1/admin/payouts", user, nil).Code)
}

func TestOrderApprovalFlow(t *testing.T) {
	env := setupTest(t)
	sponsor := env.seedUser("sponsor", nil)
	buyer := env.seedUser("buyer", sponsor)

	w := env.do(http.MethodPost, "/api/v1/admin/orders", env.admin, gin.H{
		"user_id": buyer.ID,
		"plan": gin.H{
			"price":              "200",
			"commission_level_1": "10",
			"grant_tickets":      3,
			"ticket_level":       1,
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)

	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%d/approve", order.ID), env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var approval service.ApprovalResult
	decode(t, w, &approval)
	require.NotNil(t, approval.Credit)
	assert.Equal(t, 3, approval.Credit.TicketsGranted)
	assert.Equal(t, 1, approval.Commissions.CommissionsCreated)
	assert.Equal(t, "20.00", approval.Commissions.TotalAmount.StringFixed(2))

	w = env.do(http.MethodGet, fmt.Sprintf("/api/v1/admin/orders/%d", order.ID), env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail struct {
		Order       models.Order        `json:"order"`
		Commissions []models.Commission `json:"commissions"`
	}
	decode(t, w, &detail)
	assert.Equal(t, domain.OrderStatusApproved, detail.Order.Status)
	require.Len(t, detail.Commissions, 1)
	assert.Equal(t, sponsor.ID, detail.Commissions[0].BeneficiaryID)

	w = env.do(http.MethodGet, "/api/v1/wallet", env.token(buyer.ID, domain.RoleUser), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallet service.WalletSnapshot
	decode(t, w, &wallet)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(200)))

	w = env.do(http.MethodGet, "/api/v1/commissions", env.token(sponsor.ID, domain.RoleUser), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var commissions struct {
		Commissions []models.Commission `json:"commissions"`
	}
	decode(t, w, &commissions)
	require.Len(t, commissions.Commissions, 1)
	assert.False(t, commissions.Commissions[0].Paid)

	// not yet available: the payout run skips it
	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/payouts/users/%d", sponsor.ID), env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var payout service.PayoutResult
	decode(t, w, &payout)
	assert.Equal(t, 0, payout.Paid)

	w = env.do(http.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%d/reject", order.ID), env.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodGet, "/api/v1/admin/reconcile", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"drifted":[],"consistent":true}`, w.Body.String())
}

func TestRaffleEndpoints(t *testing.T) {
	env := setupTest(t)
	u := env.seedUser("player", nil)
	tok := env.token(u.ID, domain.RoleUser)

	numbers := []models.Ticket{{Number: "A1"}, {Number: "A2"}, {Number: "A3"}}
	require.NoError(t, env.db.Create(&numbers).Error)
	raffle := &models.Raffle{UUID: uuid.NewString(), Name: "weekly", Status: domain.RaffleStatusActive, UnitTicketValue: decimal.NewFromInt(5), MinTicketsRequired: 1}
	require.NoError(t, env.db.Create(raffle).Error)

	w := env.do(http.MethodPost, "/api/v1/raffles/"+raffle.UUID+"/apply", tok, gin.H{"count": 2})
	assert.Equal(t, http.StatusNotFound, w.Code, "no wallet yet")

	w = env.do(http.MethodGet, "/api/v1/wallet", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodPost, "/api/v1/raffles/"+raffle.UUID+"/apply", tok, gin.H{"count": 2})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	require.NoError(t, env.db.Model(&models.Wallet{}).Where("user_id = ?", u.ID).Update("balance", decimal.NewFromInt(20)).Error)
	w = env.do(http.MethodPost, "/api/v1/raffles/"+raffle.UUID+"/apply", tok, gin.H{"count": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var alloc service.AllocationResult
	decode(t, w, &alloc)
	assert.Len(t, alloc.TicketNumbers, 2)
	assert.True(t, alloc.RemainingBalance.Equal(decimal.NewFromInt(10)))

	w = env.do(http.MethodPost, "/api/v1/raffles/"+raffle.UUID+"/apply", tok, gin.H{"count": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, "/api/v1/raffles/"+raffle.UUID+"/apply", tok, gin.H{"count": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/raffle-tickets/cancel", tok, gin.H{"ticket_uuids": alloc.TicketUUIDs})
	assert.Equal(t, http.StatusConflict, w.Code, "confirmed tickets cannot be cancelled")

	w = env.do(http.MethodGet, "/api/v1/admin/tickets/stats", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":3,"unbound":1}`, w.Body.String())
}

func TestWithdrawalEndpoints(t *testing.T) {
	env := setupTest(t)
	u := env.seedUser("saver", nil)
	tok := env.token(u.ID, domain.RoleUser)
	require.NoError(t, env.db.Create(&models.Wallet{UserID: u.ID, Balance: decimal.NewFromInt(50)}).Error)

	w := env.do(http.MethodPost, "/api/v1/withdrawals", tok, gin.H{"amount": "80"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(http.MethodPost, "/api/v1/withdrawals", tok, gin.H{"amount": "-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/withdrawals", tok, gin.H{"amount": "30"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var wd models.Withdrawal
	decode(t, w, &wd)

	w = env.do(http.MethodPost, "/api/v1/admin/withdrawals/"+wd.UUID+"/fail", env.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodPost, "/api/v1/admin/withdrawals/"+wd.UUID+"/complete", env.admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(http.MethodPost, "/api/v1/admin/withdrawals/missing/complete", env.admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTest(t)
	env.do(http.MethodGet, "/healthz", "", nil)
	w := env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
