package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerDisburser(t *testing.T) {
	res, err := LedgerDisburser{}.Disburse(context.Background(), DisbursementRequest{
		UserID:    7,
		Amount:    decimal.RequireFromString("12.50"),
		Reference: "c-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ledger_c-1", res.Reference)
	assert.Equal(t, "COMPLETED", res.Status)

	_, err = LedgerDisburser{}.Disburse(context.Background(), DisbursementRequest{Amount: decimal.Zero, Reference: "c-2"})
	assert.ErrorIs(t, err, ErrInvalidDisbursement)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LedgerDisburser{}.Disburse(ctx, DisbursementRequest{Amount: decimal.NewFromInt(1), Reference: "c-3"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayDisburser(t *testing.T) {
	var got gatewayTransferReq
	var idempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/merchants/login":
			_ = json.NewEncoder(w).Encode(gatewayLoginResp{Token: "tok"})
		case "/api/v1/transfers":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			idempotencyKey = r.Header.Get("Idempotency-Key")
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(gatewayTransferResp{Reference: "gw-99", Status: "QUEUED"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	g := NewGatewayDisburser(srv.URL, "ops@rafflehub.test", "secret", nil)
	res, err := g.Disburse(context.Background(), DisbursementRequest{
		UserID:    3,
		Amount:    decimal.RequireFromString("8.5"),
		Reference: "commission-abc",
		Reason:    "commission payout",
	})
	require.NoError(t, err)
	assert.Equal(t, "gw-99", res.Reference)
	assert.Equal(t, "QUEUED", res.Status)
	assert.Equal(t, "commission-abc", idempotencyKey)
	assert.Equal(t, "8.50", got.Amount)
	assert.Equal(t, uint(3), got.UserID)
}

func TestGatewayDisburserRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/merchants/login" {
			_ = json.NewEncoder(w).Encode(gatewayLoginResp{Token: "tok"})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"insufficient float"}`))
	}))
	defer srv.Close()

	g := NewGatewayDisburser(srv.URL, "ops@rafflehub.test", "secret", nil)
	_, err := g.Disburse(context.Background(), DisbursementRequest{UserID: 1, Amount: decimal.NewFromInt(5), Reference: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestGatewayDisburserLoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	g := NewGatewayDisburser(srv.URL, "ops@rafflehub.test", "wrong", nil)
	_, err := g.Disburse(context.Background(), DisbursementRequest{UserID: 1, Amount: decimal.NewFromInt(5), Reference: "r"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway login")
}
