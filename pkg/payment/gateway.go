package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// GatewayDisburser pushes payouts to an external transfer API. It logs in per
// transfer and sends Reference as the idempotency key, so a retried payout
// never pays twice on the gateway side.
type GatewayDisburser struct {
	BaseURL  string
	Email    string
	Password string
	client   *http.Client
	logger   *zap.Logger
}

func NewGatewayDisburser(baseURL, email, password string, logger *zap.Logger) *GatewayDisburser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GatewayDisburser{
		BaseURL:  baseURL,
		Email:    email,
		Password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.Named("gateway"),
	}
}

type gatewayLoginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type gatewayLoginResp struct {
	Token string `json:"token"`
}

type gatewayTransferReq struct {
	Amount      string `json:"amount"`
	UserID      uint   `json:"user_id"`
	Reference   string `json:"reference"`
	Description string `json:"description"`
}

type gatewayTransferResp struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

func (g *GatewayDisburser) token(ctx context.Context) (string, error) {
	body, _ := json.Marshal(gatewayLoginReq{Email: g.Email, Password: g.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/api/v1/merchants/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway login: status %d", resp.StatusCode)
	}
	var out gatewayLoginResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("gateway login: empty token")
	}
	return out.Token, nil
}

func (g *GatewayDisburser) Disburse(ctx context.Context, req DisbursementRequest) (*DisbursementResponse, error) {
	if req.Reference == "" || !req.Amount.IsPositive() {
		return nil, ErrInvalidDisbursement
	}
	token, err := g.token(ctx)
	if err != nil {
		return nil, err
	}

	body, _ := json.Marshal(gatewayTransferReq{
		Amount:      req.Amount.StringFixed(2),
		UserID:      req.UserID,
		Reference:   req.Reference,
		Description: req.Reason,
	})
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/api/v1/transfers", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+token)
	apiReq.Header.Set("Idempotency-Key", req.Reference)

	resp, err := g.client.Do(apiReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	g.logger.Debug("transfer response",
		zap.String("reference", req.Reference),
		zap.Int("status", resp.StatusCode),
	)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway transfer: %d %s", resp.StatusCode, string(respBody))
	}

	var out gatewayTransferResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, err
	}
	if out.Reference == "" {
		out.Reference = req.Reference
	}
	return &DisbursementResponse{
		Reference:   out.Reference,
		Status:      out.Status,
		ProcessedAt: time.Now(),
	}, nil
}
