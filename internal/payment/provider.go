package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrChargeDeclined 支付方拒绝扣款
var ErrChargeDeclined = errors.New("payment: charge declined")

// Charge 支付结果
type Charge struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

// Provider 支付服务商
type Provider interface {
	// Charge 按金额（分）扣款，扣款未成功时返回错误
	Charge(ctx context.Context, amount int64, customerToken string) (*Charge, error)
}

type chargeRequest struct {
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	CustomerToken string `json:"customer_token"`
}

// HTTPProvider 通过 HTTP JSON 接口调用支付服务
type HTTPProvider struct {
	endpoint string
	apiKey   string
	currency string
	client   *http.Client
	logger   *slog.Logger
}

var _ Provider = (*HTTPProvider)(nil)

// NewHTTPProvider 创建 HTTP 支付服务客户端
func NewHTTPProvider(endpoint, apiKey, currency string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		endpoint: endpoint,
		apiKey:   apiKey,
		currency: currency,
		client:   &http.Client{Timeout: timeout},
		logger:   slog.Default(),
	}
}

// Charge 发起扣款
func (p *HTTPProvider) Charge(ctx context.Context, amount int64, customerToken string) (*Charge, error) {
	body, err := json.Marshal(chargeRequest{
		Amount:        amount,
		Currency:      p.currency,
		CustomerToken: customerToken,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("payment: read response: %w", err)
	}

	if resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity {
		return nil, ErrChargeDeclined
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment: unexpected status %d", resp.StatusCode)
	}

	var charge Charge
	if err := json.Unmarshal(data, &charge); err != nil {
		return nil, fmt.Errorf("payment: decode response: %w", err)
	}
	if charge.Status != "succeeded" {
		p.logger.Warn("Payment charge not succeeded", "chargeId", charge.ID, "status", charge.Status)
		return nil, ErrChargeDeclined
	}

	return &charge, nil
}
