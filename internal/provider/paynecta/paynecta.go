// internal/provider/paynecta/paynecta.go
package paynecta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tgggt66uhgg/stk-push/config"
	"github.com/tgggt66uhgg/stk-push/internal/domain"
	"github.com/tgggt66uhgg/stk-push/internal/provider"

	"go.uber.org/zap"
)

const (
	initializePath = "/api/v1/payment/initialize"
	statusPath     = "/api/v1/payment/status"
	maxBodyBytes   = 1 << 20
)

type PaynectaProvider struct {
	config     config.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

func NewPaynectaProvider(cfg config.GatewayConfig, logger *zap.Logger) *PaynectaProvider {
	return &PaynectaProvider{
		config:     cfg,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

var _ provider.Gateway = (*PaynectaProvider)(nil)

func (p *PaynectaProvider) Name() string {
	return "paynecta"
}

// initializeRequest is the STK push body.
type initializeRequest struct {
	Code         string `json:"code"`
	MobileNumber string `json:"mobile_number"`
	Amount       int64  `json:"amount"`
}

type initializeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *struct {
		TransactionReference string `json:"transaction_reference"`
	} `json:"data"`
}

func (p *PaynectaProvider) Initiate(ctx context.Context, phone string, amount int64) (*provider.InitiateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.InitiateTimeout)
	defer cancel()

	body, err := json.Marshal(initializeRequest{
		Code:         p.config.Code,
		MobileNumber: phone,
		Amount:       amount,
	})
	if err != nil {
		return nil, &domain.TransportError{Op: "initialize", Err: err}
	}

	raw, err := p.makeRequest(ctx, http.MethodPost, p.config.BaseURL+initializePath, body)
	if err != nil {
		return nil, err
	}

	var resp initializeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &domain.TransportError{Op: "initialize", Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	out := &provider.InitiateResponse{
		Success: resp.Success,
		Message: resp.Message,
	}
	if resp.Data != nil {
		out.TransactionID = resp.Data.TransactionReference
	}

	p.logger.Info("paynecta initialize response",
		zap.Bool("success", out.Success),
		zap.String("transaction_reference", out.TransactionID),
		zap.String("message", out.Message))

	return out, nil
}

func (p *PaynectaProvider) QueryStatus(ctx context.Context, transactionID string) (*domain.GatewayEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.StatusTimeout)
	defer cancel()

	endpoint := p.config.BaseURL + statusPath + "?transaction_reference=" + url.QueryEscape(transactionID)
	raw, err := p.makeRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	ev, err := domain.ParseEvent(raw)
	if err != nil {
		return nil, &domain.TransportError{Op: "status", Err: err}
	}
	if len(ev.TransactionIDs) == 0 {
		ev.TransactionIDs = []string{transactionID}
	}
	return ev, nil
}

// makeRequest sends an authenticated request and returns the body of a 2xx answer.
func (p *PaynectaProvider) makeRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	op := "status"
	if method == http.MethodPost {
		op = "initialize"
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("X-API-Key", p.config.APIKey)
	req.Header.Set("X-User-Email", p.config.Email)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API error: %s", truncate(raw, 256)),
		}
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
