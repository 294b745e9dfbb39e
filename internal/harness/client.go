package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/spinforge/aleatest/internal/domain"
	"github.com/spinforge/aleatest/internal/sign"
)

// Client issues signed protocol requests against a target base URL.
type Client struct {
	baseURL string
	secret  string
	brandID string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a protocol client. httpClient may be nil, in which case
// http.DefaultClient is used.
func NewClient(baseURL, secret, brandID string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		brandID: brandID,
		http:    httpClient,
		logger:  logger,
	}
}

// TransactionResult is a transaction response in both raw form (for the
// validator) and typed form (for the oracle).
type TransactionResult struct {
	StatusCode int
	Body       map[string]any
	Parsed     *domain.TransactionResponse
}

// PostTransaction signs and sends a transaction. The step-level secret
// override, when set, replaces the shared secret for signing only; transport
// and JSON-decoding failures propagate unretried.
func (c *Client) PostTransaction(ctx context.Context, req *domain.TransactionRequest) (*TransactionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction: %w", err)
	}
	secret := c.secret
	if req.Secret != "" {
		secret = req.Secret
	}
	return c.postSigned(ctx, body, secret)
}

// PostPromoPayout signs and sends a PROMO_PAYOUT request.
func (c *Client) PostPromoPayout(ctx context.Context, req *domain.PromoPayoutRequest) (*TransactionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal promo payout: %w", err)
	}
	secret := c.secret
	if req.Secret != "" {
		secret = req.Secret
	}
	return c.postSigned(ctx, body, secret)
}

func (c *Client) postSigned(ctx context.Context, body []byte, secret string) (*TransactionResult, error) {
	digest := sign.Transaction(body, secret)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(sign.HeaderName, sign.DigestHeader(digest))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post transaction: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("transaction response",
		"status", resp.StatusCode,
		"bytes", len(respBody))

	result := &TransactionResult{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(respBody, &result.Body); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	result.Parsed = &domain.TransactionResponse{}
	if err := json.Unmarshal(respBody, result.Parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// BalanceParams are the five signed parameters of a balance lookup.
type BalanceParams struct {
	PlayerID        string
	CasinoSessionID string
	Currency        string
	GameID          string
	SoftwareID      string
	IntegratorID    string
}

// Balance fetches a player's balances via the signed GET endpoint.
func (c *Client) Balance(ctx context.Context, p BalanceParams) (*domain.BalanceResponse, error) {
	u := fmt.Sprintf("%s/brandId/%s/players/%s/balance", c.baseURL, c.brandID, url.PathEscape(p.PlayerID))

	q := url.Values{}
	q.Set("casinoSessionId", p.CasinoSessionID)
	q.Set("currency", p.Currency)
	q.Set("gameId", p.GameID)
	q.Set("softwareId", p.SoftwareID)
	q.Set("integratorId", p.IntegratorID)

	digest := sign.BalanceQuery(p.CasinoSessionID, p.Currency, p.GameID, p.SoftwareID, p.IntegratorID, c.secret)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build balance request: %w", err)
	}
	httpReq.Header.Set(sign.HeaderName, sign.DigestHeader(digest))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("balance lookup returned %d: %s", resp.StatusCode, body)
	}

	var bal domain.BalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&bal); err != nil {
		return nil, fmt.Errorf("decode balance: %w", err)
	}
	return &bal, nil
}
