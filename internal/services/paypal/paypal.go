package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"topup-system/internal/status"

	"github.com/shopspring/decimal"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

type Config struct {
	// Mode is "sandbox" or "live".
	Mode         string `json:"mode" mapstructure:"mode"`
	ClientID     string `json:"clientId" mapstructure:"client_id"`
	ClientSecret string `json:"clientSecret" mapstructure:"client_secret"`

	// BaseURL overrides the mode-derived endpoint. Used in tests.
	BaseURL string `json:"baseUrl" mapstructure:"base_url"`

	// Currency is the fixed charge currency.
	Currency string `json:"currency" mapstructure:"currency"`
}

// Client is a PayPal REST payments client. It holds an OAuth access token
// behind a mutex and refreshes it at most once per call on 401.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	currency     string

	accessToken string
	mu          sync.Mutex

	hc *http.Client
}

// New creates a PayPal client and obtains an initial OAuth token.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = sandboxBaseURL
		if cfg.Mode == "live" {
			baseURL = liveBaseURL
		}
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "USD"
	}

	c := &Client{
		baseURL:      baseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		currency:     currency,

		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}

	token, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	c.setAccessToken(token)

	return c, nil
}

func (c *Client) setAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = token
}

func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect exchanges the client credentials for an OAuth access token.
func (c *Client) connect(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("connectPayPal: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("connectPayPal: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &status.AuthError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var reply struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("connectPayPal: json.Decode: %w", err)
	}

	return reply.AccessToken, nil
}

// CreatePayment builds a payment intent for total and returns the URL the
// payer must be redirected to. returnURL must carry the transaction id; the
// gateway passes no other continuation state back.
func (c *Client) CreatePayment(ctx context.Context, total decimal.Decimal, reference, returnURL, cancelURL string) (string, error) {
	body := fmt.Sprintf(`{"intent":"sale","payer":{"payment_method":"paypal"},"transactions":[{"amount":{"total":%q,"currency":%q},"description":%q}],"redirect_urls":{"return_url":%q,"cancel_url":%q}}`,
		total.StringFixed(2), c.currency, fmt.Sprintf("Top-up for %s", reference), returnURL, cancelURL)

	code, raw, err := c.post(ctx, "/v1/payments/payment", body)
	if err != nil {
		return "", err
	}
	if code != http.StatusCreated && code != http.StatusOK {
		return "", &status.PaymentError{Op: "create", Message: string(raw)}
	}

	var reply struct {
		ID    string `json:"id"`
		Links []struct {
			Href   string `json:"href"`
			Rel    string `json:"rel"`
			Method string `json:"method"`
		} `json:"links"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("createPayment: json.Decode: %w", err)
	}

	for _, link := range reply.Links {
		if link.Rel == "approval_url" {
			return link.Href, nil
		}
	}

	return "", &status.PaymentError{Op: "create", Message: "no approval_url in gateway response"}
}

// ExecutePayment confirms an approved payment. A false result is final: the
// payer may have cancelled or the authorization expired, so it is never
// treated as transient.
func (c *Client) ExecutePayment(ctx context.Context, paymentID, payerID string) (bool, string) {
	body := fmt.Sprintf(`{"payer_id":%q}`, payerID)

	code, raw, err := c.post(ctx, fmt.Sprintf("/v1/payments/payment/%s/execute", url.PathEscape(paymentID)), body)
	if err != nil {
		return false, err.Error()
	}
	if code != http.StatusOK {
		return false, string(raw)
	}

	var reply struct {
		State string `json:"state"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return false, fmt.Sprintf("executePayment: json.Decode: %v", err)
	}
	if reply.State != "approved" {
		return false, fmt.Sprintf("payment not approved: state=%s", reply.State)
	}

	return true, ""
}

// post sends an authenticated JSON request, refreshing the token once on 401.
func (c *Client) post(ctx context.Context, path, body string) (int, []byte, error) {
	code, raw, err := c.doOnce(ctx, path, body)
	if err != nil {
		return 0, nil, err
	}

	if code == http.StatusUnauthorized {
		token, err := c.connect(ctx)
		if err != nil {
			return 0, nil, err
		}
		c.setAccessToken(token)

		code, raw, err = c.doOnce(ctx, path, body)
		if err != nil {
			return 0, nil, err
		}
	}

	return code, raw, nil
}

func (c *Client) doOnce(ctx context.Context, path, body string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		return 0, nil, fmt.Errorf("http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.getAccessToken()))

	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	return resp.StatusCode, raw, nil
}
