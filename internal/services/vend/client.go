package vend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"
	"topup-system/internal/status"
	"topup-system/utils"
)

type Config struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	APIKey    string `json:"apiKey" mapstructure:"api_key"`
	APISecret string `json:"apiSecret" mapstructure:"api_secret"`
}

// Client talks to the vending provider. It holds the current bearer token and
// refreshes it at most once per call when the provider answers 401.
type Client struct {
	// baseURL is the base url of the vending provider.
	baseURL string

	// apiKey and apiSecret are exchanged for a bearer token.
	apiKey    string
	apiSecret string

	// accessToken is used to authenticate with the provider.
	accessToken string

	// mu guards accessToken.
	mu sync.Mutex

	// breaker fails calls fast while the provider is down.
	breaker *utils.Breaker

	// hc is the http client.
	hc *http.Client
}

// New creates a vending provider client and obtains an initial access token.
func New(ctx context.Context, c *Config) (*Client, error) {
	client := &Client{
		baseURL:   c.BaseURL,
		apiKey:    c.APIKey,
		apiSecret: c.APISecret,
		breaker:   utils.NewBreaker("vend"),

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	return client, nil
}

// setAccessToken set access token to client.
func (c *Client) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

// getAccessToken get access token from client.
func (c *Client) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect makes http call to perform authentication with the provider.
func (c *Client) connect(ctx context.Context) (string, error) {
	body := fmt.Sprintf(`{"api_key":%q,"api_secret":%q}`, c.apiKey, c.apiSecret)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/auth"), bodyReader)
	if err != nil {
		return "", fmt.Errorf("connectVend: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("connectVend: http.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", &status.AuthError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var reply struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("connectVend: json.Decode: %w", err)
	}
	if reply.Data.AccessToken == "" {
		return "", &status.AuthError{StatusCode: resp.StatusCode, Body: "empty accessToken in auth response"}
	}

	return reply.Data.AccessToken, nil
}

// post sends an authenticated JSON request and decodes the reply into out.
// A 401 triggers exactly one token refresh and one retry of the same call; a
// second 401 surfaces as VendError. No other failure is retried.
func (c *Client) post(ctx context.Context, op, path, body string, out any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("%s: %w", op, status.ErrProviderUnavailable)
	}

	code, raw, err := c.doOnce(ctx, path, body)
	if err != nil {
		c.breaker.Record(false)
		return fmt.Errorf("%s: %w", op, err)
	}

	if code == http.StatusUnauthorized {
		token, err := c.connect(ctx)
		if err != nil {
			c.breaker.Record(false)
			return err
		}
		c.setAccessToken(token)

		code, raw, err = c.doOnce(ctx, path, body)
		if err != nil {
			c.breaker.Record(false)
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if code < 200 || code > 299 {
		c.breaker.Record(code < 500)
		return &status.VendError{Op: op, StatusCode: code, Body: string(raw)}
	}
	c.breaker.Record(true)

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: json.Decode: %w", op, err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, path, body string) (int, []byte, error) {
	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), path), bytes.NewReader([]byte(body)))
	if err != nil {
		return 0, nil, fmt.Errorf("http.NewReq: %w", err)
	}
	req.Header.Set("Accept", "application/json")
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
