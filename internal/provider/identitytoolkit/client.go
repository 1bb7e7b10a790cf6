// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package identitytoolkit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/holomush/holosession/internal/provider"
)

// Default service endpoints.
const (
	DefaultEndpoint      = "https://identitytoolkit.googleapis.com/v1"
	DefaultTokenEndpoint = "https://securetoken.googleapis.com/v1"
)

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// Tokens is the result of a successful sign-in, sign-up or refresh.
type Tokens struct {
	IDToken      string
	RefreshToken string
	UID          string
	Email        string
	ExpiresIn    time.Duration
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// APIKey is the project's web API key. Required.
	APIKey string
	// Endpoint is the Identity Toolkit base URL. Defaults to DefaultEndpoint.
	Endpoint string
	// TokenEndpoint is the Secure Token base URL. Defaults to DefaultTokenEndpoint.
	TokenEndpoint string
	// HTTPClient overrides the HTTP client. The default client is traced
	// with otelhttp and uses Timeout.
	HTTPClient *http.Client
	// Timeout bounds each request when HTTPClient is nil. Defaults to 10s.
	Timeout time.Duration
}

// Client issues Identity Toolkit REST calls.
type Client struct {
	apiKey        string
	endpoint      string
	tokenEndpoint string
	http          *http.Client
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, provider.Reject(provider.CodeInvalidAPIKey)
	}
	c := &Client{
		apiKey:        cfg.APIKey,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		tokenEndpoint: strings.TrimRight(cfg.TokenEndpoint, "/"),
		http:          cfg.HTTPClient,
	}
	if c.endpoint == "" {
		c.endpoint = DefaultEndpoint
	}
	if c.tokenEndpoint == "" {
		c.tokenEndpoint = DefaultTokenEndpoint
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c.http = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return c, nil
}

type passwordRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type accountResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	ExpiresIn    string `json:"expiresIn"`
}

func (r accountResponse) tokens() *Tokens {
	return &Tokens{
		IDToken:      r.IDToken,
		RefreshToken: r.RefreshToken,
		UID:          r.LocalID,
		Email:        r.Email,
		ExpiresIn:    parseSeconds(r.ExpiresIn),
	}
}

// SignInWithPassword calls accounts:signInWithPassword.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error) {
	var resp accountResponse
	err := c.postJSON(ctx, c.endpoint+"/accounts:signInWithPassword", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.tokens(), nil
}

// SignUp calls accounts:signUp.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Tokens, error) {
	var resp accountResponse
	err := c.postJSON(ctx, c.endpoint+"/accounts:signUp", passwordRequest{
		Email: email, Password: password, ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.tokens(), nil
}

// SendPasswordReset calls accounts:sendOobCode with requestType PASSWORD_RESET.
func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	req := struct {
		RequestType string `json:"requestType"`
		Email       string `json:"email"`
	}{RequestType: "PASSWORD_RESET", Email: email}
	return c.postJSON(ctx, c.endpoint+"/accounts:sendOobCode", req, nil)
}

type refreshResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	ExpiresIn    string `json:"expires_in"`
}

// Refresh exchanges a refresh token for a new ID token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.tokenEndpoint+"/token"),
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, provider.RejectWithCause(provider.CodeInternalError, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp refreshResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &Tokens{
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		UID:          resp.UserID,
		ExpiresIn:    parseSeconds(resp.ExpiresIn),
	}, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return provider.RejectWithCause(provider.CodeInternalError, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), bytes.NewReader(payload))
	if err != nil {
		return provider.RejectWithCause(provider.CodeInternalError, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return provider.RejectWithCause(provider.CodeNetworkFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp.StatusCode, io.LimitReader(resp.Body, maxErrorBody))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.RejectWithCause(provider.CodeInternalError, err)
	}
	return nil
}

func (c *Client) url(endpoint string) string {
	return endpoint + "?key=" + url.QueryEscape(c.apiKey)
}

func parseSeconds(s string) time.Duration {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
