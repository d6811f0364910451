// Package provider is a client for the managed backend's GoTrue-compatible auth API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/agentstore/storefront-auth/internal/config"
	"github.com/agentstore/storefront-auth/internal/metrics"
	"github.com/agentstore/storefront-auth/internal/models"
)

const maxErrorBody = 64 << 10

// Client calls the auth provider. Every call is bounded by the configured timeout.
type Client struct {
	baseURL    string
	anonKey    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a Client. httpClient may be nil.
func NewClient(cfg config.ProviderConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.URL,
		anonKey:    cfg.AnonKey,
		timeout:    timeout,
		httpClient: httpClient,
	}
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string            `json:"email"`
	Password string            `json:"password"`
	Data     map[string]string `json:"data,omitempty"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

// SignInWithPassword exchanges an email/password pair for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	var session models.Session
	err := c.do(ctx, "signin", "/auth/v1/token", url.Values{"grant_type": {"password"}}, "",
		passwordGrant{Email: email, Password: password}, &session)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// SignUp registers a new user. When the provider auto-confirms, the response is a
// session wrapping the user; otherwise it is the bare user.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*models.ProviderUser, error) {
	var resp struct {
		models.ProviderUser
		User *models.ProviderUser `json:"user"`
	}
	err := c.do(ctx, "signup", "/auth/v1/signup", nil, "",
		signUpRequest{Email: email, Password: password, Data: metadata}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.User != nil {
		return resp.User, nil
	}
	return &resp.ProviderUser, nil
}

// SignOut revokes the session identified by accessToken
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, "signout", "/auth/v1/logout", nil, accessToken, nil, nil)
}

// ResetPasswordForEmail asks the provider to mail a recovery link
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, "recover", "/auth/v1/recover", query, "", recoverRequest{Email: email}, nil)
}

func (c *Client) do(ctx context.Context, op, path string, query url.Values, bearer string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordProviderRequest(op, "error")
		return &models.ProviderError{Code: "request_failed", Message: err.Error()}
	}
	defer resp.Body.Close()

	metrics.RecordProviderRequest(op, strconv.Itoa(resp.StatusCode/100)+"xx")

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &models.ProviderError{StatusCode: resp.StatusCode, Code: "invalid_response", Message: err.Error()}
	}
	return nil
}

// errorBody covers both the current and the legacy GoTrue error shapes
type errorBody struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func decodeError(resp *http.Response) error {
	perr := &models.ProviderError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		perr.Message = http.StatusText(resp.StatusCode)
		return perr
	}

	perr.Code = firstNonEmpty(body.ErrorCode, body.Error)
	perr.Message = firstNonEmpty(body.Msg, body.Message, body.ErrorDescription, body.Error, http.StatusText(resp.StatusCode))
	return perr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
