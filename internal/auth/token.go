// Package auth obtains OAuth2 client-credentials tokens for upstream calls.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/north-identity/reconvalidator/internal/logger"
	"github.com/north-identity/reconvalidator/internal/retry"
)

const (
	// refreshBuffer is subtracted from the token lifetime so a refresh
	// happens before the token actually expires.
	refreshBuffer = 60 * time.Second

	// errorBodyLimit bounds how much of an upstream error body is kept.
	errorBodyLimit = 2048
)

// Credentials identifies a client against the token endpoint.
type Credentials struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scopes        string
}

// Token is a bearer token with its advertised lifetime.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// AuthError indicates the token endpoint rejected the request or returned a
// malformed response.
type AuthError struct {
	Status int
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token request failed: %v", e.Err)
	}
	return fmt.Sprintf("token request failed (%d): %s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Client fetches tokens over HTTP.
type Client struct {
	http   *http.Client
	logger logger.Logger
}

// NewClient creates a token client.
func NewClient(httpClient *http.Client, log logger.Logger) *Client {
	return &Client{http: httpClient, logger: log}
}

// FetchToken performs one client-credentials grant against the endpoint.
func (c *Client) FetchToken(ctx context.Context, creds Credentials) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if creds.Scopes != "" {
		form.Set("scope", creds.Scopes)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(creds.ClientID, creds.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	var token Token
	if decodeErr := json.NewDecoder(resp.Body).Decode(&token); decodeErr != nil {
		return nil, &AuthError{Err: fmt.Errorf("decode token response: %w", decodeErr)}
	}
	if token.AccessToken == "" {
		return nil, &AuthError{Err: fmt.Errorf("token response missing access_token")}
	}

	c.logger.Debug("token obtained",
		logger.Int("expires_in", token.ExpiresIn),
	)
	return &token, nil
}

// TokenSource hands out a valid bearer token, refreshing proactively when
// the current one is within the refresh buffer of expiry. Refreshes are
// retried twice with a 2s base backoff.
type TokenSource struct {
	client *Client
	creds  Credentials

	retryCfg retry.Config

	mu         sync.Mutex
	current    *Token
	obtainedAt time.Time

	now func() time.Time
}

// NewTokenSource creates a token source for the given credentials.
func NewTokenSource(client *Client, creds Credentials) *TokenSource {
	return &TokenSource{
		client: client,
		creds:  creds,
		retryCfg: retry.Config{
			MaxRetries: 2,
			BaseDelay:  2 * time.Second,
		},
		now: time.Now,
	}
}

// Token returns a valid access token, fetching or refreshing as needed.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && !s.nearExpiry() {
		return s.current.AccessToken, nil
	}

	var token *Token
	err := retry.Do(ctx, s.retryCfg, func() error {
		var fetchErr error
		token, fetchErr = s.client.FetchToken(ctx, s.creds)
		return fetchErr
	})
	if err != nil {
		return "", err
	}

	s.current = token
	s.obtainedAt = s.now()
	return token.AccessToken, nil
}

// nearExpiry reports whether the held token is within the refresh buffer of
// its advertised lifetime. Callers must hold the mutex.
func (s *TokenSource) nearExpiry() bool {
	lifetime := time.Duration(s.current.ExpiresIn) * time.Second
	return s.now().Sub(s.obtainedAt) > lifetime-refreshBuffer
}
