// Package profile implements the lookup client for the profile store, the
// consumer-identity system the directory records are reconciled against.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/north-identity/reconvalidator/internal/logger"
)

const (
	// batchChunkSize is the maximum number of identifiers per IN-query.
	// The store rejects queries above this size.
	batchChunkSize = 50

	searchPath  = "/accounts.search"
	accountPath = "/accounts.getAccountInfo"

	errorBodyLimit = 2048
)

// Record is one profile-store account, flattened to the fields the
// comparison engine consumes. ErrorCode zero means the account was found.
type Record struct {
	ExternalID   string
	ErrorCode    int
	ErrorMessage string
	Email        string
	FirstName    string
	LastName     string
	IsActive     *bool
	IsRegistered bool
	IsVerified   bool
	CreatedAt    string
	UpdatedAt    string
	LastLoginAt  string
}

// LookupError indicates a transport-level profile store failure, as opposed
// to a well-formed not-found response (which is a Record with ErrorCode set).
type LookupError struct {
	Status int
	Body   string
	Err    error
}

func (e *LookupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("profile lookup failed: %v", e.Err)
	}
	return fmt.Sprintf("profile lookup failed (%d): %s", e.Status, e.Body)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Config holds the profile store connection settings. Credentials are
// service-level, supplied through configuration rather than per request.
type Config struct {
	BaseURL string
	APIKey  string
	Secret  string
	UserKey string
}

// Client talks to the profile store's search and account endpoints.
type Client struct {
	cfg    Config
	http   *http.Client
	logger logger.Logger
}

// NewClient creates a profile store client.
func NewClient(cfg Config, httpClient *http.Client, log logger.Logger) *Client {
	return &Client{cfg: cfg, http: httpClient, logger: log}
}

// wireAccount is the store's account shape for both search rows and
// individual account responses.
type wireAccount struct {
	UID          string `json:"UID"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Profile      *struct {
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"profile"`
	IsActive     *bool  `json:"isActive"`
	IsRegistered bool   `json:"isRegistered"`
	IsVerified   bool   `json:"isVerified"`
	Created      string `json:"created"`
	LastUpdated  string `json:"lastUpdated"`
	LastLogin    string `json:"lastLogin"`
}

type wireSearchResponse struct {
	ErrorCode    int           `json:"errorCode"`
	ErrorMessage string        `json:"errorMessage"`
	Results      []wireAccount `json:"results"`
	NextCursorID string        `json:"nextCursorId"`
}

func (a *wireAccount) toRecord() *Record {
	rec := &Record{
		ExternalID:   a.UID,
		ErrorCode:    a.ErrorCode,
		ErrorMessage: a.ErrorMessage,
		IsActive:     a.IsActive,
		IsRegistered: a.IsRegistered,
		IsVerified:   a.IsVerified,
		CreatedAt:    a.Created,
		UpdatedAt:    a.LastUpdated,
		LastLoginAt:  a.LastLogin,
	}
	if a.Profile != nil {
		rec.Email = a.Profile.Email
		rec.FirstName = a.Profile.FirstName
		rec.LastName = a.Profile.LastName
	}
	return rec
}

// BatchLookup resolves ids in chunks of 50 via IN-queries, transparently
// following continuation cursors, and returns the found accounts keyed by
// lowercased identifier. A failed chunk is logged and skipped: its ids are
// simply absent from the map, which routes them to the individual fallback.
func (c *Client) BatchLookup(ctx context.Context, ids []string) (map[string]*Record, error) {
	results := make(map[string]*Record)
	if len(ids) == 0 {
		return results, nil
	}

	for start := 0; start < len(ids); start += batchChunkSize {
		end := min(start+batchChunkSize, len(ids))
		chunk := ids[start:end]

		if err := c.lookupChunk(ctx, chunk, results); err != nil {
			c.logger.Warn("batch chunk failed, ids fall through to individual lookup",
				logger.Int("chunk_start", start),
				logger.Int("chunk_size", len(chunk)),
				logger.Error(err),
			)
		}
	}

	return results, nil
}

// lookupChunk issues one IN-query and merges all of its (possibly paged)
// results into out.
func (c *Client) lookupChunk(ctx context.Context, chunk []string, out map[string]*Record) error {
	quoted := make([]string, len(chunk))
	for i, id := range chunk {
		quoted[i] = `"` + id + `"`
	}
	query := fmt.Sprintf(
		"SELECT UID, profile, isActive, created, lastUpdated, lastLogin FROM accounts WHERE UID IN (%s)",
		strings.Join(quoted, ","),
	)

	form := c.baseForm()
	form.Set("query", query)

	for {
		var resp wireSearchResponse
		if err := c.postForm(ctx, searchPath, form, &resp); err != nil {
			return err
		}
		if resp.ErrorCode != 0 {
			return &LookupError{Err: fmt.Errorf("search error %d: %s", resp.ErrorCode, resp.ErrorMessage)}
		}

		for i := range resp.Results {
			acct := resp.Results[i]
			rec := acct.toRecord()
			rec.ErrorCode = 0
			out[strings.ToLower(acct.UID)] = rec
		}

		if resp.NextCursorID == "" {
			return nil
		}
		form = c.baseForm()
		form.Set("cursorId", resp.NextCursorID)
	}
}

// Lookup fetches a single account by identifier. A well-formed not-found
// response is returned as a Record with a nonzero ErrorCode, not an error.
func (c *Client) Lookup(ctx context.Context, id string) (*Record, error) {
	form := c.baseForm()
	form.Set("UID", id)
	form.Set("include", "profile")

	var acct wireAccount
	if err := c.postForm(ctx, accountPath, form, &acct); err != nil {
		return nil, err
	}
	if acct.UID == "" {
		acct.UID = id
	}
	return acct.toRecord(), nil
}

func (c *Client) baseForm() url.Values {
	form := url.Values{}
	form.Set("apiKey", c.cfg.APIKey)
	form.Set("secret", c.cfg.Secret)
	if c.cfg.UserKey != "" {
		form.Set("userKey", c.cfg.UserKey)
	}
	form.Set("format", "json")
	return form
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &LookupError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return &LookupError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &LookupError{Status: resp.StatusCode, Body: string(body)}
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return &LookupError{Err: fmt.Errorf("decode response: %w", decodeErr)}
	}
	return nil
}
