// Package directory implements the paginated search client for the
// directory service holding the authoritative identity records.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/north-identity/reconvalidator/internal/logger"
)

// searchFields is the fixed projection requested on every page: only the
// attributes the comparison engine consumes.
const searchFields = "_id,userName,mail,givenName,sn,accountStatus,externalId,externalIdHasDashes"

const errorBodyLimit = 2048

// Record is one identity record from the directory. It is an immutable
// snapshot of the fetched page and is never mutated downstream.
type Record struct {
	ID                  string `json:"_id"`
	Username            string `json:"userName"`
	Email               string `json:"mail"`
	GivenName           string `json:"givenName"`
	Surname             string `json:"sn"`
	AccountStatus       string `json:"accountStatus"`
	ExternalID          string `json:"externalId"`
	ExternalIDHasDashes string `json:"externalIdHasDashes"`
}

// Page is one page of search results.
type Page struct {
	Records          []Record `json:"result"`
	ResultCount      int      `json:"resultCount"`
	NextCursor       string   `json:"pagedResultsCookie"`
	TotalPagedResult int      `json:"totalPagedResults"`
}

// SearchError indicates the directory rejected a search request.
type SearchError struct {
	Status int
	Body   string
	Err    error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("directory search failed: %v", e.Err)
	}
	return fmt.Sprintf("directory search failed (%d): %s", e.Status, e.Body)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Client performs cursor-paginated searches against a directory tenant.
type Client struct {
	http     *http.Client
	logger   logger.Logger
	userPath string
}

// NewClient creates a directory client. userPath is the managed-user
// collection path under the tenant base URL; empty selects the default.
func NewClient(httpClient *http.Client, log logger.Logger, userPath string) *Client {
	if userPath == "" {
		userPath = "/openidm/managed/user"
	}
	return &Client{http: httpClient, logger: log, userPath: userPath}
}

// Search fetches one page of records. An empty cursor starts from the
// beginning; the returned page's NextCursor is empty on the last page.
// An empty Records slice also signals end-of-pagination.
func (c *Client) Search(ctx context.Context, baseURL, token, filter string, pageSize int, cursor string) (*Page, error) {
	base := strings.TrimRight(baseURL, "/")
	searchURL, err := url.Parse(base + c.userPath)
	if err != nil {
		return nil, &SearchError{Err: fmt.Errorf("parse base url: %w", err)}
	}

	q := searchURL.Query()
	q.Set("_queryFilter", filter)
	q.Set("_fields", searchFields)
	q.Set("_pageSize", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("_pagedResultsCookie", cursor)
	}
	searchURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL.String(), nil)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-API-Version", "resource=1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &SearchError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &SearchError{Status: resp.StatusCode, Body: string(body)}
	}

	var page Page
	if decodeErr := json.NewDecoder(resp.Body).Decode(&page); decodeErr != nil {
		return nil, &SearchError{Err: fmt.Errorf("decode search response: %w", decodeErr)}
	}

	c.logger.Debug("directory page fetched",
		logger.Int("records", len(page.Records)),
		logger.Bool("has_cursor", page.NextCursor != ""),
	)
	return &page, nil
}
