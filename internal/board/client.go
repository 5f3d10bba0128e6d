// Package board pushes tickets to the task board as cards.
//
// [Client] talks to the Trello REST API. [Submitter] builds the card from a
// ticket, issues exactly one creation call per ticket and records metrics;
// it is best-effort and never returns an error to the workflow. [LogSink] is the
// dry-run stand-in used when no board credentials are configured.
package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Trello API root.
	DefaultBaseURL = "https://api.trello.com"

	maxResponseBytes = 1 << 20
	maxErrorBody     = 512
)

// ErrMissingCredentials is returned by [NewClient] when a key, token or list
// ID is empty.
var ErrMissingCredentials = errors.New("board: missing credentials")

// Credentials identify the board account and the target list.
type Credentials struct {
	APIKey string
	Token  string
	ListID string
}

// Complete reports whether every field is set.
func (c Credentials) Complete() bool {
	return c.APIKey != "" && c.Token != "" && c.ListID != ""
}

// Card is the payload of one card creation.
type Card struct {
	Name string
	Desc string
}

// APIError is returned for non-2xx board responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("board: api status %d: %s", e.StatusCode, e.Body)
}

// CardCreator creates one card and returns the board's JSON reply.
type CardCreator interface {
	CreateCard(ctx context.Context, card Card) (map[string]any, error)
}

// ClientOption configures a [Client].
type ClientOption func(*Client)

// WithBaseURL overrides the API root. Default: [DefaultBaseURL].
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client. Default: a client with a 15s timeout.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// Client is a minimal Trello card client. It is safe for concurrent use.
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
}

// NewClient returns a Client for creds.
func NewClient(creds Credentials, opts ...ClientOption) (*Client, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		creds:   creds,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// CreateCard issues POST /1/cards with the card fields and credentials as
// query parameters.
func (c *Client) CreateCard(ctx context.Context, card Card) (map[string]any, error) {
	q := url.Values{}
	q.Set("idList", c.creds.ListID)
	q.Set("name", card.Name)
	q.Set("desc", card.Desc)
	q.Set("key", c.creds.APIKey)
	q.Set("token", c.creds.Token)
	endpoint := c.baseURL + "/1/cards?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("board: create card: %w", c.redact(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("board: create card: %w", c.redact(err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("board: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("board: decode response: %w", err)
	}
	return out, nil
}

// redact strips the credential-bearing query string from URL errors.
func (c *Client) redact(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		if u, perr := url.Parse(uerr.URL); perr == nil {
			u.RawQuery = ""
			uerr.URL = u.String()
		}
	}
	return err
}

var _ CardCreator = (*Client)(nil)
