package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds configuration for the HTTP memory service client.
type Config struct {
	// Target is the base URL of the memory service, e.g. "http://localhost:7700".
	Target string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string
}

// HTTPClient implements Client over the memory service's HTTP API.
//
// Per-call timeouts are the caller's responsibility via context deadlines;
// the underlying http.Client carries only a generous ceiling so a missing
// deadline cannot hang a worker forever.
type HTTPClient struct {
	config     Config
	httpClient *http.Client
}

// NewHTTPClient creates a memory service client.
func NewHTTPClient(config Config) (*HTTPClient, error) {
	if config.Target == "" {
		return nil, errors.New("memory service target is required")
	}
	if _, err := url.Parse(config.Target); err != nil {
		return nil, fmt.Errorf("invalid memory service target: %w", err)
	}

	return &HTTPClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Fetch retrieves context for a conversation.
// A 404 is a confirmed-empty result, not an error.
func (c *HTTPClient) Fetch(ctx context.Context, conversationID, mode string) (*Context, error) {
	u := fmt.Sprintf("%s/v1/conversations/%s/context?mode=%s",
		c.config.Target, url.PathEscape(conversationID), url.QueryEscape(mode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating fetch request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return &Context{ConversationID: conversationID}, nil
	}

	var payload Context
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &ServerError{StatusCode: resp.StatusCode}
	}
	if payload.ConversationID == "" {
		payload.ConversationID = conversationID
	}

	return &payload, nil
}

// appendRequest is the wire shape for appending a turn.
type appendRequest struct {
	Role     string            `json:"role"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Append appends one turn to a conversation.
func (c *HTTPClient) Append(ctx context.Context, conversationID, role, text string, metadata map[string]string) error {
	u := fmt.Sprintf("%s/v1/conversations/%s/turns",
		c.config.Target, url.PathEscape(conversationID))

	body, err := json.Marshal(appendRequest{Role: role, Text: text, Metadata: metadata})
	if err != nil {
		return fmt.Errorf("encoding append request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating append request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if err := classifyStatus(resp.StatusCode); err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return &ServerError{StatusCode: resp.StatusCode}
	}

	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	req.Header.Set("Accept", "application/json")
}

// classifyStatus maps response codes onto the gateway's failure taxonomy.
// 404 is handled by the caller (confirmed empty); other 4xx fall through.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &AuthError{StatusCode: code}
	case code >= 500:
		return &ServerError{StatusCode: code}
	default:
		return nil
	}
}

func classifyTransportError(err error) error {
	if IsTimeout(err) {
		return &TimeoutError{Err: err}
	}
	// Connection refused and friends count as server-side faults: the
	// service is unreachable, which corroborates like a 5xx.
	return &ServerError{Err: err}
}

var _ Client = (*HTTPClient)(nil)
