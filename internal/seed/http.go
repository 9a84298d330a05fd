package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/vinyl/internal/domain/model"
	"github.com/okian/vinyl/internal/domain/types"
)

// ErrUnexpectedStatus is returned when the service answers with a status
// the client does not expect.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Client talks to a running service over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type recordRequest struct {
	SubmissionID string `json:"submission_id,omitempty"`
	model.RawRecord
}

// Submit posts rec to /records. A 200 answer is a duplicate.
func (c *Client) Submit(ctx context.Context, id string, rec model.RawRecord) (bool, error) { //nolint:gocritic // hugeParam: matches Sink
	body, err := json.Marshal(recordRequest{SubmissionID: id, RawRecord: rec})
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/records", body)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return false, nil
	case http.StatusOK:
		return true, nil
	default:
		return false, statusError(resp)
	}
}

// Healthy reports whether /healthz answers 200.
func (c *Client) Healthy(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

// Averages fetches GET /averages.
func (c *Client) Averages(ctx context.Context) ([]types.CategoryAverage, error) {
	var out []types.CategoryAverage
	if err := c.getJSON(ctx, "/averages", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats fetches GET /stats.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.getJSON(ctx, "/stats", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
}
