// Package client holds thin clients for the external collaborators this
// service consumes: the payments service, the workflow service, and the
// notifications NATS stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "github.com/dealerdesk/be-payment-approvals/internal/errors"
)

// HTTPClient is a minimal JSON-over-HTTP client with coded error mapping.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client rooted at baseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Get issues a GET and decodes the JSON response body into out when non-nil.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out when non-nil.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// GetRaw issues a GET and returns the raw response body. Used where the
// response envelope varies and the caller decodes it itself.
func (c *HTTPClient) GetRaw(ctx context.Context, path string) ([]byte, error) {
	return c.doRaw(ctx, http.MethodGet, path, nil)
}

// PostRaw issues a POST with a JSON body and returns the raw response body.
func (c *HTTPClient) PostRaw(ctx context.Context, path string, body any) ([]byte, error) {
	return c.doRaw(ctx, http.MethodPost, path, body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := c.doRaw(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "decode response body")
	}
	return nil
}

func (c *HTTPClient) doRaw(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode request body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeTimeout, "request cancelled or timed out")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, fmt.Sprintf("%s %s", method, path))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "read response body")
	}

	if resp.StatusCode >= 400 {
		return nil, statusError(resp.StatusCode, method, path)
	}
	return raw, nil
}

func statusError(status int, method, path string) error {
	msg := fmt.Sprintf("%s %s: upstream returned %d", method, path, status)
	switch status {
	case http.StatusUnauthorized:
		return apperrors.New(apperrors.ErrCodeUnauthorized, msg)
	case http.StatusForbidden:
		return apperrors.New(apperrors.ErrCodeForbidden, msg)
	case http.StatusNotFound:
		return apperrors.New(apperrors.ErrCodeNotFound, msg)
	case http.StatusConflict:
		return apperrors.New(apperrors.ErrCodeConflict, msg)
	default:
		if status >= 500 {
			return apperrors.New(apperrors.ErrCodeUnavailable, msg)
		}
		return apperrors.New(apperrors.ErrCodeInvalidInput, msg)
	}
}
