// Package api implements the typed client for the PaperOffice V5 document
// processing API: job add, file upload, status polling, and result download.
//
// Transport-level failures (network errors, malformed bodies) are retried a
// fixed number of times; protocol-level outcomes (an error status in a
// well-formed body) are never retried and are classified through the shared
// error-code table in DecodeErrorBody.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/paperoffice-ai/api-file-processor/errors"
	"github.com/paperoffice-ai/api-file-processor/internal/httpclient"
)

const (
	// callTimeout is the per-HTTP-call timeout for add/upload/status.
	callTimeout = 10 * time.Second

	// maxAttempts bounds transport-level retries per call.
	maxAttempts = 3

	// retryBackoff is the fixed delay between transport retries.
	retryBackoff = 1 * time.Second

	// deviceOriginField is merged into every job add payload so the server
	// can attribute traffic to this wrapper.
	deviceOriginField = "paperoffice_device_origin"
	deviceOriginValue = "paperoffice_api_wrapper"
)

// Client talks to the PaperOffice API. An empty API key means guest tier;
// the Authorization header is then omitted entirely.
type Client struct {
	apiKey     string
	httpClient *httpclient.SaferClient
	logger     *zap.SugaredLogger
}

// NewClient creates an API client. logger may be nil.
func NewClient(apiKey string, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: httpclient.New(callTimeout),
		logger:     logger,
	}
}

// IsAuthenticated returns true if the client has an API key configured.
func (c *Client) IsAuthenticated() bool {
	return c.apiKey != ""
}

// SetHTTPClient allows overriding the HTTP client for testing.
// Only use this in tests; production code keeps the SSRF-safer client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = httpclient.WrapClient(client)
}

// UploadURL builds the per-job upload URL on the server-assigned host.
func UploadURL(host, jobID string) string {
	return fmt.Sprintf("https://%s/V5/job/upload/%s", host, jobID)
}

// StatusURL builds the per-job status URL on the server-assigned host.
func StatusURL(host, jobID string) string {
	return fmt.Sprintf("https://%s/V5/job/status/%s", host, jobID)
}

// authorize sets the bearer header when an API key is configured.
func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// callJSON performs one API call with transport-level retry: up to
// maxAttempts attempts with a fixed backoff. A network error, an unreadable
// response, or a non-JSON body counts as a transport failure and is retried;
// a recognized HTTP status classification or a well-formed body ends the
// loop immediately.
//
// build must return a fresh request per attempt so request bodies are
// re-created between retries.
func (c *Client) callJSON(ctx context.Context, op string, out interface{}, build func(context.Context) (*http.Request, error)) error {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			c.logger.Debugw("Retrying request",
				"op", op, "attempt", attempt+1, "max_attempts", maxAttempts, "delay", retryBackoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff):
			}
		}

		req, err := build(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s request", op)
		}
		c.authorize(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = errors.Wrapf(err, "%s request failed", op)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = errors.Wrapf(err, "failed to read %s response", op)
			continue
		}

		// Transport status classification happens before the body is parsed.
		if err := ClassifyStatusCode(resp.StatusCode, op); err != nil {
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			lastErr = errors.Wrapf(err, "%s returned malformed body", op)
			continue
		}

		c.logger.Debugw("Request succeeded", "op", op, "status_code", resp.StatusCode, "attempt", attempt+1)
		return nil
	}

	return errors.Wrapf(lastErr, "%s failed after %d attempts", op, maxAttempts)
}
