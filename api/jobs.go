package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/paperoffice-ai/api-file-processor/errors"
)

// multipartFieldName is the form field the server expects the file under.
const multipartFieldName = "job_files_0"

// AddJob registers a new job against the configured endpoint URL. payload is
// form-encoded as-is, with the device origin marker merged in. A nil error
// means the server accepted the job and assigned it a host.
func (c *Client) AddJob(ctx context.Context, endpointURL string, payload map[string]interface{}) (*JobAddResult, error) {
	form := url.Values{}
	for key, value := range payload {
		form.Set(key, fmt.Sprint(value))
	}
	form.Set(deviceOriginField, deviceOriginValue)
	encoded := form.Encode()

	var result JobAddResult
	err := c.callJSON(ctx, "job add", &result, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case StatusQueued, StatusWaitingFiles:
		c.logger.Debugw("Job accepted",
			"job_id", result.JobID, "assigned_host", result.AssignedHost, "status", result.Status)
		return &result, nil
	case StatusError:
		return nil, DecodeErrorBody(result.Code, result.Message, "job add")
	default:
		return nil, errors.Newf("job add returned unexpected status %q", result.Status)
	}
}

// UploadFile sends the file as a multipart upload to the job's assigned
// host. The file is reopened on every retry attempt so a partially consumed
// body never gets reused, and is closed on every path.
func (c *Client) UploadFile(ctx context.Context, host, jobID, filePath string) (*JobUploadResult, error) {
	return c.uploadTo(ctx, UploadURL(host, jobID), filePath)
}

func (c *Client) uploadTo(ctx context.Context, uploadURL, filePath string) (*JobUploadResult, error) {
	var result JobUploadResult
	err := c.callJSON(ctx, "file upload", &result, func(ctx context.Context) (*http.Request, error) {
		file, err := os.Open(filePath)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open %q for upload", filePath)
		}

		pr, pw := io.Pipe()
		writer := multipart.NewWriter(pw)
		go func() {
			defer file.Close()
			part, err := writer.CreateFormFile(multipartFieldName, filepath.Base(filePath))
			if err == nil {
				_, err = io.Copy(part, file)
			}
			if closeErr := writer.Close(); err == nil {
				err = closeErr
			}
			pw.CloseWithError(err)
		}()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, pr)
		if err != nil {
			pr.Close()
			return nil, err
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	switch result.Status {
	case StatusQueued:
		return &result, nil
	case StatusError:
		return nil, DecodeErrorBody(result.Code, result.Message, "file upload")
	default:
		return nil, errors.Newf("file upload returned unexpected status %q", result.Status)
	}
}

// PollStatus fetches the job's current status from its assigned host. The
// returned result may carry status "error"; interpreting lifecycle statuses
// is the caller's job since rate-window errors are recoverable mid-poll.
func (c *Client) PollStatus(ctx context.Context, host, jobID string) (*JobStatusResult, error) {
	return c.pollURL(ctx, StatusURL(host, jobID))
}

func (c *Client) pollURL(ctx context.Context, statusURL string) (*JobStatusResult, error) {
	var result JobStatusResult
	err := c.callJSON(ctx, "status poll", &result, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
