package api

import (
	"github.com/paperoffice-ai/api-file-processor/errors"
)

// Job statuses reported by the API. The first five are lifecycle states;
// StatusError carries an error code and message alongside.
const (
	StatusQueued        = "queued"
	StatusWaitingFiles  = "waiting4files"
	StatusProcessing    = "processing"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusError         = "error"
	ErrorCodeRateWindow = "RATE_LIMIT_EXCEEDED"
)

// JobAddResult is the response to a job add call. On acceptance the server
// assigns the job a dedicated API host that all follow-up calls must use.
type JobAddResult struct {
	Status            string         `json:"status"`
	JobID             string         `json:"job_id"`
	AssignedHost      string         `json:"job_assigned_api_endpoint"`
	RemainingRequests map[string]int `json:"remaining_requests"`
	Code              int            `json:"code"`
	Message           string         `json:"message"`
}

// JobUploadResult is the response to a file upload call.
type JobUploadResult struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JobStatusResult is the response to a status poll. NextCallInSeconds is the
// server-directed delay before the next poll; DownloadLink is set once the
// job completes.
type JobStatusResult struct {
	Status            string `json:"status"`
	DownloadLink      string `json:"downloadlink"`
	NextCallInSeconds int    `json:"next_call_in_seconds"`
	Code              int    `json:"code"`
	Message           string `json:"message"`
}

// ClassifyStatusCode maps a transport-level HTTP status to the error
// taxonomy. 2xx is success; 401 ends the whole run, 429 skips the current
// file, anything else unexpected ends the folder.
func ClassifyStatusCode(statusCode int, op string) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == 401:
		return errors.WithHint(
			errors.Wrapf(errors.ErrAuthFailed, "%s returned HTTP 401", op),
			"verify the configured API key")
	case statusCode == 429:
		return errors.Wrapf(errors.ErrRateLimited, "%s returned HTTP 429", op)
	default:
		return errors.Wrapf(errors.ErrEndpointFailure, "%s returned unexpected HTTP status %d", op, statusCode)
	}
}

// DecodeErrorBody maps the error code of a well-formed "error" response body
// to the error taxonomy. Codes outside the table are treated as transient
// failures of the current file only.
func DecodeErrorBody(code int, message, op string) error {
	switch code {
	case 401:
		return errors.WithHint(
			errors.Wrapf(errors.ErrAuthFailed, "%s rejected: %s", op, message),
			"verify the configured API key")
	case 421:
		return errors.Wrapf(errors.ErrTierLookup, "%s rejected: %s", op, message)
	case 429:
		return errors.Wrapf(errors.ErrRateLimited, "%s rejected: %s", op, message)
	default:
		return errors.Newf("%s failed with code %d: %s", op, code, message)
	}
}
