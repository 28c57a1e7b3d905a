// Package errors provides error handling for the API file processor.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrAuthFailed) {
//	    // abort the whole run
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is     = crdb.Is
	IsAny  = crdb.IsAny
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Sentinel errors classifying every failure the processor can hit.
// Use these with errors.Is() for type-safe error checking and wrap them
// with errors.Wrap() to add context while preserving the class.
//
// The taxonomy has three tiers:
//   - run-fatal: the whole run is unrecoverable (bad credentials, bad plan)
//   - folder-fatal: stop dispatching new files within the current folder
//   - file-transient: skip the current file only (everything else)
var (
	// ErrAuthFailed indicates the API rejected our credentials (401).
	// Run-fatal: no call can succeed with a bad key.
	ErrAuthFailed = New("authentication failed")

	// ErrTierLookup indicates the API could not resolve the account tier (421).
	// Run-fatal: every subsequent job would hit the same wall.
	ErrTierLookup = New("tier limit lookup failed")

	// ErrRateLimited indicates the request quota is exhausted (429).
	// File-transient: the current file is skipped, siblings continue.
	ErrRateLimited = New("request limit exceeded")

	// ErrEndpointFailure indicates an unrecoverable endpoint condition
	// (unexpected HTTP status, unknown quota window). Folder-fatal: no new
	// files are dispatched for the current folder; in-flight lifecycles
	// run to completion.
	ErrEndpointFailure = New("endpoint failure")

	// ErrInvalidConfig indicates malformed required configuration.
	// Run-fatal at startup, before any network activity.
	ErrInvalidConfig = New("invalid configuration")
)

// IsFatal reports whether err invalidates the entire run.
func IsFatal(err error) bool {
	return err != nil && IsAny(err, ErrAuthFailed, ErrTierLookup, ErrInvalidConfig)
}

// IsFolderFatal reports whether err should stop dispatch within one folder.
func IsFolderFatal(err error) bool {
	return err != nil && Is(err, ErrEndpointFailure)
}
