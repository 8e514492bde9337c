// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// Error Classes
// =============================================================================

// ErrorClass buckets validation failures by what the caller should do about
// them. The session layer maps every class except ClassAborted into a status;
// only aborts propagate as Go errors.
type ErrorClass int

const (
	// ClassRemote is any non-2xx response not covered by a specific class.
	ClassRemote ErrorClass = iota

	// ClassInvalidCredentials covers HTTP 401, 403 and 404: the token is
	// wrong, revoked, or the endpoint is not a platform instance.
	ClassInvalidCredentials

	// ClassOffline covers transport failures and timeouts: the endpoint
	// could not be reached at all.
	ClassOffline

	// ClassAborted covers context cancellation: the caller gave up or a
	// newer attempt superseded this one.
	ClassAborted

	// ClassRateLimited covers HTTP 429.
	ClassRateLimited
)

// String returns the class name for logs.
func (c ErrorClass) String() string {
	switch c {
	case ClassInvalidCredentials:
		return "invalid_credentials"
	case ClassOffline:
		return "offline"
	case ClassAborted:
		return "aborted"
	case ClassRateLimited:
		return "rate_limited"
	default:
		return "remote"
	}
}

// =============================================================================
// RequestError
// =============================================================================

// RequestError is a classified failure from one validation request.
type RequestError struct {
	// Class is the failure bucket.
	Class ErrorClass

	// Path is the API path that failed, e.g. "/.api/site".
	Path string

	// StatusCode is the HTTP status, or 0 for transport failures.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

func (e *RequestError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: HTTP %d", e.Class, e.Path, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Class, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s %s", e.Class, e.Path)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyStatus maps a non-2xx HTTP status to an error class.
func classifyStatus(status int) ErrorClass {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return ClassInvalidCredentials
	case http.StatusTooManyRequests:
		return ClassRateLimited
	default:
		return ClassRemote
	}
}

// classifyTransport maps a request execution error to an error class.
//
// Cancellation means the caller abandoned the attempt; a deadline means the
// server never answered in time, which the session layer treats the same as
// unreachable.
func classifyTransport(err error) ErrorClass {
	switch {
	case errors.Is(err, context.Canceled):
		return ClassAborted
	case errors.Is(err, context.DeadlineExceeded):
		return ClassOffline
	default:
		return ClassOffline
	}
}

// =============================================================================
// Classification Helpers
// =============================================================================

func hasClass(err error, class ErrorClass) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Class == class
	}
	return false
}

// IsInvalidCredentials reports whether err means the token was rejected.
func IsInvalidCredentials(err error) bool {
	return hasClass(err, ClassInvalidCredentials)
}

// IsOffline reports whether err means the endpoint was unreachable.
func IsOffline(err error) bool {
	return hasClass(err, ClassOffline)
}

// IsAborted reports whether err means the attempt was cancelled. Bare
// context.Canceled counts too, so callers can pass errors from outside
// the gateway.
func IsAborted(err error) bool {
	return hasClass(err, ClassAborted) || errors.Is(err, context.Canceled)
}

// IsRateLimited reports whether err means the platform throttled us.
func IsRateLimited(err error) bool {
	return hasClass(err, ClassRateLimited)
}
