// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	// CloudEndpoint is the multi-tenant hosted platform.
	CloudEndpoint = "https://cloud.aleutian.ai"

	cloudHost = "cloud.aleutian.ai"

	// appAliasHost is the retired desktop-app endpoint. Sign-ins against
	// it are redirected to the cloud platform.
	appAliasHost = "app.aleutian.ai"
)

// ErrMalformedEndpoint marks input that cannot be used as a platform URL.
// The manager resolves it into a signed-out status rather than surfacing
// it to callers.
var ErrMalformedEndpoint = errors.New("malformed endpoint")

// bareTokenRe matches hex blobs long enough to be an access token from
// releases that predate the alp_ prefix.
var bareTokenRe = regexp.MustCompile(`^[0-9a-fA-F]{40,}$`)

// tokenShaped reports whether raw is structurally an access token rather
// than a URL. Users paste tokens into the endpoint field often enough that
// rejecting them early keeps a credential out of logs and history.
func tokenShaped(raw string) bool {
	return strings.HasPrefix(raw, "alp_") || bareTokenRe.MatchString(raw)
}

// NormalizeEndpoint canonicalizes raw into the form used as a vault and
// settings key: https scheme unless http was given explicitly, lowercase
// host, no trailing slash, no query or fragment. The legacy desktop-app
// host maps onto the cloud platform.
func NormalizeEndpoint(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrMalformedEndpoint)
	}
	if tokenShaped(trimmed) {
		return "", fmt.Errorf("%w: input looks like an access token", ErrMalformedEndpoint)
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrMalformedEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrMalformedEndpoint)
	}

	u.Host = strings.ToLower(u.Host)
	if u.Hostname() == appAliasHost {
		u.Scheme = "https"
		u.Host = cloudHost
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil

	return u.String(), nil
}

// IsCloudEndpoint reports whether a normalized endpoint is the
// multi-tenant cloud platform.
func IsCloudEndpoint(endpoint string) bool {
	return endpoint == CloudEndpoint
}
