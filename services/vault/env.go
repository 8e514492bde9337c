// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package vault

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/awnumar/memguard"
)

// Environment variables read by the overlay. Both must be set; a token
// without an endpoint is ignored.
const (
	EnvAccessToken = "ALEUTIAN_ACCESS_TOKEN"
	EnvEndpoint    = "ALEUTIAN_ENDPOINT"
)

// EnvStore serves a single access token sourced from the environment.
//
// # Description
//
// CI jobs and headless installs provide credentials through
// ALEUTIAN_ACCESS_TOKEN/ALEUTIAN_ENDPOINT instead of an interactive login.
// The token is sealed into a memguard enclave at construction, so at rest
// it lives encrypted in locked memory and is only decrypted for the
// duration of a Get.
//
// The store is read-only: Store and Delete return ErrReadOnly so a user
// cannot shadow or half-delete a credential the environment will
// resurrect on the next start.
//
// # Thread Safety
//
// Safe for concurrent use after construction; all fields are immutable.
type EnvStore struct {
	endpoint string
	sealed   *memguard.Enclave
}

var _ CredentialStore = (*EnvStore)(nil)

// NewEnvStore builds the environment overlay, or returns nil when the
// environment carries no usable credential.
//
// Inputs:
//
//	normalize - Canonicalizes the endpoint so it matches session-layer keys.
//	            If nil, the raw value is trimmed of whitespace and trailing
//	            slashes only.
//	logger - Logger for construction diagnostics. If nil, uses slog.Default().
func NewEnvStore(normalize func(string) string, logger *slog.Logger) *EnvStore {
	if logger == nil {
		logger = slog.Default()
	}

	token := os.Getenv(EnvAccessToken)
	if token == "" {
		return nil
	}

	endpoint := os.Getenv(EnvEndpoint)
	if endpoint == "" {
		logger.Warn("ignoring environment token: endpoint is not set",
			slog.String("token_var", EnvAccessToken),
			slog.String("endpoint_var", EnvEndpoint),
		)
		return nil
	}

	if normalize != nil {
		endpoint = normalize(endpoint)
	} else {
		endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	}

	// NewEnclave wipes the plaintext slice it is handed.
	return &EnvStore{
		endpoint: endpoint,
		sealed:   memguard.NewEnclave([]byte(token)),
	}
}

// Endpoint returns the normalized endpoint the environment token applies to.
func (s *EnvStore) Endpoint() string {
	return s.endpoint
}

// Covers reports whether this store holds the token for the endpoint.
func (s *EnvStore) Covers(endpoint string) bool {
	return s != nil && endpoint == s.endpoint
}

// Get decrypts the sealed token and returns a copy.
func (s *EnvStore) Get(ctx context.Context, endpoint string) (string, error) {
	if !s.Covers(endpoint) {
		return "", ErrTokenNotFound
	}

	buf, err := s.sealed.Open()
	if err != nil {
		return "", fmt.Errorf("open sealed token: %w", err)
	}
	defer buf.Destroy()

	// string() copies out of the locked buffer before it is wiped.
	return string(buf.Bytes()), nil
}

// Store always fails: environment credentials are read-only.
func (s *EnvStore) Store(ctx context.Context, endpoint, token string) error {
	return ErrReadOnly
}

// Delete always fails: environment credentials are read-only.
func (s *EnvStore) Delete(ctx context.Context, endpoint string) error {
	return ErrReadOnly
}

// Close is a no-op; the enclave's key material is wiped by PurgeSecureMemory.
func (s *EnvStore) Close() error {
	return nil
}
