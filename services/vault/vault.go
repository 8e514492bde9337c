// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package vault stores platform access tokens, keyed by normalized endpoint.
//
// Three implementations share one interface:
//
//   - BadgerStore: persistent store under the vault directory (mode 0700)
//   - EnvStore: read-only token from ALEUTIAN_ACCESS_TOKEN/ALEUTIAN_ENDPOINT,
//     layered in front of the persistent store
//   - MemoryStore: process-lifetime store for tests and session-only logins
//
// While a token is resident in process memory it is held in mlocked memory
// (memguard) where system limits allow. Systems with insufficient
// RLIMIT_MEMLOCK must opt in to insecure memory explicitly, either through
// the AllowInsecureMemory config flag or ALEUTIAN_INSECURE_MEMORY=true.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MinMlockLimitKB is the minimum RLIMIT_MEMLOCK required for secure
	// token handling, in kilobytes. Tokens are small; 64 KB leaves room
	// for memguard's guard pages and canaries.
	MinMlockLimitKB = 64

	// tokenKeyPrefix namespaces token entries in the persistent store.
	tokenKeyPrefix = "token/"
)

// Severity levels for SecurityCheck results.
const (
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrTokenNotFound indicates no token is stored for the endpoint.
	ErrTokenNotFound = errors.New("no token stored for endpoint")

	// ErrReadOnly indicates the store does not accept writes.
	// Returned when the endpoint's token is provided by the environment.
	ErrReadOnly = errors.New("credential store is read-only")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("credential store is closed")

	// ErrInsecureMemory indicates the system cannot lock memory and the
	// caller has not opted in to insecure storage.
	ErrInsecureMemory = errors.New("mlock limit insufficient for secure memory")
)

// =============================================================================
// Interfaces
// =============================================================================

// CredentialStore is the contract for access token storage.
//
// Endpoints are expected to be normalized before they reach the store; the
// store treats them as opaque keys.
//
// Thread Safety: Implementations must be safe for concurrent use.
type CredentialStore interface {
	// Get returns the token for the endpoint, or ErrTokenNotFound.
	Get(ctx context.Context, endpoint string) (string, error)

	// Store persists the token for the endpoint, replacing any previous one.
	// Returns ErrReadOnly if the endpoint's token comes from the environment.
	Store(ctx context.Context, endpoint, token string) error

	// Delete removes the token for the endpoint. Deleting an absent token
	// is not an error. Returns ErrReadOnly for environment-backed tokens.
	Delete(ctx context.Context, endpoint string) error

	// Close releases the store. Subsequent calls return ErrStoreClosed.
	Close() error
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the production credential store built by NewStore.
type Config struct {
	// Path is the vault database directory. Created with mode 0700.
	// Required unless InMemory is true.
	Path string

	// InMemory uses a non-persistent backing database. Tests only.
	InMemory bool

	// AllowInsecureMemory permits falling back to ordinary Go memory when
	// RLIMIT_MEMLOCK is too low. Equivalent to ALEUTIAN_INSECURE_MEMORY=true.
	AllowInsecureMemory bool

	// NormalizeEndpoint canonicalizes the ALEUTIAN_ENDPOINT value so the
	// environment overlay matches the keys the session layer uses. If nil,
	// the raw value is trimmed only.
	NormalizeEndpoint func(string) string

	// Logger receives store events. If nil, uses slog.Default().
	Logger *slog.Logger
}

// =============================================================================
// Factory
// =============================================================================

// NewStore builds the production credential store: a persistent Badger store
// with the read-only environment overlay (if configured) layered in front.
//
// Description:
//
//	Probes secure memory availability first. If RLIMIT_MEMLOCK is below
//	MinMlockLimitKB and neither cfg.AllowInsecureMemory nor
//	ALEUTIAN_INSECURE_MEMORY=true is set, returns ErrInsecureMemory so the
//	caller can ask the user how to proceed.
//
// Outputs:
//
//	CredentialStore - Ready-to-use store. Caller must Close().
//	error - ErrInsecureMemory (possibly wrapped) or a storage open error.
func NewStore(cfg Config) (CredentialStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "vault"))

	initSecureMemory(logger)

	if !mlockSufficient && !insecureMemoryAllowed(cfg) {
		return nil, fmt.Errorf("%w: have %d KB, need %d KB (raise the limit or set ALEUTIAN_INSECURE_MEMORY=true)",
			ErrInsecureMemory, mlockLimitKB, MinMlockLimitKB)
	}
	if !mlockSufficient {
		logger.Warn("SECURITY: tokens will be held in unlocked memory",
			slog.Int64("mlock_limit_kb", mlockLimitKB),
			slog.Int("required_kb", MinMlockLimitKB),
		)
	}

	backing, err := NewBadgerStore(cfg)
	if err != nil {
		return nil, err
	}

	overlay := NewEnvStore(cfg.NormalizeEndpoint, logger)
	if overlay == nil {
		return backing, nil
	}

	logger.Info("environment token overlay active",
		slog.String("endpoint", overlay.Endpoint()),
	)
	return &layeredStore{overlay: overlay, backing: backing}, nil
}

func insecureMemoryAllowed(cfg Config) bool {
	return cfg.AllowInsecureMemory || os.Getenv("ALEUTIAN_INSECURE_MEMORY") == "true"
}

// =============================================================================
// Layered Store
// =============================================================================

// layeredStore serves environment-provided tokens ahead of the backing store.
// Writes against the environment-covered endpoint are rejected; everything
// else passes through.
type layeredStore struct {
	overlay *EnvStore
	backing CredentialStore
}

var _ CredentialStore = (*layeredStore)(nil)

func (s *layeredStore) Get(ctx context.Context, endpoint string) (string, error) {
	if s.overlay.Covers(endpoint) {
		return s.overlay.Get(ctx, endpoint)
	}
	return s.backing.Get(ctx, endpoint)
}

func (s *layeredStore) Store(ctx context.Context, endpoint, token string) error {
	if s.overlay.Covers(endpoint) {
		return ErrReadOnly
	}
	return s.backing.Store(ctx, endpoint, token)
}

func (s *layeredStore) Delete(ctx context.Context, endpoint string) error {
	if s.overlay.Covers(endpoint) {
		return ErrReadOnly
	}
	return s.backing.Delete(ctx, endpoint)
}

func (s *layeredStore) Close() error {
	return s.backing.Close()
}

// =============================================================================
// Secure Memory
// =============================================================================

var (
	secureInitOnce  sync.Once
	mlockSufficient bool
	mlockLimitKB    int64
)

// initSecureMemory performs one-time memguard setup and probes mlock limits.
func initSecureMemory(logger *slog.Logger) {
	secureInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, mlockLimitKB = checkMlockLimit(logger)

		if mlockSufficient {
			logger.Debug("secure memory initialized",
				slog.Int64("mlock_limit_kb", mlockLimitKB),
				slog.Int("required_kb", MinMlockLimitKB),
			)
		}
	})
}

// checkMlockLimit compares RLIMIT_MEMLOCK against MinMlockLimitKB.
// Returns the current limit in KB, or -1 for unlimited.
func checkMlockLimit(logger *slog.Logger) (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		logger.Warn("could not determine mlock limit", slog.String("error", err.Error()))
		return true, -1
	}

	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}

	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}

// IsMlockAvailable reports whether secure memory is available, and the
// current mlock limit in KB (-1 if unlimited).
func IsMlockAvailable() (bool, int64) {
	initSecureMemory(slog.Default())
	return mlockSufficient, mlockLimitKB
}

// PurgeSecureMemory wipes all memguard-allocated memory. Call during
// graceful shutdown; SIGINT/SIGTERM trigger it automatically.
func PurgeSecureMemory() {
	memguard.Purge()
}

// =============================================================================
// Security Checks
// =============================================================================

// SecurityCheck is one storage protection probe result, shaped for display
// in the CLI's insecure-storage prompt.
type SecurityCheck struct {
	Name     string
	Detail   string
	Severity string
	Passed   bool
}

// RunSecurityChecks probes the protections available to the vault at the
// given path. Callers surface failed checks to the user before storing a
// token on a weakly protected system.
func RunSecurityChecks(path string) []SecurityCheck {
	checks := []SecurityCheck{
		mlockCheck(),
	}
	if path != "" {
		checks = append(checks, permissionsCheck(path))
	}
	return checks
}

func mlockCheck() SecurityCheck {
	ok, limitKB := IsMlockAvailable()
	check := SecurityCheck{
		Name:     "locked memory",
		Severity: SeverityWarning,
		Passed:   ok,
	}
	if ok {
		if limitKB < 0 {
			check.Detail = "RLIMIT_MEMLOCK is unlimited"
		} else {
			check.Detail = fmt.Sprintf("RLIMIT_MEMLOCK is %d KB", limitKB)
		}
	} else {
		check.Detail = fmt.Sprintf("RLIMIT_MEMLOCK is %d KB, below the %d KB needed; tokens may be swapped to disk",
			limitKB, MinMlockLimitKB)
	}
	return check
}

func permissionsCheck(path string) SecurityCheck {
	check := SecurityCheck{
		Name:     "vault directory permissions",
		Severity: SeverityCritical,
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		check.Passed = true
		check.Detail = "directory will be created with mode 0700"
		return check
	}
	if err != nil {
		check.Detail = fmt.Sprintf("could not stat %s: %v", path, err)
		return check
	}

	perm := info.Mode().Perm()
	if perm&0o077 != 0 {
		check.Detail = fmt.Sprintf("%s is mode %04o; group or world access exposes stored tokens", path, perm)
		return check
	}

	check.Passed = true
	check.Detail = fmt.Sprintf("%s is mode %04o", path, perm)
	return check
}
