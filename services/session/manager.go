// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the authenticated session against an Aleutian
// platform deployment: the current AuthStatus snapshot, the sign-in
// workflow, and change fan-out to dependents such as model sync,
// embeddings, and UI surfaces.
//
// Concurrency model: any number of goroutines may call into the Manager,
// but at most one authentication attempt is in flight at a time. A newer
// Authenticate call supersedes the in-flight one by cancelling its
// context; the superseded call observes ErrAttemptSuperseded and commits
// nothing. Persistence, status swap, and notification happen inside one
// critical section, so a superseded attempt can never be observed as
// persisted.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianConnect/services/gateway"
	"github.com/AleutianAI/AleutianConnect/services/settings"
	"github.com/AleutianAI/AleutianConnect/services/vault"
)

var sessionTracer = otel.Tracer("session")

var (
	// ErrAttemptSuperseded is the cancel cause installed when a newer
	// Authenticate call replaces an in-flight one. The superseded caller
	// receives it instead of a status; none of its effects were applied.
	ErrAttemptSuperseded = errors.New("authentication attempt superseded")

	// ErrManagerClosed is returned by every operation after Close.
	ErrManagerClosed = errors.New("session manager closed")
)

// Validator checks an endpoint+token pair against the platform.
// *gateway.Client satisfies it; tests substitute fakes.
type Validator interface {
	Validate(ctx context.Context, endpoint, token string, headers map[string]string) (*gateway.ValidationResult, error)
}

// FlagSink receives the signed-in flag on every commit. Hosts surface it
// to UI conditionals such as command enablement.
type FlagSink interface {
	SetSignedIn(bool)
}

// Config wires a Manager's collaborators.
type Config struct {
	// Credentials stores per-endpoint access tokens. Required.
	Credentials vault.CredentialStore

	// Settings stores the non-secret session state: last endpoint,
	// endpoint history, onboarding flag. Required.
	Settings settings.Store

	// Validator performs remote validation. Required.
	Validator Validator

	// Flags, when set, receives the signed-in flag on every commit.
	Flags FlagSink

	// OnFirstSignIn, when set, runs after the first successful sign-in
	// of this install, guarded by the persisted onboarding flag.
	OnFirstSignIn func(AuthStatus)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// attempt is one Authenticate invocation's exclusive cancellation scope.
type attempt struct {
	id     string
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// abortCause returns the reason this attempt may no longer commit, or nil
// while it is still live. Supersession and manager shutdown arrive as
// cancel causes; a caller cancelling its own context arrives as that
// context's cause.
func (a *attempt) abortCause() error {
	if a.ctx.Err() == nil {
		return nil
	}
	return context.Cause(a.ctx)
}

// Manager is the session state machine.
//
// # Description
//
// Manager turns credential input into committed AuthStatus snapshots. It
// guarantees that no matter how sign-in, sign-out, and reload calls
// interleave, exactly one attempt's effects are applied and every
// dependent observes the same ordered sequence of statuses.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
type Manager struct {
	creds     vault.CredentialStore
	settings  settings.Store
	validator Validator
	flags     FlagSink
	onFirst   func(AuthStatus)
	logger    *slog.Logger

	notifier notifier

	// mu serializes attempt turnover and the persist+commit+notify
	// critical section.
	mu       sync.Mutex
	inflight *attempt
	closed   bool

	// statusMu guards current so reads never contend with a validation
	// in progress.
	statusMu sync.RWMutex
	current  *AuthStatus
}

// NewManager wires a Manager. It performs no I/O; call Start to seed the
// initial status.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Credentials == nil {
		return nil, errors.New("session: credential store is required")
	}
	if cfg.Settings == nil {
		return nil, errors.New("session: settings store is required")
	}
	if cfg.Validator == nil {
		return nil, errors.New("session: validator is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		creds:     cfg.Credentials,
		settings:  cfg.Settings,
		validator: cfg.Validator,
		flags:     cfg.Flags,
		onFirst:   cfg.OnFirstSignIn,
		logger:    logger.With(slog.String("component", "session")),
	}, nil
}

// Start seeds the session with a signed-out placeholder built from the
// persisted last endpoint. No network call is made; the daemon follows up
// with Reload once its transport is ready.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}

	endpoint, err := m.settings.LastEndpoint(ctx)
	if err != nil {
		m.logger.Warn("reading last endpoint failed, starting signed out",
			slog.String("error", err.Error()))
		endpoint = ""
	}
	m.commitLocked(ctx, SignedOut(endpoint))
	m.logger.Info("session started", slog.String("endpoint", endpoint))
	return nil
}

// Authenticate validates endpoint+token and commits the resulting status.
//
// # Description
//
// The single entry point of the state machine: sign-in, sign-out, and
// reload all pass through here. Starting a new call supersedes any
// in-flight one by cancelling it before the first network request.
//
// # Inputs
//
//   - endpoint: Raw server URL as the user entered it. Normalized before
//     use; an empty string commits the anonymous status.
//   - token: Access token. Empty commits a signed-out status for the
//     endpoint without touching the network.
//   - opts: Per-call options such as WithHeaders.
//
// # Outputs
//
//   - AuthStatus: The committed snapshot. Every outcome except an abort
//     is encoded here: malformed endpoints, rejected tokens, unreachable
//     hosts, and remote failures all commit a signed-out status and
//     return a nil error.
//   - error: Non-nil only when nothing was persisted, committed, or
//     notified: the attempt was superseded (ErrAttemptSuperseded), the
//     manager closed (ErrManagerClosed), or ctx was cancelled.
//
// # Example
//
//	status, err := manager.Authenticate(ctx, "platform.example.com", token)
//	if errors.Is(err, session.ErrAttemptSuperseded) {
//		return // a newer sign-in owns the session; stay quiet
//	}
func (m *Manager) Authenticate(ctx context.Context, endpoint, token string, opts ...AuthOption) (AuthStatus, error) {
	var options authOptions
	for _, opt := range opts {
		opt(&options)
	}

	att, err := m.beginAttempt(ctx)
	if err != nil {
		return AuthStatus{}, err
	}
	defer att.cancel(nil)

	spanCtx, span := sessionTracer.Start(att.ctx, "session.Authenticate")
	defer span.End()

	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		// The anonymous reset used by SignOut and fresh installs.
		return m.commit(att, SignedOut(""), nil)
	}

	normalized, err := NormalizeEndpoint(trimmed)
	if err != nil {
		// The raw input stays out of the span and the log line: a
		// malformed endpoint is frequently a pasted token.
		span.SetAttributes(attribute.Bool("session.malformed_endpoint", true))
		m.logger.Warn("rejecting malformed endpoint",
			slog.String("error", err.Error()),
			slog.String("attempt_id", att.id))
		committed := trimmed
		if tokenShaped(trimmed) {
			// Do not echo a pasted credential back through the status.
			committed = ""
		}
		return m.commit(att, SignedOut(committed), nil)
	}
	span.SetAttributes(attribute.String("session.endpoint", normalized))

	if token == "" {
		return m.commit(att, SignedOut(normalized), nil)
	}

	creds := Credentials{Endpoint: normalized, Token: token, CustomHeaders: options.headers}
	m.logger.Debug("validating credentials",
		slog.Any("credentials", creds),
		slog.String("attempt_id", att.id))

	result, verr := m.validator.Validate(spanCtx, creds.Endpoint, creds.Token, creds.CustomHeaders)
	status, abortErr := m.resolve(att, normalized, result, verr)
	if abortErr != nil {
		span.SetAttributes(attribute.Bool("session.aborted", true))
		return AuthStatus{}, abortErr
	}

	status, err = m.commit(att, status, func(persistCtx context.Context) {
		m.persistCredentials(persistCtx, normalized, token)
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("session.aborted", true))
		return AuthStatus{}, err
	}
	span.SetAttributes(
		attribute.Bool("session.signed_in", status.SignedIn),
		attribute.String("session.connectivity", status.Connectivity.String()),
	)
	return status, nil
}

// Reload re-runs authentication with the persisted endpoint and token.
// With nothing persisted it commits the anonymous status.
func (m *Manager) Reload(ctx context.Context) (AuthStatus, error) {
	endpoint, err := m.settings.LastEndpoint(ctx)
	if err != nil {
		m.logger.Warn("reading last endpoint failed",
			slog.String("error", err.Error()))
	}
	if endpoint == "" {
		return m.Authenticate(ctx, "", "")
	}

	token, err := m.creds.Get(ctx, endpoint)
	if err != nil && !errors.Is(err, vault.ErrTokenNotFound) {
		m.logger.Warn("reading stored token failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", endpoint))
	}
	return m.Authenticate(ctx, endpoint, token)
}

// SignOut deletes the stored token for the active endpoint, forgets the
// endpoint, and commits the anonymous status. Store failures are logged
// and do not stop the sign-out.
func (m *Manager) SignOut(ctx context.Context) error {
	m.statusMu.RLock()
	var endpoint string
	if m.current != nil {
		endpoint = m.current.Endpoint
	}
	m.statusMu.RUnlock()
	if endpoint == "" {
		if last, err := m.settings.LastEndpoint(ctx); err == nil {
			endpoint = last
		}
	}

	if endpoint != "" {
		switch err := m.creds.Delete(ctx, endpoint); {
		case err == nil:
		case errors.Is(err, vault.ErrReadOnly):
			m.logger.Warn("token comes from the environment and cannot be deleted",
				slog.String("endpoint", endpoint))
		default:
			m.logger.Warn("deleting stored token failed",
				slog.String("error", err.Error()),
				slog.String("endpoint", endpoint))
		}
	}
	if err := m.settings.ClearLastEndpoint(ctx); err != nil {
		m.logger.Warn("clearing last endpoint failed",
			slog.String("error", err.Error()))
	}

	_, err := m.Authenticate(ctx, "", "")
	if err == nil {
		m.logger.Info("signed out", slog.String("endpoint", endpoint))
	}
	return err
}

// CurrentStatus returns the committed snapshot. It panics when called
// before Start: wiring a dependent ahead of session start is a
// programming error, not a runtime condition.
func (m *Manager) CurrentStatus() AuthStatus {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	if m.current == nil {
		panic("session: CurrentStatus called before Start")
	}
	return *m.current
}

// Subscribe registers fn for every committed status change and returns
// its idempotent unsubscribe func. Delivery is synchronous on the
// committing goroutine and deduplicated by deep equality; fn does not
// receive the status that was current at subscription time.
//
// fn runs inside the commit critical section: it must not call
// Authenticate, Reload, SignOut, or Close. CurrentStatus, Subscribe, and
// unsubscribing are safe, as is handing the work to another goroutine.
func (m *Manager) Subscribe(fn func(AuthStatus)) func() {
	return m.notifier.subscribe(fn)
}

// Close cancels any in-flight attempt and fences later operations with
// ErrManagerClosed. It does not close the underlying stores; their
// lifetime belongs to the daemon.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.inflight != nil {
		m.inflight.cancel(ErrManagerClosed)
		m.inflight = nil
	}
	return nil
}

// beginAttempt supersedes any in-flight attempt and registers a new one
// as the sole candidate allowed to commit.
func (m *Manager) beginAttempt(ctx context.Context) (*attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.inflight != nil {
		m.inflight.cancel(ErrAttemptSuperseded)
		m.logger.Debug("superseding in-flight attempt",
			slog.String("attempt_id", m.inflight.id))
	}

	attemptCtx, cancel := context.WithCancelCause(ctx)
	att := &attempt{id: uuid.NewString(), ctx: attemptCtx, cancel: cancel}
	m.inflight = att
	return att, nil
}

// resolve maps the validator's answer onto the status to commit, or onto
// the abort error handed to the caller. A non-nil error is always an
// abort; every remote failure becomes a status.
func (m *Manager) resolve(att *attempt, endpoint string, result *gateway.ValidationResult, err error) (AuthStatus, error) {
	if cause := att.abortCause(); cause != nil {
		return AuthStatus{}, cause
	}
	if err == nil {
		return statusFromResult(endpoint, result), nil
	}
	if gateway.IsAborted(err) {
		// The transport saw a cancellation our context has not
		// registered. Treat it as an abort all the same.
		return AuthStatus{}, err
	}

	status := SignedOut(endpoint)
	switch {
	case gateway.IsInvalidCredentials(err):
		status.InvalidToken = true
		status.Connectivity = ConnectivityOnline
	case gateway.IsOffline(err):
		status.Connectivity = ConnectivityOffline
	default:
		// Rate limits and other remote failures.
		status.Connectivity = ConnectivityError
	}
	m.logger.Info("validation failed",
		slog.String("error", err.Error()),
		slog.String("endpoint", endpoint),
		slog.String("connectivity", status.Connectivity.String()),
		slog.String("attempt_id", att.id))
	return status, nil
}

// commit installs status as the session's current snapshot. The persist
// hook, when non-nil, runs inside the same critical section, so a
// superseding attempt can never start while a stale persist is still in
// flight. If att was superseded, cancelled, or the manager closed before
// the section was entered, nothing runs and the abort cause is returned.
func (m *Manager) commit(att *attempt, status AuthStatus, persist func(context.Context)) (AuthStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return AuthStatus{}, ErrManagerClosed
	}
	if cause := att.abortCause(); cause != nil {
		return AuthStatus{}, cause
	}
	if m.inflight != att {
		// A newer attempt owns the session now.
		return AuthStatus{}, ErrAttemptSuperseded
	}
	m.inflight = nil

	// Once the commit is entered it runs to completion; a caller
	// cancelling mid-commit must not leave a half-applied state.
	ctx := context.WithoutCancel(att.ctx)
	if persist != nil {
		persist(ctx)
	}
	m.commitLocked(ctx, status)
	return status, nil
}

// commitLocked swaps the current status and runs the post-commit hooks.
// Callers hold m.mu.
func (m *Manager) commitLocked(ctx context.Context, status AuthStatus) {
	m.statusMu.Lock()
	m.current = &status
	m.statusMu.Unlock()

	if m.flags != nil {
		m.flags.SetSignedIn(status.SignedIn)
	}
	m.notifier.publish(status)
	if status.SignedIn {
		m.fireFirstSignIn(ctx, status)
	}
}

// fireFirstSignIn runs the onboarding hook once per install, guarded by
// the persisted flag.
func (m *Manager) fireFirstSignIn(ctx context.Context, status AuthStatus) {
	seen, err := m.settings.HasAuthenticatedBefore(ctx)
	if err != nil {
		m.logger.Warn("reading onboarding flag failed",
			slog.String("error", err.Error()))
		return
	}
	if seen {
		return
	}
	if err := m.settings.MarkAuthenticated(ctx); err != nil {
		m.logger.Warn("recording onboarding flag failed",
			slog.String("error", err.Error()))
	}
	m.logger.Info("first sign-in on this install",
		slog.String("endpoint", status.Endpoint))
	if m.onFirst != nil {
		m.onFirst(status)
	}
}

// persistCredentials saves the endpoint and token for future sessions.
// Failures are logged and never surfaced to the caller.
func (m *Manager) persistCredentials(ctx context.Context, endpoint, token string) {
	switch err := m.creds.Store(ctx, endpoint, token); {
	case err == nil:
	case errors.Is(err, vault.ErrReadOnly):
		m.logger.Debug("token comes from the environment, not persisting",
			slog.String("endpoint", endpoint))
	default:
		m.logger.Warn("persisting token failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", endpoint))
	}
	if err := m.settings.SetLastEndpoint(ctx, endpoint); err != nil {
		m.logger.Warn("persisting endpoint failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", endpoint))
	}
}

// statusFromResult maps a successful validation onto a status snapshot.
// Signed-in requires both the assistant being enabled server-side and a
// resolvable account.
func statusFromResult(endpoint string, result *gateway.ValidationResult) AuthStatus {
	cloud := IsCloudEndpoint(endpoint)

	var account *Account
	if result.Viewer.Username != "" {
		account = &Account{
			Username:      result.Viewer.Username,
			Authenticated: true,
			PrimaryEmail:  result.Viewer.Email,
			DisplayName:   result.Viewer.DisplayName,
			AvatarURL:     result.Viewer.AvatarURL,
		}
	}
	site := &SiteInfo{
		Version:          result.Site.Version,
		APIVersion:       InferAPIVersion(result.Site.Version, cloud),
		AssistantEnabled: result.Site.AssistantEnabled,
		ModelDefaults:    modelDefaultsFromWire(result.Models),
	}

	return AuthStatus{
		Endpoint:     endpoint,
		IsCloud:      cloud,
		SignedIn:     site.AssistantEnabled && account != nil,
		Account:      account,
		Site:         site,
		Connectivity: ConnectivityOnline,
	}
}

func modelDefaultsFromWire(wire gateway.ModelDefaults) *ModelDefaults {
	if wire == (gateway.ModelDefaults{}) {
		return nil
	}
	return &ModelDefaults{
		Provider:                 wire.Provider,
		ChatModel:                wire.ChatModel,
		ChatModelMaxTokens:       wire.ChatModelMaxTokens,
		FastChatModel:            wire.FastChatModel,
		FastChatModelMaxTokens:   wire.FastChatModelMaxTokens,
		CompletionModel:          wire.CompletionModel,
		CompletionModelMaxTokens: wire.CompletionModelMaxTokens,
		SmartContext:             wire.SmartContext,
	}
}

// authOptions collects per-call Authenticate options.
type authOptions struct {
	headers map[string]string
}

// AuthOption customizes a single Authenticate call.
type AuthOption func(*authOptions)

// WithHeaders attaches extra HTTP headers, such as reverse-proxy
// credentials, to every validation request of this attempt.
func WithHeaders(headers map[string]string) AuthOption {
	return func(o *authOptions) { o.headers = headers }
}
