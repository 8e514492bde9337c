// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianConnect/services/api"
	"github.com/AleutianAI/AleutianConnect/services/session"
)

// probeTimeout bounds the daemon availability check. The daemon is on
// loopback, so anything slower than this means it is not there.
const probeTimeout = 750 * time.Millisecond

// daemonClient talks to a running connectd over its localhost API.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(addr string) *daemonClient {
	if addr == "" {
		addr = api.DefaultAddr
	}
	return &daemonClient{
		base: "http://" + addr,
		// Sign-in waits on a platform round trip; generous on purpose.
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// apiError is a non-2xx answer from the daemon.
type apiError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("the daemon answered %d", e.StatusCode)
}

// Available reports whether a daemon is serving on the configured address.
func (c *daemonClient) Available() bool {
	probe := &http.Client{Timeout: probeTimeout}
	resp, err := probe.Get(c.base + "/healthz")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (c *daemonClient) SignIn(ctx context.Context, endpoint, token string, headers map[string]string) (session.AuthStatus, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodPost, "/v1/session/sign-in", api.SignInRequest{
		Endpoint:      endpoint,
		Token:         token,
		CustomHeaders: headers,
	}, &resp)
	return resp.Status, err
}

func (c *daemonClient) SignOut(ctx context.Context) (session.AuthStatus, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodPost, "/v1/session/sign-out", nil, &resp)
	return resp.Status, err
}

func (c *daemonClient) Status(ctx context.Context) (session.AuthStatus, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/v1/session/status", nil, &resp)
	return resp.Status, err
}

func (c *daemonClient) Endpoints(ctx context.Context) (api.EndpointsResponse, error) {
	var resp api.EndpointsResponse
	err := c.do(ctx, http.MethodGet, "/v1/endpoints", nil, &resp)
	return resp, err
}

func (c *daemonClient) RemoveEndpoint(ctx context.Context, endpoint string) error {
	query := url.Values{"endpoint": {endpoint}}
	return c.do(ctx, http.MethodDelete, "/v1/endpoints?"+query.Encode(), nil, nil)
}

// Watch streams session events until ctx is cancelled or the daemon goes
// away. The handler runs on the read loop; keep it fast.
func (c *daemonClient) Watch(ctx context.Context, handler func(api.Event)) error {
	wsURL := "ws" + strings.TrimPrefix(c.base, "http") + "/v1/session/events"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connecting to the daemon event stream: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// Unblock the read loop when the caller gives up.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var event api.Event
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("daemon event stream closed: %w", err)
		}
		handler(event)
	}
}

func (c *daemonClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("talking to the daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		var body api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
			apiErr.Code = body.Code
			apiErr.Message = body.Error
			if body.Details != "" {
				apiErr.Message = fmt.Sprintf("%s: %s", body.Error, body.Details)
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
