// go-lynx
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-lynx.
//
// go-lynx is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-lynx is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-lynx; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package syncer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ZaparooProject/go-lynx"
	"github.com/ZaparooProject/go-lynx/credential"
	"github.com/google/uuid"
)

// ContentType is the media type of every request and response body.
const ContentType = "application/x-protobuf"

const (
	defaultHTTPTimeout = 10 * time.Second
	maxResponseBytes   = 1 << 20
)

// ErrResponseTooLarge is returned instead of acting on a truncated body.
var ErrResponseTooLarge = fmt.Errorf("%w: response exceeds %d bytes", ErrMalformed, maxResponseBytes)

// Client talks to the remote service.
type Client interface {
	// UploadEvents sends events and returns the IDs the remote accepted.
	// Uploads are idempotent: the remote deduplicates by event ID.
	UploadEvents(ctx context.Context, events []lynx.AccessEvent) ([]uuid.UUID, error)
	// FetchCredentials downloads the credential set if it differs from
	// version. changed is false when the remote reports no change.
	FetchCredentials(ctx context.Context, version string) (u credential.Update, changed bool, err error)
}

// StatusError is a non-2xx response.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d %s", e.Op, e.Code, http.StatusText(e.Code))
}

// Unwrap marks server-side failures as the service being unavailable.
func (e *StatusError) Unwrap() error {
	if e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests {
		return lynx.ErrSyncUnavailable
	}
	return nil
}

// HTTPClient implements Client over HTTP with protobuf bodies.
type HTTPClient struct {
	http     *http.Client
	base     *url.URL
	deviceID string
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRequestTimeout bounds every request.
func WithRequestTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewHTTPClient creates a client for deviceID against baseURL.
func NewHTTPClient(baseURL, deviceID string, opts ...HTTPOption) (*HTTPClient, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid sync url %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid sync url %q: scheme must be http or https", baseURL)
	}
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}

	c := &HTTPClient{
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		base:     base,
		deviceID: deviceID,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// UploadEvents POSTs an EventBatch. A 2xx response with an empty body
// acknowledges every event.
func (c *HTTPClient) UploadEvents(ctx context.Context, events []lynx.AccessEvent) ([]uuid.UUID, error) {
	if len(events) == 0 {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("events"),
		bytes.NewReader(MarshalEvents(events)))
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", ContentType)

	body, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{Op: "upload", Code: status}
	}

	if len(body) == 0 {
		ids := make([]uuid.UUID, len(events))
		for i, ev := range events {
			ids[i] = ev.ID
		}
		return ids, nil
	}
	ids, err := UnmarshalAck(body)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	return ids, nil
}

// FetchCredentials GETs the CredentialSet, conditional on version.
func (c *HTTPClient) FetchCredentials(ctx context.Context, version string) (credential.Update, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("credentials"), http.NoBody)
	if err != nil {
		return credential.Update{}, false, fmt.Errorf("download: %w", err)
	}
	req.Header.Set("Accept", ContentType)
	if version != "" {
		req.Header.Set("If-None-Match", quoteETag(version))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return credential.Update{}, false, fmt.Errorf("download: %w: %w", lynx.ErrSyncUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return credential.Update{}, false, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return credential.Update{}, false, &StatusError{Op: "download", Code: resp.StatusCode}
	}

	body, err := readBody(resp.Body)
	if err != nil {
		return credential.Update{}, false, fmt.Errorf("download: %w", err)
	}
	u, err := UnmarshalCredentialSet(body)
	if err != nil {
		return credential.Update{}, false, fmt.Errorf("download: %w", err)
	}
	if u.Version == "" {
		u.Version = unquoteETag(resp.Header.Get("ETag"))
	}
	return u, true, nil
}

func (c *HTTPClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", lynx.ErrSyncUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := readBody(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// readBody reads at most maxResponseBytes and rejects anything longer.
func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", lynx.ErrSyncUnavailable, err)
	}
	if len(body) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}

func (c *HTTPClient) endpoint(resource string) string {
	return c.base.JoinPath("v1", "devices", c.deviceID, resource).String()
}

func quoteETag(v string) string {
	if strings.HasPrefix(v, `"`) || strings.HasPrefix(v, "W/") {
		return v
	}
	return `"` + v + `"`
}

func unquoteETag(v string) string {
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

var _ Client = (*HTTPClient)(nil)
