// Package client talks to the progress store and provisioning HTTP APIs on
// behalf of one tenant session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moogar0880/problems"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	TenantHeader = "X-Tenant-ID"

	DefaultTimeout = 30 * time.Second
)

type Option func(*base)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(b *base) {
		b.http = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *base) {
		b.logger = logger
	}
}

type base struct {
	baseURL *url.URL
	session *Session
	http    *http.Client
	logger  *slog.Logger
}

func newBase(module, rawURL string, session *Session, timeout time.Duration, opts []Option) (*base, error) {
	if session == nil {
		return nil, ErrNoSession
	}

	baseURL, err := url.Parse(strings.TrimSuffix(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", rawURL, err)
	}

	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}

	b := &base{
		baseURL: baseURL,
		session: session,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.logger = b.logger.With("module", module, "tenant_id", session.TenantID)

	return b, nil
}

// do sends body as JSON and decodes a JSON response into out when out is
// not nil.
func (b *base) do(ctx context.Context, method, path string, body, out any) error {
	if !b.session.Active() {
		return ErrSessionExpired
	}

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", b.session.authorization())
	req.Header.Set(TenantHeader, b.session.TenantID)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(method, path, resp.StatusCode, raw)

		if apiErr.Unauthorized() {
			b.session.Drop()
			b.logger.WarnContext(ctx, "session dropped", "status", resp.StatusCode, "path", path)

			return errors.Join(ErrSessionExpired, apiErr)
		}

		return apiErr
	}

	if out == nil {
		return nil
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrMalformedResponse, err)
	}

	return nil
}

func newAPIError(method, path string, statusCode int, raw []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: statusCode}

	var problem problems.DefaultProblem
	if json.Unmarshal(raw, &problem) == nil && (problem.Detail != "" || problem.Title != "") {
		apiErr.Type = problem.Type
		apiErr.Title = problem.Title
		apiErr.Detail = problem.Detail

		return apiErr
	}

	apiErr.Detail = strings.TrimSpace(string(raw))

	return apiErr
}
