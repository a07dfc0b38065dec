// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package flusher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/bureau-connect/lib/clock"
	"github.com/bureau-foundation/bureau-connect/lib/compress"
	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
	"github.com/bureau-foundation/bureau-connect/lib/evictbuffer"
	"github.com/bureau-foundation/bureau-connect/lib/metrics"
	"github.com/bureau-foundation/bureau-connect/lib/netutil"
	"github.com/bureau-foundation/bureau-connect/lib/secret"
	"github.com/bureau-foundation/bureau-connect/lib/version"
)

// FlushPath is appended to the API origin to form the endpoint.
const FlushPath = "/v0/connect/flush"

// DigestHeader carries connectwire.Digest of the uncompressed reply.
const DigestHeader = "X-Bureau-Reply-Digest"

// ErrUnauthorized is wrapped by a StatusError for 401 and 403.
var ErrUnauthorized = errors.New("flusher: unauthorized")

// StatusError reports a non-2xx response from the flush endpoint.
type StatusError struct {
	StatusCode int
	RequestID  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("flusher: flushing %s: unexpected status %d", e.RequestID, e.StatusCode)
}

// Unwrap lets errors.Is(err, ErrUnauthorized) match 401 and 403.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// Buffer is the subset of *evictbuffer.Buffer the flusher uses.
type Buffer interface {
	OlderThan(age time.Duration) []evictbuffer.Entry
	DeleteEntry(entry evictbuffer.Entry) bool
}

// Config configures a Flusher.
type Config struct {
	// APIOrigin is the scheme and host of the flush endpoint. Required.
	APIOrigin string

	// PollInterval is the time between sweeps. Required.
	PollInterval time.Duration

	// TTL is the age after which an unacked reply is flushed. Required.
	TTL time.Duration

	// Timeout bounds each request, including a fallback retry.
	// Defaults to 5 seconds.
	Timeout time.Duration

	// Compression is applied to request bodies.
	Compression compress.Tag

	// SigningKey and SigningKeyFallback authenticate requests. Either
	// may be empty; with no key, requests carry no Authorization.
	SigningKey         string
	SigningKeyFallback string

	// Client defaults to a new http.Client.
	Client *http.Client

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger is required.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *metrics.FlushMetrics
}

// Stats counts flush outcomes since the flusher was created.
type Stats struct {
	Flushed uint64 `json:"flushed"`
	Failed  uint64 `json:"flush_failures"`
}

// Flusher sweeps a Buffer for stale replies and posts them.
type Flusher struct {
	buffer   Buffer
	endpoint string
	config   Config

	// Bearer tokens, nil when the corresponding key is unset.
	token         *secret.Buffer
	fallbackToken *secret.Buffer

	flushed atomic.Uint64
	failed  atomic.Uint64
}

// New validates config and returns a Flusher over buffer. Call Close
// to release the derived tokens.
func New(buffer Buffer, config Config) (*Flusher, error) {
	if config.Logger == nil {
		return nil, errors.New("flusher: Logger is required")
	}
	if config.PollInterval <= 0 || config.TTL <= 0 {
		return nil, errors.New("flusher: PollInterval and TTL must be positive")
	}
	origin, err := url.Parse(config.APIOrigin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("flusher: invalid API origin %q", config.APIOrigin)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.Client == nil {
		config.Client = &http.Client{}
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}

	flusher := &Flusher{
		buffer:   buffer,
		endpoint: origin.ResolveReference(&url.URL{Path: FlushPath}).String(),
		config:   config,
	}
	if config.SigningKey != "" {
		if flusher.token, err = newToken(config.SigningKey); err != nil {
			return nil, err
		}
	}
	if config.SigningKeyFallback != "" {
		if flusher.fallbackToken, err = newToken(config.SigningKeyFallback); err != nil {
			flusher.Close()
			return nil, fmt.Errorf("fallback key: %w", err)
		}
	}
	return flusher, nil
}

// Close releases the bearer tokens. The Flusher must not be used after.
func (f *Flusher) Close() error {
	var errs []error
	for _, token := range []*secret.Buffer{f.token, f.fallbackToken} {
		if token != nil {
			errs = append(errs, token.Close())
		}
	}
	return errors.Join(errs...)
}

// Run sweeps every PollInterval until ctx is cancelled. It always
// returns nil; individual flush failures are logged and counted.
func (f *Flusher) Run(ctx context.Context) error {
	ticker := f.config.Clock.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Sweep(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep flushes every entry older than TTL, oldest first, and deletes
// each one after its single attempt. A reply re-added under the same
// id while its flush ran is newer than the one flushed and stays. It returns the number delivered
// and the number that failed.
func (f *Flusher) Sweep(ctx context.Context) (flushed, failed int) {
	for _, entry := range f.buffer.OlderThan(f.config.TTL) {
		if ctx.Err() != nil {
			// Shutting down: the rest are neither attempted nor
			// counted as failures.
			return flushed, failed
		}
		err := f.Flush(ctx, entry)
		f.buffer.DeleteEntry(entry)
		if err != nil {
			failed++
			f.config.Logger.Error("failed to flush reply",
				"request_id", entry.ID,
				"age", f.config.Clock.Now().Sub(entry.Timestamp),
				"error", err,
			)
			continue
		}
		flushed++
		f.config.Logger.Debug("flushed reply", "request_id", entry.ID, "bytes", len(entry.Data))
	}
	return flushed, failed
}

// Flush posts one buffered reply. It does not touch the buffer.
func (f *Flusher) Flush(ctx context.Context, entry evictbuffer.Entry) error {
	start := f.config.Clock.Now()
	err := f.flush(ctx, entry)
	if f.config.Metrics != nil {
		f.config.Metrics.Latency.Observe(f.config.Clock.Now().Sub(start).Seconds())
	}
	if err != nil {
		f.failed.Add(1)
		if f.config.Metrics != nil {
			f.config.Metrics.Failures.WithLabelValues(failureReason(err)).Inc()
		}
		return err
	}
	f.flushed.Add(1)
	if f.config.Metrics != nil {
		f.config.Metrics.Flushed.Inc()
	}
	return nil
}

func (f *Flusher) flush(ctx context.Context, entry evictbuffer.Entry) error {
	body, applied, err := compress.Encode(f.config.Compression, entry.Data)
	if err != nil {
		return fmt.Errorf("flusher: encoding %s: %w", entry.ID, err)
	}
	digest := connectwire.Digest(entry.Data)

	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	status, err := f.post(ctx, body, applied, digest, f.token)
	if err != nil {
		return fmt.Errorf("flusher: flushing %s: %w", entry.ID, err)
	}
	if (status == http.StatusUnauthorized || status == http.StatusForbidden) && f.fallbackToken != nil {
		f.config.Logger.Warn("flush rejected with primary signing key, retrying with fallback",
			"request_id", entry.ID,
			"status", status,
		)
		status, err = f.post(ctx, body, applied, digest, f.fallbackToken)
		if err != nil {
			return fmt.Errorf("flusher: flushing %s with fallback key: %w", entry.ID, err)
		}
	}
	if status < 200 || status >= 300 {
		return &StatusError{StatusCode: status, RequestID: entry.ID}
	}
	return nil
}

// post sends one request and returns the response status.
func (f *Flusher) post(ctx context.Context, body []byte, encoding compress.Tag, digest string, token *secret.Buffer) (int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	request.Header.Set("Content-Type", "application/protobuf")
	request.Header.Set("User-Agent", version.UserAgent())
	request.Header.Set(DigestHeader, digest)
	if contentEncoding := encoding.ContentEncoding(); contentEncoding != "" {
		request.Header.Set("Content-Encoding", contentEncoding)
	}
	if token != nil {
		request.Header.Set("Authorization", "Bearer "+token.String())
	}

	response, err := f.config.Client.Do(request)
	if err != nil {
		return 0, err
	}
	defer response.Body.Close()
	netutil.DrainBody(response.Body)
	return response.StatusCode, nil
}

// Stats returns the delivered and failed counts.
func (f *Flusher) Stats() Stats {
	return Stats{Flushed: f.flushed.Load(), Failed: f.failed.Load()}
}

func failureReason(err error) string {
	var statusError *StatusError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.As(err, &statusError):
		return "status"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "transport"
	}
}
