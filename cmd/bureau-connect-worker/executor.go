// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bureau-foundation/bureau-connect/lib/compress"
	"github.com/bureau-foundation/bureau-connect/lib/config"
	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
	"github.com/bureau-foundation/bureau-connect/lib/netutil"
	"github.com/bureau-foundation/bureau-connect/lib/version"
)

// Headers exchanged with the local app.
const (
	headerRequestID  = "X-Bureau-Request-Id"
	headerRunID      = "X-Bureau-Run-Id"
	headerNoRetry    = "X-Bureau-No-Retry"
	headerRetryAfter = "Retry-After"

	// Codecs the app may use for its response. Setting the header
	// turns off the transport's implicit gzip.
	acceptEncoding = "zstd, lz4"
)

// Executor runs one step against a local app. It never fails: a step
// that cannot be run produces a reply with StatusError, which is
// itself a result the gateway must receive.
type Executor interface {
	Execute(ctx context.Context, app config.AppConfig, request connectwire.ExecutorRequest) connectwire.Reply
}

// httpExecutor POSTs the request payload to the app's URL with the
// function slug as the fnId query parameter.
type httpExecutor struct {
	client *http.Client
	logger *slog.Logger
}

func newHTTPExecutor(client *http.Client, logger *slog.Logger) *httpExecutor {
	return &httpExecutor{client: client, logger: logger}
}

func (e *httpExecutor) Execute(ctx context.Context, app config.AppConfig, request connectwire.ExecutorRequest) connectwire.Reply {
	reply := connectwire.Reply{
		RequestID: request.RequestID,
		AppName:   request.AppName,
	}

	status, header, body, err := e.post(ctx, app.URL, request)
	if err != nil {
		e.logger.Error("step execution failed", "request_id", request.RequestID, "error", err)
		reply.Status = connectwire.StatusError
		reply.Body = []byte(err.Error())
		return reply
	}

	var known bool
	reply.Status, known = connectwire.StatusFromHTTP(status)
	if !known {
		e.logger.Warn("unexpected status code from app",
			"request_id", request.RequestID,
			"status_code", status,
		)
	}
	reply.Body = body
	reply.NoRetry = strings.EqualFold(header.Get(headerNoRetry), "true")
	reply.RetryAfter = header.Get(headerRetryAfter)
	return reply
}

func (e *httpExecutor) post(ctx context.Context, appURL string, request connectwire.ExecutorRequest) (int, http.Header, []byte, error) {
	target, err := url.Parse(appURL)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("parsing app url: %w", err)
	}
	query := target.Query()
	query.Set("fnId", request.FunctionSlug)
	if request.StepID != "" {
		query.Set("stepId", request.StepID)
	}
	target.RawQuery = query.Encode()

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), bytes.NewReader(request.Payload))
	if err != nil {
		return 0, nil, nil, err
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("User-Agent", version.UserAgent())
	httpRequest.Header.Set("Accept-Encoding", acceptEncoding)
	httpRequest.Header.Set(headerRequestID, request.RequestID)
	if request.RunID != "" {
		httpRequest.Header.Set(headerRunID, request.RunID)
	}

	response, err := e.client.Do(httpRequest)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("calling app: %w", err)
	}
	defer response.Body.Close()

	// A reply body larger than a frame could never reach the gateway.
	body, err := netutil.ReadBody(response.Body, connectwire.MaxFrameSize)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("reading app response: %w", err)
	}
	encoding, err := compress.ParseContentEncoding(response.Header.Get("Content-Encoding"))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("app response encoding: %w", err)
	}
	body, err = compress.Decode(encoding, body, connectwire.MaxFrameSize)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("decoding app response: %w", err)
	}
	return response.StatusCode, response.Header, body, nil
}
