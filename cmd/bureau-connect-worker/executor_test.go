// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/bureau-connect/lib/compress"
	"github.com/bureau-foundation/bureau-connect/lib/config"
	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
)

func TestHTTPExecutorPostsToApp(t *testing.T) {
	type seen struct {
		method, fnID, stepID, contentType, requestID, runID, body string
	}
	requests := make(chan seen, 1)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		requests <- seen{
			method:      request.Method,
			fnID:        request.URL.Query().Get("fnId"),
			stepID:      request.URL.Query().Get("stepId"),
			contentType: request.Header.Get("Content-Type"),
			requestID:   request.Header.Get(headerRequestID),
			runID:       request.Header.Get(headerRunID),
			body:        string(body),
		}
		writer.Header().Set(headerNoRetry, "true")
		writer.Header().Set(headerRetryAfter, "30")
		writer.WriteHeader(http.StatusPartialContent)
		writer.Write([]byte(`[{"op":"step"}]`))
	}))
	defer server.Close()

	executor := newHTTPExecutor(server.Client(), testLogger())
	app := config.AppConfig{Name: "billing", URL: server.URL + "/api/connect"}
	reply := executor.Execute(context.Background(), app, connectwire.ExecutorRequest{
		RequestID:    "req-1",
		AppName:      "billing",
		FunctionSlug: "charge-card",
		StepID:       "step",
		RunID:        "run-1",
		Payload:      []byte(`{"event":{}}`),
	})

	got := <-requests
	want := seen{
		method:      http.MethodPost,
		fnID:        "charge-card",
		stepID:      "step",
		contentType: "application/json",
		requestID:   "req-1",
		runID:       "run-1",
		body:        `{"event":{}}`,
	}
	if got != want {
		t.Errorf("app saw %+v, want %+v", got, want)
	}

	if reply.RequestID != "req-1" || reply.AppName != "billing" {
		t.Errorf("reply identity = %q/%q", reply.RequestID, reply.AppName)
	}
	if reply.Status != connectwire.StatusNotCompleted {
		t.Errorf("Status = %v, want not_completed", reply.Status)
	}
	if string(reply.Body) != `[{"op":"step"}]` {
		t.Errorf("Body = %q", reply.Body)
	}
	if !reply.NoRetry || reply.RetryAfter != "30" {
		t.Errorf("NoRetry = %v, RetryAfter = %q", reply.NoRetry, reply.RetryAfter)
	}
}

func TestHTTPExecutorStatusMapping(t *testing.T) {
	tests := []struct {
		code int
		want connectwire.ReplyStatus
	}{
		{http.StatusOK, connectwire.StatusDone},
		{http.StatusPartialContent, connectwire.StatusNotCompleted},
		{http.StatusInternalServerError, connectwire.StatusError},
		{http.StatusNotFound, connectwire.StatusError},
		{http.StatusAccepted, connectwire.StatusError},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
				writer.WriteHeader(tt.code)
			}))
			defer server.Close()

			executor := newHTTPExecutor(server.Client(), testLogger())
			reply := executor.Execute(context.Background(),
				config.AppConfig{Name: "billing", URL: server.URL},
				connectwire.ExecutorRequest{RequestID: "req", AppName: "billing", FunctionSlug: "fn"})
			if reply.Status != tt.want {
				t.Errorf("HTTP %d mapped to %v, want %v", tt.code, reply.Status, tt.want)
			}
		})
	}
}

func TestHTTPExecutorUnreachableApp(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	executor := newHTTPExecutor(&http.Client{}, testLogger())
	reply := executor.Execute(context.Background(),
		config.AppConfig{Name: "billing", URL: url},
		connectwire.ExecutorRequest{RequestID: "req", AppName: "billing", FunctionSlug: "fn"})
	if reply.Status != connectwire.StatusError {
		t.Errorf("Status = %v, want error", reply.Status)
	}
	if !strings.Contains(string(reply.Body), "calling app") {
		t.Errorf("Body = %q, want the transport error", reply.Body)
	}
	if reply.RequestID != "req" {
		t.Errorf("RequestID = %q, want req", reply.RequestID)
	}
}

func TestHTTPExecutorDecodesCompressedResponse(t *testing.T) {
	plain := strings.Repeat(`{"op":"step","data":"unchanged"},`, 64)
	encoded, applied, err := compress.Encode(compress.Zstd, []byte(plain))
	if err != nil || applied != compress.Zstd {
		t.Fatalf("Encode = %v, %v; want zstd", applied, err)
	}
	accepted := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		accepted <- request.Header.Get("Accept-Encoding")
		writer.Header().Set("Content-Encoding", "zstd")
		writer.Write(encoded)
	}))
	defer server.Close()

	executor := newHTTPExecutor(server.Client(), testLogger())
	reply := executor.Execute(context.Background(),
		config.AppConfig{Name: "billing", URL: server.URL},
		connectwire.ExecutorRequest{RequestID: "req", AppName: "billing", FunctionSlug: "fn"})

	if got := <-accepted; got != acceptEncoding {
		t.Errorf("Accept-Encoding = %q, want %q", got, acceptEncoding)
	}
	if reply.Status != connectwire.StatusDone {
		t.Fatalf("Status = %v, want done: %s", reply.Status, reply.Body)
	}
	if string(reply.Body) != plain {
		t.Errorf("Body was not decoded: %d bytes", len(reply.Body))
	}
}

func TestHTTPExecutorRejectsUnknownEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Encoding", "br")
		writer.Write([]byte("opaque"))
	}))
	defer server.Close()

	executor := newHTTPExecutor(server.Client(), testLogger())
	reply := executor.Execute(context.Background(),
		config.AppConfig{Name: "billing", URL: server.URL},
		connectwire.ExecutorRequest{RequestID: "req", AppName: "billing", FunctionSlug: "fn"})
	if reply.Status != connectwire.StatusError {
		t.Errorf("Status = %v, want error", reply.Status)
	}
	if !strings.Contains(string(reply.Body), "app response encoding") {
		t.Errorf("Body = %q", reply.Body)
	}
}
