// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package connectwire

import (
	"fmt"
	"net/http"
)

// ReplyStatus is the outcome of an executed step as reported to the
// gateway.
type ReplyStatus int32

const (
	StatusUnspecified ReplyStatus = 0
	// StatusDone means the function finished.
	StatusDone ReplyStatus = 1
	// StatusNotCompleted means a step finished and the function has
	// more to run.
	StatusNotCompleted ReplyStatus = 2
	// StatusError means the step failed.
	StatusError ReplyStatus = 3
)

func (s ReplyStatus) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusNotCompleted:
		return "not_completed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// StatusFromHTTP maps the local app's HTTP status to a ReplyStatus.
// The second return is false for codes the app should never send;
// those map to StatusError.
func StatusFromHTTP(code int) (ReplyStatus, bool) {
	switch code {
	case http.StatusOK:
		return StatusDone, true
	case http.StatusPartialContent:
		return StatusNotCompleted, true
	case http.StatusInternalServerError:
		return StatusError, true
	default:
		return StatusError, false
	}
}
