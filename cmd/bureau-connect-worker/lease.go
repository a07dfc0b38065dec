// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/bureau-foundation/bureau-connect/lib/connectwire"
)

// heldLease is a request the worker is executing and keeps renewing.
// Fields other than cancel are guarded by Worker.leasesMu.
type heldLease struct {
	extend connectwire.ExtendLease
	cancel context.CancelFunc
	lost   bool
}

// trackLease starts renewing the lease on request until releaseLease.
// cancel aborts the execution if the gateway refuses a renewal.
func (w *Worker) trackLease(request connectwire.ExecutorRequest, cancel context.CancelFunc) *heldLease {
	held := &heldLease{
		extend: connectwire.ExtendLease{
			RequestID:    request.RequestID,
			FunctionSlug: request.FunctionSlug,
			StepID:       request.StepID,
			RunID:        request.RunID,
			LeaseID:      request.LeaseID,
		},
		cancel: cancel,
	}
	w.leasesMu.Lock()
	defer w.leasesMu.Unlock()
	w.leases[request.RequestID] = held
	return held
}

// releaseLease stops renewing held and reports whether the lease was
// lost while the step ran. A redelivered request may have replaced
// held under the same id; that newer lease is left alone.
func (w *Worker) releaseLease(held *heldLease) (lost bool) {
	w.leasesMu.Lock()
	defer w.leasesMu.Unlock()
	if w.leases[held.extend.RequestID] == held {
		delete(w.leases, held.extend.RequestID)
	}
	return held.lost
}

// heldLeaseCount returns the number of leases being renewed.
func (w *Worker) heldLeaseCount() int {
	w.leasesMu.Lock()
	defer w.leasesMu.Unlock()
	return len(w.leases)
}

// handleExtendLeaseAck records the renewed lease id, or gives up the
// request when the gateway could not renew it.
func (w *Worker) handleExtendLeaseAck(ack connectwire.ExtendLeaseAck) {
	w.leasesMu.Lock()
	held, ok := w.leases[ack.RequestID]
	if ok {
		if ack.NewLeaseID != "" {
			held.extend.LeaseID = ack.NewLeaseID
		} else {
			// The lease expired or another worker now holds it.
			held.lost = true
			delete(w.leases, ack.RequestID)
		}
	}
	w.leasesMu.Unlock()

	switch {
	case !ok:
		w.logger.Warn("lease extension ack for unknown request", "request_id", ack.RequestID)
	case ack.NewLeaseID == "":
		w.logger.Info("lease could not be extended, abandoning execution", "request_id", ack.RequestID)
		held.cancel()
	}
}

// runLeaseExtender renews every held lease each LeaseExtendInterval
// until ctx is cancelled. A failed write is logged; the read loop
// notices a dead connection.
func (w *Worker) runLeaseExtender(ctx context.Context, session *gatewaySession) {
	ticker := w.clock.NewTicker(w.gateway.LeaseExtendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.extendLeases(session)
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) extendLeases(session *gatewaySession) {
	w.leasesMu.Lock()
	pending := make([]connectwire.ExtendLease, 0, len(w.leases))
	for _, held := range w.leases {
		pending = append(pending, held.extend)
	}
	w.leasesMu.Unlock()

	if len(pending) == 0 {
		return
	}
	w.logger.Debug("extending leases", "count", len(pending))
	for _, extend := range pending {
		message := connectwire.Message{Kind: connectwire.KindWorkerRequestExtendLease, Payload: extend.Marshal()}
		if err := session.send(message); err != nil {
			w.logger.Warn("failed to extend lease", "request_id", extend.RequestID, "error", err)
		}
	}
}
