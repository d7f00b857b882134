// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"context"
	"net/http"
	"strings"
)

// EngagementAudit returns raw event accounting for a count: events
// scanned, distinct canonical identities, rows without identity and rows
// resolved through an identity link.
//
// Method: GET
// Path: /api/v1/engagement/audit
//
// Audit results are never cached; they exist to check the live store.
func (h *Handler) EngagementAudit(w http.ResponseWriter, r *http.Request) {
	req, ok := h.bindRangeRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).ExecuteUncached(w, r, "audit diagnostics", func(ctx context.Context) (interface{}, error) {
		return h.store.GetAuditDiagnostics(ctx, req.EventTypes, req.Range)
	})
}

// EngagementIdentityLinkAudit reports on the identity link table.
//
// Method: GET
// Path: /api/v1/engagement/audit/identity-links
func (h *Handler) EngagementIdentityLinkAudit(w http.ResponseWriter, r *http.Request) {
	NewQueryExecutor(h).ExecuteUncached(w, r, "identity link audit", func(ctx context.Context) (interface{}, error) {
		return h.store.GetIdentityLinkAudit(ctx)
	})
}

// EngagementResolveIdentity shows the canonical identity a raw id pair
// resolves to with the current link snapshot.
//
// Method: GET
// Path: /api/v1/engagement/identity/resolve
//
// Query Parameters:
//   - user_id, anonymous_id: at least one is required
func (h *Handler) EngagementResolveIdentity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := resolveRequest{
		UserID:      strings.TrimSpace(q.Get("user_id")),
		AnonymousID: strings.TrimSpace(q.Get("anonymous_id")),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	NewQueryExecutor(h).ExecuteUncached(w, r, "identity resolution", func(ctx context.Context) (interface{}, error) {
		return h.store.ResolveIdentity(ctx, req.UserID, req.AnonymousID)
	})
}

// EngagementSnapshots lists stored weekly or monthly metric snapshots,
// newest first.
//
// Method: GET
// Path: /api/v1/engagement/snapshots
//
// Query Parameters:
//   - period: weekly (default) or monthly
//   - limit: 0 to 104 (0 selects the store default)
func (h *Handler) EngagementSnapshots(w http.ResponseWriter, r *http.Request) {
	req, ok := bindSnapshotRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).ExecuteUncached(w, r, "metric snapshots", func(ctx context.Context) (interface{}, error) {
		return h.store.ListMetricSnapshots(ctx, req.Period, req.Limit)
	})
}

// EngagementSnapshotCompare compares the latest snapshot of a period with
// the one before it.
//
// Method: GET
// Path: /api/v1/engagement/snapshots/compare
func (h *Handler) EngagementSnapshotCompare(w http.ResponseWriter, r *http.Request) {
	req, ok := bindSnapshotRequest(w, r)
	if !ok {
		return
	}
	NewQueryExecutor(h).ExecuteUncached(w, r, "snapshot comparison", func(ctx context.Context) (interface{}, error) {
		return h.store.CompareSnapshots(ctx, req.Period)
	})
}
