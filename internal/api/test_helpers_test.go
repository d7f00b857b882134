// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/lunametrics/internal/cache"
	"github.com/tomtom215/lunametrics/internal/config"
	"github.com/tomtom215/lunametrics/internal/identity"
	"github.com/tomtom215/lunametrics/internal/models"
)

// testNow pins the handler clock: 2026-03-15 12:00 UTC.
var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory EngagementStore. err, when set, is returned by
// every operation. Calls are counted per operation.
type fakeStore struct {
	mu    sync.Mutex
	err   error
	calls map[string]int

	lastTypes  []string
	lastRange  models.DateRange
	lastAnchor time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{calls: make(map[string]int)}
}

func (f *fakeStore) record(op string, types []string, rng models.DateRange, anchor time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	f.lastTypes = types
	f.lastRange = rng
	f.lastAnchor = anchor
	return f.err
}

func (f *fakeStore) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.record("ping", nil, models.DateRange{}, time.Time{})
}

func (f *fakeStore) GetWindowCounts(ctx context.Context, types []string, anchor time.Time) (*models.WindowCounts, error) {
	if err := f.record("windows", types, models.DateRange{}, anchor); err != nil {
		return nil, err
	}
	return &models.WindowCounts{AnchorDay: anchor, DAU: 2, WAU: 5, MAU: 10, StickinessDAUMAU: 20, StickinessWAUMAU: 50}, nil
}

func (f *fakeStore) GetDailyActiveTrend(ctx context.Context, types []string, rng models.DateRange) ([]models.DailyActivePoint, error) {
	if err := f.record("trend", types, rng, time.Time{}); err != nil {
		return nil, err
	}
	return []models.DailyActivePoint{{Day: rng.StartDay(), DAU: 1}}, nil
}

func (f *fakeStore) GetUserSegments(ctx context.Context, types []string, rng models.DateRange) (*models.UserSegments, error) {
	if err := f.record("segments", types, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.UserSegments{ActiveUsers: 3, NewUsers: 1}, nil
}

func (f *fakeStore) GetReferrerBreakdown(ctx context.Context, types []string, rng models.DateRange) (*models.ReferrerBreakdown, error) {
	if err := f.record("referrers", types, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.ReferrerBreakdown{Direct: 1, Total: 1}, nil
}

func (f *fakeStore) GetRetentionCohorts(ctx context.Context, types []string, rng models.DateRange) (*models.RetentionReport, error) {
	if err := f.record("retention", types, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.RetentionReport{}, nil
}

func (f *fakeStore) GetWindowOverlap(ctx context.Context, types []string, anchor time.Time) (*models.WindowOverlap, error) {
	if err := f.record("overlap", types, models.DateRange{}, anchor); err != nil {
		return nil, err
	}
	return &models.WindowOverlap{}, nil
}

func (f *fakeStore) GetActiveDaysDistribution(ctx context.Context, types []string, rng models.DateRange) (*models.ActiveDaysDistribution, error) {
	if err := f.record("active_days", types, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.ActiveDaysDistribution{}, nil
}

func (f *fakeStore) GetEngagedReport(ctx context.Context, rng models.DateRange) (*models.EngagedReport, error) {
	if err := f.record("engaged", nil, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.EngagedReport{}, nil
}

func (f *fakeStore) GetGrimoireFunnel(ctx context.Context, rng models.DateRange) (*models.GrimoireFunnel, error) {
	if err := f.record("funnel", nil, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.GrimoireFunnel{GrimoireUsers: 4, ConvertedUsers: 1, ConversionRate: 25}, nil
}

func (f *fakeStore) GetConversionInfluence(ctx context.Context, rng models.DateRange) (*models.ConversionInfluence, error) {
	if err := f.record("influence", nil, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.ConversionInfluence{}, nil
}

func (f *fakeStore) GetGrimoireHealth(ctx context.Context, rng models.DateRange) (*models.GrimoireHealth, error) {
	if err := f.record("grimoire_health", nil, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.GrimoireHealth{}, nil
}

func (f *fakeStore) GetFeatureAdoption(ctx context.Context, rng models.DateRange) (*models.FeatureAdoption, error) {
	if err := f.record("features", nil, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.FeatureAdoption{}, nil
}

func (f *fakeStore) GetAuditDiagnostics(ctx context.Context, types []string, rng models.DateRange) (*models.AuditDiagnostics, error) {
	if err := f.record("audit", types, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.AuditDiagnostics{EventTypes: types}, nil
}

func (f *fakeStore) GetIdentityLinkAudit(ctx context.Context) (*models.IdentityLinkAudit, error) {
	if err := f.record("link_audit", nil, models.DateRange{}, time.Time{}); err != nil {
		return nil, err
	}
	return &models.IdentityLinkAudit{TotalLinks: 1}, nil
}

func (f *fakeStore) ResolveIdentity(ctx context.Context, userID, anonymousID string) (identity.Resolution, error) {
	if err := f.record("resolve", nil, models.DateRange{}, time.Time{}); err != nil {
		return identity.Resolution{}, err
	}
	switch {
	case userID != "":
		return identity.Resolution{Key: identity.UserPrefix + userID}, nil
	case anonymousID != "":
		return identity.Resolution{Key: identity.AnonPrefix + anonymousID}, nil
	default:
		return identity.Resolution{Missing: true}, nil
	}
}

func (f *fakeStore) ListMetricSnapshots(ctx context.Context, periodType string, limit int) ([]models.MetricSnapshot, error) {
	if err := f.record("snapshots", nil, models.DateRange{}, time.Time{}); err != nil {
		return nil, err
	}
	return []models.MetricSnapshot{{PeriodType: periodType, PeriodKey: "2026-W10", WAU: 40}}, nil
}

func (f *fakeStore) CompareSnapshots(ctx context.Context, periodType string) (*models.SnapshotComparison, error) {
	if err := f.record("compare", nil, models.DateRange{}, time.Time{}); err != nil {
		return nil, err
	}
	return &models.SnapshotComparison{Changes: map[string]*float64{}}, nil
}

func (f *fakeStore) GetEngagementOverview(ctx context.Context, rng models.DateRange) (*models.EngagementOverview, error) {
	if err := f.record("overview", nil, rng, time.Time{}); err != nil {
		return nil, err
	}
	return &models.EngagementOverview{Range: rng, Anomalies: []string{}, Warnings: []string{}}, nil
}

// testConfig returns a config with rate limiting off and a breaker that
// needs many requests to trip.
func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{RateLimitDisabled: true},
		Breaker: config.BreakerConfig{
			MinRequests:  100,
			FailureRatio: 1,
		},
	}
}

// setupTestHandler builds a handler over store with a fresh TTL cache and
// the clock pinned to testNow.
func setupTestHandler(t *testing.T, store EngagementStore) *Handler {
	t.Helper()
	c := cache.New(time.Minute)
	t.Cleanup(c.Close)

	h := NewHandler(store, c, testConfig())
	h.now = func() time.Time { return testNow }
	return h
}

// serve runs one GET against the full router.
func serve(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(h, NewChiMiddlewareFromConfig(h.config)).SetupChi()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeResponse decodes the JSON envelope.
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v; body=%s", err, w.Body.String())
	}
	return resp
}

// checkStatus fails the test when the status code differs.
func checkStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, want, w.Body.String())
	}
}

// checkErrorCode fails the test when the envelope error code differs.
func checkErrorCode(t *testing.T, resp models.APIResponse, want string) {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("error is nil, want code %s", want)
	}
	if resp.Error.Code != want {
		t.Errorf("error code = %s, want %s (message %q)", resp.Error.Code, want, resp.Error.Message)
	}
}

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func newGet(target string) *http.Request {
	return httptest.NewRequest(http.MethodGet, target, nil)
}
