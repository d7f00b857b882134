// Lunametrics - Engagement Metrics Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/lunametrics

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestRecordDBQuery(t *testing.T) {
	tests := []struct {
		name      string
		operation string
		err       error
		errType   string
	}{
		{"success", "select_dau", nil, ""},
		{"plain failure", "select_wau", errors.New("connection refused"), "query"},
		{"timeout", "select_mau", fmt.Errorf("wrap: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", "select_trend", context.Canceled, "canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var before float64
			if tt.err != nil {
				before = testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, "conversion_events", tt.errType))
			}

			RecordDBQuery(tt.operation, "conversion_events", 5*time.Millisecond, tt.err)

			if tt.err == nil {
				return
			}
			after := testutil.ToFloat64(DBQueryErrors.WithLabelValues(tt.operation, "conversion_events", tt.errType))
			if after != before+1 {
				t.Errorf("error counter = %v, want %v", after, before+1)
			}
		})
	}
}

func TestRecordDBQueryObservesHistogram(t *testing.T) {
	RecordDBQuery("histogram_probe", "analytics_identity_links", 20*time.Millisecond, nil)

	var m dto.Metric
	observer := DBQueryDuration.WithLabelValues("histogram_probe", "analytics_identity_links")
	if err := observer.(interface{ Write(*dto.Metric) error }).Write(&m); err != nil {
		t.Fatalf("failed to read histogram: %v", err)
	}
	if m.GetHistogram().GetSampleCount() < 1 {
		t.Error("expected at least one histogram sample")
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/engagement/windows", "200"))
	RecordAPIRequest("GET", "/api/v1/engagement/windows", "200", 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/engagement/windows", "200"))
	if after != before+1 {
		t.Errorf("api_requests_total = %v, want %v", after, before+1)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("active requests = %v, want %v", got, before+1)
	}
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestRecordAnomaly(t *testing.T) {
	before := testutil.ToFloat64(EngineAnomaliesTotal.WithLabelValues("dau_exceeds_wau"))
	RecordAnomaly("dau_exceeds_wau")
	RecordAnomaly("dau_exceeds_wau")
	after := testutil.ToFloat64(EngineAnomaliesTotal.WithLabelValues("dau_exceeds_wau"))
	if after != before+2 {
		t.Errorf("engine_anomalies_total = %v, want %v", after, before+2)
	}
}
