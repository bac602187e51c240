package httpapi

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/yakushift/staffing-platform/internal/records"
)

// statisticsFunc computes stored-request aggregates; the records
// store's Statistics method satisfies it.
type statisticsFunc func(ctx context.Context) (*records.Statistics, error)

// latencyFunc produces a dispatch latency snapshot; DispatchLatency
// bound to the metrics gatherer satisfies it.
type latencyFunc func() (*LatencySnapshot, error)

// LatencySnapshot summarizes the dispatch job latency histogram at the
// moment of the statistics call.
type LatencySnapshot struct {
	Jobs           uint64  `json:"jobs"`
	AverageSeconds float64 `json:"average_seconds"`
}

const dispatchLatencyMetric = "yakushift_dispatch_job_latency_seconds"

// DispatchLatency reads the dispatch latency histogram back out of the
// Prometheus registry, so the statistics endpoint reports what the
// scrape endpoint already exposes.
func DispatchLatency(g prometheus.Gatherer) latencyFunc {
	return func() (*LatencySnapshot, error) {
		families, err := g.Gather()
		if err != nil {
			return nil, err
		}
		snap := &LatencySnapshot{}
		for _, fam := range families {
			if fam.GetName() != dispatchLatencyMetric || fam.GetType() != dto.MetricType_HISTOGRAM {
				continue
			}
			var sum float64
			for _, m := range fam.GetMetric() {
				h := m.GetHistogram()
				snap.Jobs += h.GetSampleCount()
				sum += h.GetSampleSum()
			}
			if snap.Jobs > 0 {
				snap.AverageSeconds = sum / float64(snap.Jobs)
			}
		}
		return snap, nil
	}
}

type statisticsResponse struct {
	Requests        *records.Statistics `json:"requests,omitempty"`
	DispatchLatency *LatencySnapshot    `json:"dispatch_latency,omitempty"`
}

// Statistics reports records-store aggregates plus the dispatch latency
// snapshot. Either half degrades independently: a missing records store
// or a gather failure drops its section rather than failing the call.
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	resp := statisticsResponse{}

	if h.stats != nil {
		stats, err := h.stats(r.Context())
		if err != nil {
			h.log.Warn("admin: statistics query failed", "error", err)
		} else {
			resp.Requests = stats
		}
	}
	if h.latency != nil {
		snap, err := h.latency()
		if err != nil {
			h.log.Warn("admin: latency snapshot failed", "error", err)
		} else {
			resp.DispatchLatency = snap
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
