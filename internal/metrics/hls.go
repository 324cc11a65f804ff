// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics registers the Prometheus collectors for stream extraction
// and player process management on the default registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HLSSegmentFetchTotal counts segment fetch outcomes (ok, skipped, cancelled).
	HLSSegmentFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_hls_segment_fetch_total",
		Help: "Total number of HLS segment fetches by result",
	}, []string{"result"})

	// HLSSegmentRetryTotal counts retried segment, map and key requests.
	HLSSegmentRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_hls_retry_total",
		Help: "Total number of retried HLS requests by resource kind",
	}, []string{"kind"})

	// HLSSegmentFetchDuration tracks how long a complete segment fetch takes.
	HLSSegmentFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "streamgrab_hls_segment_fetch_duration_seconds",
		Help:    "Time to download and decode one HLS segment",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	})

	// HLSBytesWritten counts decoded bytes delivered to the sink.
	HLSBytesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgrab_hls_bytes_written_total",
		Help: "Total number of decoded segment bytes written to the sink",
	})

	// HLSKeyFetchTotal counts upstream key fetches by result.
	HLSKeyFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_hls_key_fetch_total",
		Help: "Total number of upstream HLS key fetches by result",
	}, []string{"result"})

	// HLSPlaylistReloadTotal counts media playlist reloads by result.
	HLSPlaylistReloadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgrab_hls_playlist_reload_total",
		Help: "Total number of media playlist reloads by result",
	}, []string{"result"})

	// HLSFallBehindSegments counts segments skipped because the live window moved past them.
	HLSFallBehindSegments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgrab_hls_fall_behind_segments_total",
		Help: "Total number of segments skipped after falling behind the live window",
	})
)

// IncSegmentFetch records a segment fetch outcome.
func IncSegmentFetch(result string) {
	HLSSegmentFetchTotal.WithLabelValues(result).Inc()
}

// ObserveSegmentFetch records the duration of a successful fetch.
func ObserveSegmentFetch(d time.Duration) {
	HLSSegmentFetchDuration.Observe(d.Seconds())
}

// IncRetry records a retried request for the given resource kind (segment, map, key, playlist).
func IncRetry(kind string) {
	HLSSegmentRetryTotal.WithLabelValues(kind).Inc()
}

// AddBytesWritten records bytes delivered to the sink.
func AddBytesWritten(n int) {
	if n > 0 {
		HLSBytesWritten.Add(float64(n))
	}
}

// IncKeyFetch records an upstream key fetch outcome.
func IncKeyFetch(success bool) {
	result := "error"
	if success {
		result = "ok"
	}
	HLSKeyFetchTotal.WithLabelValues(result).Inc()
}

// IncPlaylistReload records a playlist reload outcome.
func IncPlaylistReload(result string) {
	HLSPlaylistReloadTotal.WithLabelValues(result).Inc()
}

// AddFallBehind records the number of skipped segments.
func AddFallBehind(skipped int64) {
	if skipped > 0 {
		HLSFallBehindSegments.Add(float64(skipped))
	}
}
