// Package metrics exposes prometheus collectors for the scoring pipeline.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "adherence"

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Requests sent to the profile lookup API by kind and resulting status",
		},
		[]string{"kind", "status"},
	)

	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Profile resolutions by outcome",
		},
		[]string{"outcome"},
	)

	ResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolution_duration_seconds",
			Help:      "Time spent resolving a single candidate profile",
			Buckets:   []float64{1, 3, 6, 15, 30, 60, 120, 300},
		},
	)

	CandidateScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidate_score",
			Help:      "Adherence scores of resolved candidates",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		},
	)

	CandidatesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_processed_total",
			Help:      "Candidates processed by the batch by result",
		},
		[]string{"result"},
	)
)

// ObserveAPIRequest counts one call to the lookup API. A zero status means the
// call failed before a response arrived.
func ObserveAPIRequest(kind string, status int) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	APIRequests.WithLabelValues(kind, label).Inc()
}

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
}
