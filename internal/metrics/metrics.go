// Package metrics exports Prometheus counters for fire resolutions and RPCs
// and serves them, with health probes, on the admin HTTP router.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc/codes"

	"github.com/bpgavigan/foundry-firearm-charge-module/internal/firearm"
	"github.com/bpgavigan/foundry-firearm-charge-module/internal/storage/postgres"
)

const namespace = "firearm"

// Metric names, without the namespace prefix.
const (
	MetricNameResolutions     = "resolutions_total"
	MetricNameResolveDuration = "resolve_duration_seconds"
	MetricNameMisfires        = "misfires_total"
	MetricNameReloadPrompts   = "reload_prompts_total"
	MetricNameRPCs            = "rpc_requests_total"
	MetricNameRPCDuration     = "rpc_duration_seconds"
	MetricNameHTTPRequests    = "admin_http_requests_total"
	MetricNameDBConns         = "db_connections"
)

// Label names.
const (
	LabelVerdict  = "verdict"
	LabelOutcome  = "outcome"
	LabelKind     = "kind"
	LabelReloaded = "reloaded"
	LabelMethod   = "method"
	LabelCode     = "code"
	LabelPath     = "path"
	LabelStatus   = "status"
	LabelState    = "state"
)

// Metrics holds every collector the daemon exports.
type Metrics struct {
	Resolutions     *prometheus.CounterVec
	ResolveDuration prometheus.Histogram
	Misfires        *prometheus.CounterVec
	ReloadPrompts   *prometheus.CounterVec
	RPCs            *prometheus.CounterVec
	RPCDuration     *prometheus.HistogramVec
	HTTPRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
//
// Precondition: reg must be non-nil and must not already hold these collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricNameResolutions,
			Help:      "Fire attempts resolved, by verdict and outcome.",
		}, []string{LabelVerdict, LabelOutcome}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricNameResolveDuration,
			Help:      "Time to resolve a fire attempt, including any reload prompt.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5, 30, 120},
		}),
		Misfires: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricNameMisfires,
			Help:      "Misfires by kind (fouled or cracked).",
		}, []string{LabelKind}),
		ReloadPrompts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricNameReloadPrompts,
			Help:      "Reload prompts answered, by whether the weapon was reloaded.",
		}, []string{LabelReloaded}),
		RPCs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricNameRPCs,
			Help:      "gRPC requests handled, by method and status code.",
		}, []string{LabelMethod, LabelCode}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      MetricNameRPCDuration,
			Help:      "gRPC request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{LabelMethod}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      MetricNameHTTPRequests,
			Help:      "Admin HTTP requests, by path and status.",
		}, []string{LabelPath, LabelStatus}),
	}
}

// ObserveResolution records one resolved fire attempt. Its signature matches
// firearm.Resolver.OnResolved.
func (m *Metrics) ObserveResolution(res firearm.Resolution, elapsed time.Duration) {
	m.Resolutions.WithLabelValues(res.Verdict.String(), res.Outcome.String()).Inc()
	m.ResolveDuration.Observe(elapsed.Seconds())
	switch res.Outcome {
	case firearm.OutcomeFouled, firearm.OutcomeCracked:
		m.Misfires.WithLabelValues(res.Outcome.String()).Inc()
	}
	if res.Reload != nil {
		reloaded := "false"
		if res.Reload.Reloaded {
			reloaded = "true"
		}
		m.ReloadPrompts.WithLabelValues(reloaded).Inc()
	}
}

// ObserveRPC records one unary call. Its signature matches gameserver.RPCObserver.
func (m *Metrics) ObserveRPC(method string, code codes.Code, elapsed time.Duration) {
	m.RPCs.WithLabelValues(method, code.String()).Inc()
	m.RPCDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// StatsSource reports connection pool usage.
type StatsSource interface {
	Stats() postgres.PoolStats
}

// RegisterPoolStats exports pool connection counts as a gauge by state.
//
// Precondition: reg and src must be non-nil.
func RegisterPoolStats(reg prometheus.Registerer, src StatsSource) {
	f := promauto.With(reg)
	for _, state := range []string{"total", "acquired", "idle"} {
		state := state
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        MetricNameDBConns,
			Help:        "Database connections by state.",
			ConstLabels: prometheus.Labels{LabelState: state},
		}, func() float64 {
			s := src.Stats()
			switch state {
			case "acquired":
				return float64(s.AcquiredConns)
			case "idle":
				return float64(s.IdleConns)
			default:
				return float64(s.TotalConns)
			}
		})
	}
}
