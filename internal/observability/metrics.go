package observability

import (
	"context"
	"net/url"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/basecamp/netkit/internal/neterr"
	"github.com/basecamp/netkit/internal/network"
)

var _ network.Hooks = (*Metrics)(nil)

// Metrics exports client activity as Prometheus collectors.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Refreshes       *prometheus.CounterVec
	TransportErrors *prometheus.CounterVec
}

// NewMetrics registers the client collectors with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netkit_requests_total",
			Help: "Requests dispatched, by method, host and status code",
		}, []string{"method", "host", "code"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netkit_request_duration_seconds",
			Help:    "Time from dispatch to response",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "host"}),
		Refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netkit_token_refreshes_total",
			Help: "Refresher invocations, by reason and outcome",
		}, []string{"reason", "outcome"}),
		TransportErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netkit_transport_errors_total",
			Help: "Requests that failed without a response, by error kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) OnRequestStart(ctx context.Context, _ network.RequestInfo) context.Context {
	return ctx
}

func (m *Metrics) OnRequestEnd(_ context.Context, info network.RequestInfo, result network.RequestResult) {
	host := hostOf(info.URL)
	m.RequestDuration.WithLabelValues(info.Method, host).Observe(result.Duration.Seconds())

	if result.Err != nil {
		m.Requests.WithLabelValues(info.Method, host, "error").Inc()
		m.TransportErrors.WithLabelValues(neterr.FromTransport(result.Err).Kind.String()).Inc()
		return
	}
	m.Requests.WithLabelValues(info.Method, host, strconv.Itoa(result.StatusCode)).Inc()
}

func (m *Metrics) OnRefresh(_ context.Context, info network.RefreshInfo) {
	outcome := "success"
	if !info.Succeeded {
		outcome = "failure"
	}
	m.Refreshes.WithLabelValues(info.Reason, outcome).Inc()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
