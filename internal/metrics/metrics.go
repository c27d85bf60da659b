// Package metrics instruments token exchanges and provider logins.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use through a nil pointer, which records nothing.
type Metrics struct {
	exchanges        *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	brokerCalls      *prometheus.CounterVec
	logins           *prometheus.CounterVec
	loginDuration    *prometheus.HistogramVec
	cacheLookups     *prometheus.CounterVec
	pendingLogouts   prometheus.Counter
}

// New creates the collectors and registers them on reg (the default
// registerer when nil).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mvpdauth_exchanges_total",
			Help: "Media token exchanges by result",
		}, []string{"result"}), // result: ok|config|auth|parse|error
		exchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mvpdauth_exchange_duration_seconds",
			Help:    "Wall time of a full media token exchange",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		brokerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mvpdauth_broker_calls_total",
			Help: "Broker round trips by step and outcome",
		}, []string{"step", "outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mvpdauth_provider_logins_total",
			Help: "Provider login attempts by provider, flow and result",
		}, []string{"provider", "flow", "result"}),
		loginDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mvpdauth_provider_login_duration_seconds",
			Help:    "Wall time of a provider login flow",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mvpdauth_token_cache_lookups_total",
			Help: "Cached token lookups by token kind and result",
		}, []string{"token", "result"}), // result: hit|miss|expired
		pendingLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mvpdauth_pending_logouts_total",
			Help: "Broker responses reporting a pending logout",
		}),
	}

	var err error
	if m.exchanges, err = register(reg, m.exchanges); err != nil {
		return nil, err
	}
	if m.exchangeDuration, err = register(reg, m.exchangeDuration); err != nil {
		return nil, err
	}
	if m.brokerCalls, err = register(reg, m.brokerCalls); err != nil {
		return nil, err
	}
	if m.logins, err = register(reg, m.logins); err != nil {
		return nil, err
	}
	if m.loginDuration, err = register(reg, m.loginDuration); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = register(reg, m.cacheLookups); err != nil {
		return nil, err
	}
	if m.pendingLogouts, err = register(reg, m.pendingLogouts); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg, returning the collector already registered under
// the same descriptor if there is one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) ObserveExchange(result string, started time.Time) {
	if m == nil {
		return
	}
	m.exchanges.WithLabelValues(result).Inc()
	m.exchangeDuration.Observe(time.Since(started).Seconds())
}

func (m *Metrics) BrokerCall(step string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.brokerCalls.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) ObserveLogin(provider, flow string, err error, started time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.logins.WithLabelValues(provider, flow, result).Inc()
	m.loginDuration.WithLabelValues(flow).Observe(time.Since(started).Seconds())
}

func (m *Metrics) CacheLookup(token, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(token, result).Inc()
}

func (m *Metrics) PendingLogout() {
	if m == nil {
		return
	}
	m.pendingLogouts.Inc()
}
