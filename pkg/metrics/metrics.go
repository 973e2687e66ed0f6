package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "listings"

// Recorder exports verification and expiry sweep counters.
type Recorder struct {
	registry      *prometheus.Registry
	verifications *prometheus.CounterVec
	expired       prometheus.Counter
	demoted       prometheus.Counter
}

func New() (*Recorder, error) {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Payment verification attempts by flow and result.",
		}, []string{"flow", "result"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions moved to expired by the sweep.",
		}),
		demoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listings_demoted_total",
			Help:      "Listings whose premium flag was cleared by the sweep.",
		}),
	}

	toRegister := []prometheus.Collector{
		r.verifications,
		r.expired,
		r.demoted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return r, nil
}

func (r *Recorder) ObserveVerification(flow, result string) {
	if r == nil {
		return
	}
	r.verifications.WithLabelValues(flow, result).Inc()
}

func (r *Recorder) ObserveSweep(expired, demoted int64) {
	if r == nil {
		return
	}
	r.expired.Add(float64(expired))
	r.demoted.Add(float64(demoted))
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
