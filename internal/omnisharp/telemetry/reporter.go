package telemetry

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Reporter receives telemetry events.
type Reporter interface {
	SendTelemetryEvent(name string, properties map[string]string, measures map[string]float64)
}

// Send delivers events to r. A nil r discards them.
func Send(r Reporter, events []Event) {
	if r == nil {
		return
	}
	for _, e := range events {
		r.SendTelemetryEvent(e.Name, nil, e.Measures)
	}
}

// MultiReporter sends every event to each of its reporters.
type MultiReporter []Reporter

func (m MultiReporter) SendTelemetryEvent(name string, properties map[string]string, measures map[string]float64) {
	for _, r := range m {
		r.SendTelemetryEvent(name, properties, measures)
	}
}

// PrometheusReporter accumulates delay measures into a counter labelled by
// event name and delay band.
type PrometheusReporter struct {
	delays *prometheus.CounterVec
}

// NewPrometheusReporter creates the counter and registers it with reg.
func NewPrometheusReporter(reg prometheus.Registerer) (*PrometheusReporter, error) {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omnisharp",
		Name:      "request_delays_total",
		Help:      "Completed OmniSharp requests by round-trip delay band.",
	}, []string{"event", "band"})
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, errors.Wrap(err, "failed to register delay counter")
		}
		c = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return &PrometheusReporter{delays: c}, nil
}

func (r *PrometheusReporter) SendTelemetryEvent(name string, properties map[string]string, measures map[string]float64) {
	for band, v := range measures {
		if v <= 0 {
			continue
		}
		r.delays.WithLabelValues(name, band).Add(v)
	}
}

// LogReporter writes telemetry events as debug log entries.
type LogReporter struct {
	Log logrus.FieldLogger
}

func (r *LogReporter) SendTelemetryEvent(name string, properties map[string]string, measures map[string]float64) {
	fields := make(logrus.Fields, len(properties)+len(measures))
	for k, v := range measures {
		fields[k] = v
	}
	for k, v := range properties {
		fields[k] = v
	}
	r.Log.WithFields(fields).Debugf("telemetry %v", name)
}
