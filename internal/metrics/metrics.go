// Package metrics exposes controller counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "miro_behavior"

// Metrics holds the controller collectors. A nil *Metrics is valid and
// records nothing, which keeps tests free of registry setup.
type Metrics struct {
	Ticks          prometheus.Counter
	PublishErrors  prometheus.Counter
	DecodeErrors   prometheus.Counter
	SensorReadings prometheus.Counter
	TickDuration   prometheus.Histogram
	State          *prometheus.GaugeVec
	Running        prometheus.Gauge
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Control loop ticks executed.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Actuator commands that failed to publish.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Sensor readings rejected by the decoder.",
		}),
		SensorReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_readings_total",
			Help:      "Sensor readings stored in the cache.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent selecting, building and publishing one command.",
			Buckets:   []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "1 for the behavior state selected on the last tick.",
		}, []string{"mood", "state"}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while the control loop is RUNNING, 0 once terminated.",
		}),
	}
	reg.MustRegister(m.Ticks, m.PublishErrors, m.DecodeErrors, m.SensorReadings,
		m.TickDuration, m.State, m.Running)
	return m
}

// ObserveTick records one completed tick
func (m *Metrics) ObserveTick(seconds float64, publishFailed bool) {
	if m == nil {
		return
	}
	m.Ticks.Inc()
	m.TickDuration.Observe(seconds)
	if publishFailed {
		m.PublishErrors.Inc()
	}
}

// SetState marks mood/state as the active one
func (m *Metrics) SetState(mood, state string) {
	if m == nil {
		return
	}
	m.State.Reset()
	m.State.WithLabelValues(mood, state).Set(1)
}

// SetRunning reports the loop phase
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.Running.Set(1)
	} else {
		m.Running.Set(0)
	}
}

// ObserveReading counts a sensor reading, accepted or rejected
func (m *Metrics) ObserveReading(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DecodeErrors.Inc()
		return
	}
	m.SensorReadings.Inc()
}
