// Package metrics exposes pipeline counters for prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	framesProcessed prometheus.Counter
	frameErrors     prometheus.Counter
	detections      *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	frameDuration   prometheus.Histogram
	registryPlates  prometheus.Gauge
}

// New creates the pipeline metrics and registers them with registry.
func New(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_frames_processed_total",
			Help: "Total number of frames run through the detection pipeline",
		}),
		frameErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platewatch_frame_errors_total",
			Help: "Total number of frames that failed detection",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platewatch_detections_total",
			Help: "Total number of reconciled plate detections",
		}, []string{"status"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "platewatch_alerts_total",
			Help: "Total number of enquiry alerts sent",
		}, []string{"alerter", "result"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "platewatch_frame_duration_seconds",
			Help:    "Time taken to process one frame",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		registryPlates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "platewatch_registry_plates",
			Help: "Number of plates in the loaded registry snapshot",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.framesProcessed, m.frameErrors, m.detections, m.alerts, m.frameDuration, m.registryPlates,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// The methods below accept a nil receiver so callers without metrics can
// skip the wiring.

func (m *Metrics) FrameProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.framesProcessed.Inc()
	m.frameDuration.Observe(d.Seconds())
}

func (m *Metrics) FrameFailed() {
	if m == nil {
		return
	}
	m.frameErrors.Inc()
}

func (m *Metrics) Detection(status string) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(status).Inc()
}

func (m *Metrics) Alert(alerter string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.alerts.WithLabelValues(alerter, result).Inc()
}

func (m *Metrics) RegistrySize(n int) {
	if m == nil {
		return
	}
	m.registryPlates.Set(float64(n))
}
