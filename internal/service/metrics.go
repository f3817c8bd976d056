package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"docvault/internal/model"
	"docvault/internal/upload"
)

// Metrics counts upload outcomes per namespace.
type Metrics struct {
	uploads *prometheus.CounterVec
}

// NewMetrics registers the upload counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Total number of upload attempts by namespace and outcome.",
			},
			[]string{"namespace", "outcome"},
		),
	}
	if err := reg.Register(m.uploads); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(ns model.Namespace, err error) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(string(ns), outcome(err)).Inc()
}

func outcome(err error) string {
	var verr *upload.ValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &verr):
		return "rejected"
	case errors.Is(err, ErrRepository):
		return "repository_error"
	default:
		return "storage_error"
	}
}
