package fasttext

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Option func(*FastText)

// WithRegisterer registers the training metrics with reg instead of a
// private registry. Gatherer returns reg when it is also a Gatherer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(ft *FastText) {
		ft.registerer = reg
		if g, ok := reg.(prometheus.Gatherer); ok {
			ft.gatherer = g
		} else {
			ft.gatherer = nil
		}
	}
}

// WithProgressInterval sets how often the monitor reports progress
func WithProgressInterval(d time.Duration) Option {
	return func(ft *FastText) {
		if d > 0 {
			ft.progressInterval = d
		}
	}
}
