package fasttext

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics mirrors the progress line of a training run
type metrics struct {
	tokens   prometheus.Counter
	progress prometheus.Gauge
	lr       prometheus.Gauge
	loss     prometheus.Gauge
	wst      prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		tokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fasttext_tokens_processed_total",
			Help: "tokens consumed by the training workers",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fasttext_progress_ratio",
			Help: "fraction of the token budget of the current run already consumed",
		}),
		lr: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fasttext_learning_rate",
			Help: "current learning rate",
		}),
		loss: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fasttext_loss",
			Help: "average loss observed by the first worker",
		}),
		wst: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fasttext_words_per_second_per_thread",
			Help: "training throughput per worker",
		}),
	}
	m.tokens = register(reg, m.tokens).(prometheus.Counter)
	m.progress = register(reg, m.progress).(prometheus.Gauge)
	m.lr = register(reg, m.lr).(prometheus.Gauge)
	m.loss = register(reg, m.loss).(prometheus.Gauge)
	m.wst = register(reg, m.wst).(prometheus.Gauge)
	return m
}

// register adds c to reg, reusing the collector already registered under
// the same name by another session.
func register(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

func (m *metrics) observe(tokens int64, p progressInfo) {
	m.tokens.Add(float64(tokens))
	m.progress.Set(p.progress)
	m.lr.Set(p.lr)
	if p.loss >= 0 {
		m.loss.Set(p.loss)
	}
	m.wst.Set(p.wst)
}
