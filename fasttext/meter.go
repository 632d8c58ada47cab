package fasttext

import (
	"github.com/tshev/faster-FastText/model"
)

type labelMetrics struct {
	gold          int64
	predicted     int64
	predictedGold int64
}

func ratio(num, denom int64) float64 {
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}

// Meter accumulates precision and recall of predictions against gold
// labels, overall and per label.
type Meter struct {
	nexamples int64
	metrics   labelMetrics
	labels    map[int32]*labelMetrics
}

func NewMeter() *Meter {
	return &Meter{labels: make(map[int32]*labelMetrics)}
}

func (m *Meter) label(id int32) *labelMetrics {
	lm, ok := m.labels[id]
	if !ok {
		lm = &labelMetrics{}
		m.labels[id] = lm
	}
	return lm
}

// Log records the predictions made for one example with gold labels
func (m *Meter) Log(labels []int32, predictions []model.Prediction) {
	m.nexamples += 1
	m.metrics.gold += int64(len(labels))
	m.metrics.predicted += int64(len(predictions))
	for _, p := range predictions {
		lm := m.label(p.Label)
		lm.predicted += 1
		for _, l := range labels {
			if l == p.Label {
				lm.predictedGold += 1
				m.metrics.predictedGold += 1
				break
			}
		}
	}
	for _, l := range labels {
		m.label(l).gold += 1
	}
}

func (m *Meter) NExamples() int64 {
	return m.nexamples
}

// Precision is the share of predicted labels that were correct, 0 when
// nothing was predicted.
func (m *Meter) Precision() float64 {
	return ratio(m.metrics.predictedGold, m.metrics.predicted)
}

// Recall is the share of gold labels that were predicted, 0 when there
// were none.
func (m *Meter) Recall() float64 {
	return ratio(m.metrics.predictedGold, m.metrics.gold)
}

func (m *Meter) PrecisionLabel(id int32) float64 {
	lm, ok := m.labels[id]
	if !ok {
		return 0
	}
	return ratio(lm.predictedGold, lm.predicted)
}

func (m *Meter) RecallLabel(id int32) float64 {
	lm, ok := m.labels[id]
	if !ok {
		return 0
	}
	return ratio(lm.predictedGold, lm.gold)
}

func (m *Meter) F1Label(id int32) float64 {
	lm, ok := m.labels[id]
	if !ok {
		return 0
	}
	return ratio(2*lm.predictedGold, lm.predicted+lm.gold)
}
