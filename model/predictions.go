package model

import (
	"container/heap"
	"sort"

	"github.com/tshev/faster-FastText/matrix"
	"github.com/tshev/faster-FastText/util"
)

type Prediction struct {
	Score float32 // log probability
	Label int32
}

// Predictions is a bounded min-heap of predictions. On equal scores the
// larger label id sits closer to the root, so ties keep the outputs seen
// first.
type Predictions []Prediction

func (p Predictions) Len() int { return len(p) }

func (p Predictions) Less(i, j int) bool {
	if p[i].Score != p[j].Score {
		return p[i].Score < p[j].Score
	}
	return p[i].Label > p[j].Label
}

func (p Predictions) Swap(i, j int) { p[i], p[j] = p[j], p[i] }

func (p *Predictions) Push(x interface{}) {
	*p = append(*p, x.(Prediction))
}

func (p *Predictions) Pop() interface{} {
	old := *p
	n := len(old)
	x := old[n-1]
	*p = old[:n-1]
	return x
}

// worst returns the score at the root of the heap
func (p Predictions) worst() float32 {
	return p[0].Score
}

// offer pushes a prediction and evicts the worst one beyond k entries
func (p *Predictions) offer(score float32, label int32, k int) {
	heap.Push(p, Prediction{Score: score, Label: label})
	if p.Len() > k {
		heap.Pop(p)
	}
}

// sortDesc orders by score descending, then by label id ascending
func (p Predictions) sortDesc() {
	sort.Slice(p, func(i, j int) bool {
		if p[i].Score != p[j].Score {
			return p[i].Score > p[j].Score
		}
		return p[i].Label < p[j].Label
	})
}

func findKBest(k int, threshold float32, preds *Predictions, output matrix.Vector) {
	for i, o := range output {
		if o < threshold {
			continue
		}
		score := util.StdLog(o)
		if preds.Len() == k && score < preds.worst() {
			continue
		}
		preds.offer(score, int32(i), k)
	}
}
