package model

import (
	"math"

	"github.com/tshev/faster-FastText/matrix"
	"github.com/tshev/faster-FastText/util"
)

func init() {
	Register("softmax", NewSoftmax)
	Register("ova", NewOneVsAll)
}

// AllLabelsAsTarget makes Forward score every target at once
const AllLabelsAsTarget = -1

// defaultPredict scores every output row and keeps the k best
func defaultPredict(l Loss, k int, threshold float32, heap *Predictions, state *State) {
	l.ComputeOutput(state)
	findKBest(k, threshold, heap, state.Output)
	heap.sortDesc()
}

// binaryLogistic is the sigmoid loss of one output row, shared by the
// one-vs-all, negative sampling and hierarchical softmax losses.
type binaryLogistic struct {
	wo matrix.Matrix
}

func (b *binaryLogistic) forward(target int32, state *State, positive bool, lr float32, backprop bool) float32 {
	score := util.Sigmoid(b.wo.DotRow(state.Hidden, int(target)))
	if backprop {
		label := float32(0)
		if positive {
			label = 1
		}
		alpha := lr * (label - score)
		state.Grad.AddRow(b.wo, int(target), alpha)
		b.wo.AddVectorToRow(state.Hidden, int(target), alpha)
	}
	if positive {
		return -util.Log(score)
	}
	return -util.Log(1.0 - score)
}

func (b *binaryLogistic) ComputeOutput(state *State) {
	state.Output.MulMatrix(b.wo, state.Hidden)
	for i, o := range state.Output {
		state.Output[i] = util.Sigmoid(o)
	}
}

type OneVsAll struct {
	binaryLogistic
}

func NewOneVsAll(output matrix.Matrix, neg int, counts []int64) Loss {
	return &OneVsAll{binaryLogistic{wo: output}}
}

func contains(targets []int32, i int32) bool {
	for _, t := range targets {
		if t == i {
			return true
		}
	}
	return false
}

// Forward treats every output row as an independent binary problem;
// targetIndex is ignored.
func (o *OneVsAll) Forward(targets []int32, targetIndex int32, state *State, lr float32, backprop bool) float32 {
	loss := float32(0)
	for i := 0; i < len(state.Output); i += 1 {
		loss += o.forward(int32(i), state, contains(targets, int32(i)), lr, backprop)
	}
	return loss
}

func (o *OneVsAll) Predict(k int, threshold float32, heap *Predictions, state *State) {
	defaultPredict(o, k, threshold, heap, state)
}

type Softmax struct {
	wo matrix.Matrix
}

func NewSoftmax(output matrix.Matrix, neg int, counts []int64) Loss {
	return &Softmax{wo: output}
}

func (s *Softmax) ComputeOutput(state *State) {
	out := state.Output
	out.MulMatrix(s.wo, state.Hidden)
	if len(out) == 0 {
		return
	}
	maxScore := out[0]
	for _, o := range out {
		if o > maxScore {
			maxScore = o
		}
	}
	z := float32(0)
	for i, o := range out {
		out[i] = float32(math.Exp(float64(o - maxScore)))
		z += out[i]
	}
	for i := range out {
		out[i] /= z
	}
}

func (s *Softmax) Forward(targets []int32, targetIndex int32, state *State, lr float32, backprop bool) float32 {
	s.ComputeOutput(state)
	target := targets[targetIndex]
	if backprop {
		for i := 0; i < len(state.Output); i += 1 {
			label := float32(0)
			if int32(i) == target {
				label = 1
			}
			alpha := lr * (label - state.Output[i])
			state.Grad.AddRow(s.wo, i, alpha)
			s.wo.AddVectorToRow(state.Hidden, i, alpha)
		}
	}
	return -util.Log(state.Output[target])
}

func (s *Softmax) Predict(k int, threshold float32, heap *Predictions, state *State) {
	defaultPredict(s, k, threshold, heap, state)
}
