// Package model implements the shallow network trained by fastText: an
// averaged embedding lookup followed by one of several output layers.
package model

import (
	"fmt"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/matrix"
)

// Model ties the input embeddings, the output matrix and the loss. The
// matrices are shared by every training goroutine, a State is not.
type Model struct {
	wi                matrix.Matrix
	wo                matrix.Matrix
	loss              Loss
	normalizeGradient bool
}

func New(wi, wo matrix.Matrix, loss Loss, normalizeGradient bool) *Model {
	return &Model{
		wi:                wi,
		wo:                wo,
		loss:              loss,
		normalizeGradient: normalizeGradient,
	}
}

func (m *Model) Input() matrix.Matrix {
	return m.wi
}

func (m *Model) Output() matrix.Matrix {
	return m.wo
}

func (m *Model) Loss() Loss {
	return m.loss
}

// NewState allocates a state sized for this model
func (m *Model) NewState(seed int64) *State {
	return NewState(m.wi.Cols(), m.wo.Rows(), seed)
}

// ComputeHidden sets state.Hidden to the mean of the input rows
func (m *Model) ComputeHidden(input []int32, state *State) {
	state.Hidden.Zero()
	for _, i := range input {
		state.Hidden.AddRow(m.wi, int(i), 1.0)
	}
	if len(input) > 0 {
		state.Hidden.Mul(1.0 / float32(len(input)))
	}
}

// Update runs one SGD step on the example (input, targets[targetIndex])
func (m *Model) Update(input []int32, targets []int32, targetIndex int32, lr float32, state *State) {
	if len(input) == 0 {
		return
	}
	m.ComputeHidden(input, state)
	state.Grad.Zero()
	loss := m.loss.Forward(targets, targetIndex, state, lr, true)
	state.addExample(loss)
	if m.normalizeGradient {
		state.Grad.Mul(1.0 / float32(len(input)))
	}
	for _, i := range input {
		m.wi.AddVectorToRow(state.Grad, int(i), 1.0)
	}
}

// Predict keeps in heap the k best outputs scoring at least threshold,
// sorted by descending score. k = -1 keeps every output.
func (m *Model) Predict(input []int32, k int, threshold float32, heap *Predictions, state *State) error {
	if k == -1 {
		k = m.wo.Rows()
	} else if k <= 0 {
		return fmt.Errorf("%w: k needs to be 1 or higher, got %d", args.ErrInvalidArgument, k)
	}
	*heap = (*heap)[:0]
	m.ComputeHidden(input, state)
	m.loss.Predict(k, threshold, heap, state)
	return nil
}
