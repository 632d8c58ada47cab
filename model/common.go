package model

import (
	"fmt"
	"math/rand"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/matrix"
)

var constructors = make(map[string]LossCtor)

// the common interface every output layer should follow
type Loss interface {
	// compute the loss of predicting targets[targetIndex] (every target
	// when targetIndex is AllLabelsAsTarget) from state.Hidden, adding
	// the hidden gradient to state.Grad and updating the output matrix
	// when backprop is set
	Forward(targets []int32, targetIndex int32, state *State, lr float32, backprop bool) float32
	// fill state.Output with the output distribution of state.Hidden
	ComputeOutput(state *State)
	// keep the k best scoring outputs above threshold in heap, sorted
	Predict(k int, threshold float32, heap *Predictions, state *State)
}

// new output layers should register themselves using this function
func Register(name string, ctor LossCtor) {
	constructors[name] = ctor
}

// LossCtor builds a loss over output rows with the given target counts
type LossCtor func(output matrix.Matrix, neg int, counts []int64) Loss

func NewLoss(name args.LossName, output matrix.Matrix, neg int, counts []int64) (Loss, error) {
	ctor, ok := constructors[name.String()]
	if !ok {
		return nil, fmt.Errorf("%w: loss %s not registered", args.ErrInvalidArgument, name)
	}
	return ctor(output, neg, counts), nil
}

// State is the per worker scratch space of a model: the hidden layer,
// the output scores, the hidden gradient and the running loss.
type State struct {
	Hidden matrix.Vector
	Output matrix.Vector
	Grad   matrix.Vector

	rng       *rand.Rand
	lossValue float64
	nexamples int64
}

func NewState(hiddenSize, outputSize int, seed int64) *State {
	return &State{
		Hidden: matrix.NewVector(hiddenSize),
		Output: matrix.NewVector(outputSize),
		Grad:   matrix.NewVector(hiddenSize),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Loss returns the average loss of the examples seen so far
func (s *State) Loss() float64 {
	if s.nexamples == 0 {
		return 0
	}
	return s.lossValue / float64(s.nexamples)
}

func (s *State) Rng() *rand.Rand {
	return s.rng
}

func (s *State) addExample(loss float32) {
	s.lossValue += float64(loss)
	s.nexamples += 1
}
