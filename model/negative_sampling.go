package model

import (
	"math"
	"math/rand"

	"github.com/tshev/faster-FastText/matrix"
)

func init() {
	Register("ns", NewNegativeSampling)
}

const (
	negativeTableSize = 10000000
	negativePower     = 0.75
)

// NegativeSampling scores the target against neg rows drawn from the
// unigram distribution raised to negativePower.
type NegativeSampling struct {
	binaryLogistic
	neg       int
	negatives []int32
	// number of distinct ids in negatives
	distinct int
}

func NewNegativeSampling(output matrix.Matrix, neg int, counts []int64) Loss {
	ns := &NegativeSampling{
		binaryLogistic: binaryLogistic{wo: output},
		neg:            neg,
	}
	z := 0.0
	for _, c := range counts {
		z += math.Pow(float64(c), negativePower)
	}
	for i, c := range counts {
		n := math.Pow(float64(c), negativePower) * negativeTableSize / z
		if n > 0 {
			ns.distinct += 1
		}
		for j := 0; float64(j) < n; j += 1 {
			ns.negatives = append(ns.negatives, int32(i))
		}
	}
	rng := rand.New(rand.NewSource(1))
	rng.Shuffle(len(ns.negatives), func(i, j int) {
		ns.negatives[i], ns.negatives[j] = ns.negatives[j], ns.negatives[i]
	})
	return ns
}

// negative draws a row different from target. It reports false when the
// table holds nothing but target.
func (n *NegativeSampling) negative(target int32, rng *rand.Rand) (int32, bool) {
	if len(n.negatives) == 0 || (n.distinct < 2 && n.negatives[0] == target) {
		return 0, false
	}
	for {
		neg := n.negatives[rng.Intn(len(n.negatives))]
		if neg != target {
			return neg, true
		}
	}
}

func (n *NegativeSampling) Forward(targets []int32, targetIndex int32, state *State, lr float32, backprop bool) float32 {
	target := targets[targetIndex]
	loss := n.forward(target, state, true, lr, backprop)
	for i := 0; i < n.neg; i += 1 {
		neg, ok := n.negative(target, state.rng)
		if !ok {
			break
		}
		loss += n.forward(neg, state, false, lr, backprop)
	}
	return loss
}

func (n *NegativeSampling) Predict(k int, threshold float32, heap *Predictions, state *State) {
	defaultPredict(n, k, threshold, heap, state)
}
