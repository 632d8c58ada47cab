package matrix

import (
	"gonum.org/v1/gonum/blas/blas32"
)

// Vector is a dense float32 vector, used for hidden states, gradients
// and model outputs.
type Vector []float32

func NewVector(n int) Vector {
	return make(Vector, n)
}

func (v Vector) blas() blas32.Vector {
	return blas32.Vector{N: len(v), Inc: 1, Data: v}
}

func (v Vector) Zero() {
	for i := range v {
		v[i] = 0
	}
}

// Mul scales every element by a
func (v Vector) Mul(a float32) {
	if len(v) == 0 {
		return
	}
	blas32.Scal(a, v.blas())
}

// AddVector adds a * src to v
func (v Vector) AddVector(src Vector, a float32) {
	if len(v) != len(src) {
		panic(ErrIndexOutOfRange)
	}
	if len(v) == 0 {
		return
	}
	blas32.Axpy(a, src.blas(), v.blas())
}

// AddRow adds a * row i of m to v
func (v Vector) AddRow(m Matrix, i int, a float32) {
	m.AddRowToVector(v, i, a)
}

// MulMatrix sets v[i] to the dot product of row i of m with x
func (v Vector) MulMatrix(m Matrix, x Vector) {
	if len(v) != m.Rows() {
		panic(ErrIndexOutOfRange)
	}
	for i := range v {
		v[i] = m.DotRow(x, i)
	}
}

// Norm returns the L2 norm
func (v Vector) Norm() float32 {
	if len(v) == 0 {
		return 0
	}
	return blas32.Nrm2(v.blas())
}

// ArgMax returns the index of the largest element, the first one on ties
func (v Vector) ArgMax() int {
	arg := 0
	for i := 1; i < len(v); i += 1 {
		if v[i] > v[arg] {
			arg = i
		}
	}
	return arg
}
