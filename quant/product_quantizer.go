// Package quant implements product quantization: every row is split into
// dsub-wide subvectors and each subvector is replaced by the index of its
// nearest centroid among 256 learned per subspace by k-means.
package quant

import (
	"errors"
	"io"
	"math/rand"

	"github.com/tshev/faster-FastText/serialize"
)

const (
	nbits               = 8
	KSub                = 1 << nbits
	maxPointsPerCluster = 256
	maxPoints           = maxPointsPerCluster * KSub
	seed                = 1234
	niter               = 25
	eps                 = 1e-7
)

var (
	ErrTooFewRows = errors.New("quant: matrix too small for quantization, must have at least 256 rows")
	ErrBadShape   = errors.New("quant: inconsistent quantizer shape")
)

type ProductQuantizer struct {
	dim      int
	nsubq    int
	dsub     int
	lastdsub int

	centroids []float32
	rng       *rand.Rand
}

// NewProductQuantizer creates a quantizer for dim-wide rows. When dsub does
// not divide dim the last subspace is narrower.
func NewProductQuantizer(dim, dsub int) *ProductQuantizer {
	pq := &ProductQuantizer{
		dim:       dim,
		nsubq:     dim / dsub,
		dsub:      dsub,
		lastdsub:  dim % dsub,
		centroids: make([]float32, dim*KSub),
		rng:       rand.New(rand.NewSource(seed)),
	}
	if pq.lastdsub == 0 {
		pq.lastdsub = dsub
	} else {
		pq.nsubq += 1
	}
	return pq
}

// NSubq returns the number of code bytes per row
func (pq *ProductQuantizer) NSubq() int {
	return pq.nsubq
}

func (pq *ProductQuantizer) Dim() int {
	return pq.dim
}

// width of subspace m
func (pq *ProductQuantizer) width(m int) int {
	if m == pq.nsubq-1 {
		return pq.lastdsub
	}
	return pq.dsub
}

// all KSub centroids of subspace m, laid out contiguously
func (pq *ProductQuantizer) subspace(m int) []float32 {
	off := m * KSub * pq.dsub
	return pq.centroids[off : off+KSub*pq.width(m)]
}

// Centroid returns centroid i of subspace m
func (pq *ProductQuantizer) Centroid(m int, i uint8) []float32 {
	d := pq.width(m)
	off := m*KSub*pq.dsub + int(i)*d
	return pq.centroids[off : off+d]
}

func distL2(x, y []float32) float32 {
	var dist float32
	for i := range x {
		tmp := x[i] - y[i]
		dist += tmp * tmp
	}
	return dist
}

func assignCentroid(x, c0 []float32, d int) (uint8, float32) {
	code := uint8(0)
	dis := distL2(x, c0[:d])
	for j := 1; j < KSub; j += 1 {
		disij := distL2(x, c0[j*d:(j+1)*d])
		if disij < dis {
			code = uint8(j)
			dis = disij
		}
	}
	return code, dis
}

func (pq *ProductQuantizer) estep(x, centroids []float32, codes []uint8, d, n int) {
	for i := 0; i < n; i += 1 {
		codes[i], _ = assignCentroid(x[i*d:(i+1)*d], centroids, d)
	}
}

func (pq *ProductQuantizer) mstep(x, centroids []float32, codes []uint8, d, n int) {
	for i := range centroids {
		centroids[i] = 0
	}
	nelts := make([]int, KSub)
	for i := 0; i < n; i += 1 {
		k := int(codes[i])
		c := centroids[k*d : (k+1)*d]
		for j, v := range x[i*d : (i+1)*d] {
			c[j] += v
		}
		nelts[k] += 1
	}
	for k := 0; k < KSub; k += 1 {
		z := float32(nelts[k])
		if z != 0 {
			c := centroids[k*d : (k+1)*d]
			for j := range c {
				c[j] /= z
			}
		}
	}

	// split a populated cluster into every empty one
	for k := 0; k < KSub; k += 1 {
		if nelts[k] != 0 {
			continue
		}
		m := 0
		for pq.rng.Float64()*float64(n-KSub) >= float64(nelts[m]-1) {
			m = (m + 1) % KSub
		}
		copy(centroids[k*d:(k+1)*d], centroids[m*d:(m+1)*d])
		for j := 0; j < d; j += 1 {
			sign := float32((j%2)*2 - 1)
			centroids[k*d+j] += sign * eps
			centroids[m*d+j] -= sign * eps
		}
		nelts[k] = nelts[m] / 2
		nelts[m] -= nelts[k]
	}
}

func (pq *ProductQuantizer) kmeans(x, centroids []float32, n, d int) {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	pq.rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	for i := 0; i < KSub; i += 1 {
		copy(centroids[i*d:(i+1)*d], x[perm[i]*d:(perm[i]+1)*d])
	}
	codes := make([]uint8, n)
	for i := 0; i < niter; i += 1 {
		pq.estep(x, centroids, codes, d, n)
		pq.mstep(x, centroids, codes, d, n)
	}
}

// Train learns the codebooks from n rows of x, stored row-major
func (pq *ProductQuantizer) Train(x []float32, n int) error {
	if n < KSub {
		return ErrTooFewRows
	}
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	np := n
	if np > maxPoints {
		np = maxPoints
	}
	xslice := make([]float32, np*pq.dsub)
	for m := 0; m < pq.nsubq; m += 1 {
		d := pq.width(m)
		if np != n {
			pq.rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		}
		for j := 0; j < np; j += 1 {
			off := perm[j]*pq.dim + m*pq.dsub
			copy(xslice[j*d:(j+1)*d], x[off:off+d])
		}
		pq.kmeans(xslice[:np*d], pq.subspace(m), np, d)
	}
	return nil
}

// ComputeCode writes the nsubq centroid indices of one row into code
func (pq *ProductQuantizer) ComputeCode(x []float32, code []uint8) {
	for m := 0; m < pq.nsubq; m += 1 {
		d := pq.width(m)
		off := m * pq.dsub
		code[m], _ = assignCentroid(x[off:off+d], pq.subspace(m), d)
	}
}

// ComputeCodes encodes n rows of x into codes
func (pq *ProductQuantizer) ComputeCodes(x []float32, codes []uint8, n int) {
	for i := 0; i < n; i += 1 {
		pq.ComputeCode(x[i*pq.dim:(i+1)*pq.dim], codes[i*pq.nsubq:(i+1)*pq.nsubq])
	}
}

// MulCode returns alpha times the dot product of x with the reconstruction
// of row t.
func (pq *ProductQuantizer) MulCode(x []float32, codes []uint8, t int, alpha float32) float32 {
	var res float32
	code := codes[pq.nsubq*t : pq.nsubq*(t+1)]
	for m := 0; m < pq.nsubq; m += 1 {
		c := pq.Centroid(m, code[m])
		off := m * pq.dsub
		for n, v := range c {
			res += x[off+n] * v
		}
	}
	return res * alpha
}

// AddCode adds alpha times the reconstruction of row t to x
func (pq *ProductQuantizer) AddCode(x []float32, codes []uint8, t int, alpha float32) {
	code := codes[pq.nsubq*t : pq.nsubq*(t+1)]
	for m := 0; m < pq.nsubq; m += 1 {
		c := pq.Centroid(m, code[m])
		off := m * pq.dsub
		for n, v := range c {
			x[off+n] += alpha * v
		}
	}
}

func (pq *ProductQuantizer) Save(w io.Writer) error {
	enc := serialize.NewEncoder(w)
	enc.Int32(int32(pq.dim))
	enc.Int32(int32(pq.nsubq))
	enc.Int32(int32(pq.dsub))
	enc.Int32(int32(pq.lastdsub))
	enc.Float32s(pq.centroids)
	return enc.Err()
}

func (pq *ProductQuantizer) Load(r io.Reader) error {
	dec := serialize.NewDecoder(r)
	pq.dim = int(dec.Int32())
	pq.nsubq = int(dec.Int32())
	pq.dsub = int(dec.Int32())
	pq.lastdsub = int(dec.Int32())
	if err := dec.Err(); err != nil {
		return err
	}
	if pq.dim <= 0 || pq.dsub <= 0 || pq.nsubq <= 0 || pq.lastdsub <= 0 || pq.lastdsub > pq.dsub ||
		(pq.nsubq-1)*pq.dsub+pq.lastdsub != pq.dim {
		return ErrBadShape
	}
	pq.centroids = make([]float32, pq.dim*KSub)
	dec.Float32s(pq.centroids)
	if pq.rng == nil {
		pq.rng = rand.New(rand.NewSource(seed))
	}
	return dec.Err()
}
