package matrix

import (
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/tshev/faster-FastText/serialize"
)

// Dense is a row-major float32 matrix. Rows handed out by Row alias the
// underlying storage; training goroutines read and write them without
// locking.
type Dense struct {
	m    int
	n    int
	data []float32
}

// NewDense creates a zero matrix with m rows and n columns; it panics on
// a negative dimension.
func NewDense(m, n int) *Dense {
	if m < 0 || n < 0 {
		panic(ErrBadShape)
	}
	return &Dense{
		m:    m,
		n:    n,
		data: make([]float32, m*n),
	}
}

// Clone returns a deep copy of d
func (d *Dense) Clone() *Dense {
	return &Dense{
		m:    d.m,
		n:    d.n,
		data: append([]float32(nil), d.data...),
	}
}

func (d *Dense) Rows() int {
	return d.m
}

func (d *Dense) Cols() int {
	return d.n
}

// Data returns the backing slice
func (d *Dense) Data() []float32 {
	return d.data
}

// Row returns row i as a vector sharing storage with d
func (d *Dense) Row(i int) Vector {
	if i < 0 || i >= d.m {
		panic(ErrIndexOutOfRange)
	}
	return Vector(d.data[i*d.n : (i+1)*d.n])
}

// get the [i, j]-th element of the matrix
func (d *Dense) At(i, j int) float32 {
	if i < 0 || i >= d.m || j < 0 || j >= d.n {
		panic(ErrIndexOutOfRange)
	}
	return d.data[i*d.n+j]
}

// set val to the [i, j]-th element of the matrix
func (d *Dense) Set(i, j int, val float32) {
	if i < 0 || i >= d.m || j < 0 || j >= d.n {
		panic(ErrIndexOutOfRange)
	}
	d.data[i*d.n+j] = val
}

func (d *Dense) Zero() {
	for i := range d.data {
		d.data[i] = 0
	}
}

// Uniform fills the matrix with values drawn from U(-bound, bound)
func (d *Dense) Uniform(bound float32, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range d.data {
		d.data[i] = -bound + 2*bound*rng.Float32()
	}
}

func (d *Dense) DotRow(v Vector, i int) float32 {
	row := d.Row(i)
	if len(v) != d.n {
		panic(ErrIndexOutOfRange)
	}
	if d.n == 0 {
		return 0
	}
	dot := blas32.Dot(row.blas(), v.blas())
	if math.IsNaN(float64(dot)) {
		panic(ErrEncounteredNaN)
	}
	return dot
}

func (d *Dense) AddVectorToRow(v Vector, i int, a float32) {
	d.Row(i).AddVector(v, a)
}

func (d *Dense) AddRowToVector(x Vector, i int, a float32) {
	x.AddVector(d.Row(i), a)
}

// L2NormRow returns the euclidean norm of row i
func (d *Dense) L2NormRow(i int) float32 {
	norm := d.Row(i).Norm()
	if math.IsNaN(float64(norm)) {
		panic(ErrEncounteredNaN)
	}
	return norm
}

// L2NormRows returns the norms of all rows
func (d *Dense) L2NormRows() Vector {
	norms := NewVector(d.m)
	for i := range norms {
		norms[i] = d.L2NormRow(i)
	}
	return norms
}

// MultiplyRow scales row i by nums[i]
func (d *Dense) MultiplyRow(nums Vector) {
	if len(nums) != d.m {
		panic(ErrIndexOutOfRange)
	}
	for i, n := range nums {
		d.Row(i).Mul(n)
	}
}

// DivideRow divides row i by denoms[i], leaving rows with a zero
// denominator untouched.
func (d *Dense) DivideRow(denoms Vector) {
	if len(denoms) != d.m {
		panic(ErrIndexOutOfRange)
	}
	for i, n := range denoms {
		if n != 0 {
			d.Row(i).Mul(1 / n)
		}
	}
}

func (d *Dense) Save(w io.Writer) error {
	enc := serialize.NewEncoder(w)
	enc.Int64(int64(d.m))
	enc.Int64(int64(d.n))
	enc.Float32s(d.data)
	return enc.Err()
}

func (d *Dense) Load(r io.Reader) error {
	dec := serialize.NewDecoder(r)
	m, n := dec.Int64(), dec.Int64()
	if err := dec.Err(); err != nil {
		return err
	}
	if m < 0 || n < 0 {
		return ErrBadShape
	}
	d.m, d.n = int(m), int(n)
	d.data = make([]float32, d.m*d.n)
	dec.Float32s(d.data)
	return dec.Err()
}
