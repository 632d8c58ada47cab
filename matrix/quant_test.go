package matrix

import (
	"bufio"
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tshev/faster-FastText/quant"
)

func randomDense(m, n int, seed int64) *Dense {
	d := NewDense(m, n)
	d.Uniform(1, seed)
	return d
}

func copyDense(d *Dense) *Dense {
	c := NewDense(d.Rows(), d.Cols())
	copy(c.Data(), d.Data())
	return c
}

func TestQuantDotRowCloseToDense(t *testing.T) {
	for _, dsub := range []int{1, 2} {
		dense := randomDense(2*quant.KSub, 4, 3)
		q, err := NewQuant(copyDense(dense), dsub, false)
		require.NoError(t, err)

		v := Vector{0.5, -0.25, 1, 0.75}
		var sum float64
		for i := 0; i < dense.Rows(); i += 1 {
			sum += math.Abs(float64(dense.DotRow(v, i) - q.DotRow(v, i)))
		}
		assert.Less(t, sum/float64(dense.Rows()), 0.1)
	}
}

func TestQuantNormKeepsRowNorm(t *testing.T) {
	dense := randomDense(quant.KSub, 4, 9)
	q, err := NewQuant(copyDense(dense), 2, true)
	require.NoError(t, err)

	for i := 0; i < dense.Rows(); i += 1 {
		x := NewVector(4)
		q.AddRowToVector(x, i, 1)
		assert.InDelta(t, dense.L2NormRow(i), x.Norm(), 1e-4)
	}
}

func TestQuantIsReadOnly(t *testing.T) {
	q, err := NewQuant(randomDense(quant.KSub, 2, 1), 1, false)
	require.NoError(t, err)
	assert.PanicsWithValue(t, ErrReadOnly, func() { q.AddVectorToRow(Vector{1, 1}, 0, 1) })
}

func TestQuantTooSmall(t *testing.T) {
	_, err := NewQuant(randomDense(10, 2, 1), 1, false)
	assert.ErrorIs(t, err, quant.ErrTooFewRows)
}

func TestQuantSaveLoad(t *testing.T) {
	for _, qnorm := range []bool{false, true} {
		q, err := NewQuant(randomDense(quant.KSub, 3, 2), 2, qnorm)
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, q.Save(&buf))
		loaded := &Quant{}
		require.NoError(t, loaded.Load(bufio.NewReader(&buf)))

		v := Vector{1, 2, 3}
		for i := 0; i < q.Rows(); i += 1 {
			assert.Equal(t, q.DotRow(v, i), loaded.DotRow(v, i))
		}
		assert.False(t, math.IsNaN(float64(loaded.DotRow(v, 0))))
	}
}

func TestQuantLeavesInputUntouched(t *testing.T) {
	mat := randomDense(quant.KSub, 4, 3)
	before := copyDense(mat)
	_, err := NewQuant(mat, 2, true)
	require.NoError(t, err)
	assert.Equal(t, before.Data(), mat.Data())
}

func TestQuantLoadRejectsBadShape(t *testing.T) {
	q, err := NewQuant(randomDense(quant.KSub, 4, 4), 2, false)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, q.Save(&buf))
	data := buf.Bytes()

	// qnorm (1) m (8) n (8) codesize (4) codes, then the quantizer dim
	wrongCols := append([]byte(nil), data...)
	wrongCols[9] = 5
	assert.ErrorIs(t, (&Quant{}).Load(bytes.NewReader(wrongCols)), ErrBadShape)

	zeroDim := append([]byte(nil), data...)
	off := 21 + q.codesize
	copy(zeroDim[off:off+4], []byte{0, 0, 0, 0})
	assert.ErrorIs(t, (&Quant{}).Load(bytes.NewReader(zeroDim)), quant.ErrBadShape)
}
