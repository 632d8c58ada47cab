package quant

import (
	"bytes"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomRows(n, dim int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	x := make([]float32, n*dim)
	for i := range x {
		x[i] = rng.Float32()*2 - 1
	}
	return x
}

func meanDotError(t *testing.T, x []float32, n, dim, dsub int) float64 {
	pq := NewProductQuantizer(dim, dsub)
	require.NoError(t, pq.Train(x, n))
	codes := make([]uint8, n*pq.NSubq())
	pq.ComputeCodes(x, codes, n)

	v := randomRows(1, dim, 99)
	var sum float64
	for i := 0; i < n; i += 1 {
		var exact float32
		for j := 0; j < dim; j += 1 {
			exact += v[j] * x[i*dim+j]
		}
		sum += math.Abs(float64(pq.MulCode(v, codes, i, 1) - exact))
	}
	return sum / float64(n)
}

func TestTrainRejectsSmallMatrix(t *testing.T) {
	pq := NewProductQuantizer(4, 2)
	assert.ErrorIs(t, pq.Train(randomRows(100, 4, 1), 100), ErrTooFewRows)
}

func TestSubspaceLayout(t *testing.T) {
	pq := NewProductQuantizer(5, 2)
	assert.Equal(t, 3, pq.NSubq())
	assert.Len(t, pq.Centroid(0, 0), 2)
	assert.Len(t, pq.Centroid(2, 255), 1)
}

func TestExactWhenRowsEqualCentroids(t *testing.T) {
	n, dim := KSub, 4
	x := randomRows(n, dim, 7)
	pq := NewProductQuantizer(dim, 2)
	require.NoError(t, pq.Train(x, n))
	codes := make([]uint8, n*pq.NSubq())
	pq.ComputeCodes(x, codes, n)

	for i := 0; i < n; i += 1 {
		rec := make([]float32, dim)
		pq.AddCode(rec, codes, i, 1)
		for j := 0; j < dim; j += 1 {
			assert.InDelta(t, x[i*dim+j], rec[j], 1e-5)
		}
	}
}

func TestErrorShrinksWithSubvectorWidth(t *testing.T) {
	n, dim := 2*KSub, 8
	x := randomRows(n, dim, 3)

	fine := meanDotError(t, x, n, dim, 1)
	coarse := meanDotError(t, x, n, dim, 8)

	assert.Less(t, fine, 0.05)
	assert.Less(t, fine, coarse)
}

func TestSaveLoad(t *testing.T) {
	n, dim := KSub, 3
	x := randomRows(n, dim, 11)
	pq := NewProductQuantizer(dim, 2)
	require.NoError(t, pq.Train(x, n))

	var buf bytes.Buffer
	require.NoError(t, pq.Save(&buf))
	other := &ProductQuantizer{}
	require.NoError(t, other.Load(&buf))

	assert.Equal(t, pq.dim, other.dim)
	assert.Equal(t, pq.nsubq, other.nsubq)
	assert.Equal(t, pq.lastdsub, other.lastdsub)
	assert.Equal(t, pq.centroids, other.centroids)
}

func TestLoadRejectsBadShape(t *testing.T) {
	pq := NewProductQuantizer(4, 2)
	require.NoError(t, pq.Train(randomRows(KSub, 4, 5), KSub))
	var buf bytes.Buffer
	require.NoError(t, pq.Save(&buf))
	data := buf.Bytes()

	// dim, nsubq, dsub, lastdsub lead the record
	for _, field := range []int{0, 4, 8, 12} {
		bad := append([]byte(nil), data...)
		copy(bad[field:field+4], []byte{0, 0, 0, 0})
		assert.ErrorIs(t, (&ProductQuantizer{}).Load(bytes.NewReader(bad)), ErrBadShape, "field at %d", field)
	}
	bad := append([]byte(nil), data...)
	bad[4] = 3
	assert.ErrorIs(t, (&ProductQuantizer{}).Load(bytes.NewReader(bad)), ErrBadShape)
}
