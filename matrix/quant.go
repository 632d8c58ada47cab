package matrix

import (
	"io"

	"github.com/tshev/faster-FastText/quant"
	"github.com/tshev/faster-FastText/serialize"
)

// Quant is a product-quantized matrix. It stores one centroid index per
// subvector per row and, with qnorm, one code per row indexing a 1-d
// codebook of row norms. It is read-only.
type Quant struct {
	qnorm    bool
	m        int
	n        int
	codesize int

	codes []uint8
	pq    *quant.ProductQuantizer

	normCodes []uint8
	npq       *quant.ProductQuantizer
}

// NewQuant quantizes mat with dsub-wide subvectors. With qnorm the
// directions of the rows are quantized apart from their norms; mat itself
// is left untouched.
func NewQuant(mat *Dense, dsub int, qnorm bool) (*Quant, error) {
	q := &Quant{
		qnorm: qnorm,
		m:     mat.Rows(),
		n:     mat.Cols(),
		pq:    quant.NewProductQuantizer(mat.Cols(), dsub),
	}
	q.codesize = q.m * q.pq.NSubq()
	q.codes = make([]uint8, q.codesize)
	if qnorm {
		q.normCodes = make([]uint8, q.m)
		q.npq = quant.NewProductQuantizer(1, 1)
	}
	if err := q.quantize(mat); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Quant) quantizeNorm(norms Vector) error {
	if err := q.npq.Train(norms, q.m); err != nil {
		return err
	}
	q.npq.ComputeCodes(norms, q.normCodes, q.m)
	return nil
}

func (q *Quant) quantize(mat *Dense) error {
	if q.qnorm {
		norms := mat.L2NormRows()
		mat = mat.Clone()
		mat.DivideRow(norms)
		if err := q.quantizeNorm(norms); err != nil {
			return err
		}
	}
	if err := q.pq.Train(mat.Data(), q.m); err != nil {
		return err
	}
	q.pq.ComputeCodes(mat.Data(), q.codes, q.m)
	return nil
}

func (q *Quant) Rows() int {
	return q.m
}

func (q *Quant) Cols() int {
	return q.n
}

func (q *Quant) norm(i int) float32 {
	if !q.qnorm {
		return 1
	}
	return q.npq.Centroid(0, q.normCodes[i])[0]
}

func (q *Quant) DotRow(v Vector, i int) float32 {
	if i < 0 || i >= q.m || len(v) != q.n {
		panic(ErrIndexOutOfRange)
	}
	return q.pq.MulCode(v, q.codes, i, q.norm(i))
}

func (q *Quant) AddVectorToRow(v Vector, i int, a float32) {
	panic(ErrReadOnly)
}

func (q *Quant) AddRowToVector(x Vector, i int, a float32) {
	if i < 0 || i >= q.m || len(x) != q.n {
		panic(ErrIndexOutOfRange)
	}
	q.pq.AddCode(x, q.codes, i, a*q.norm(i))
}

func (q *Quant) Save(w io.Writer) error {
	enc := serialize.NewEncoder(w)
	enc.Bool(q.qnorm)
	enc.Int64(int64(q.m))
	enc.Int64(int64(q.n))
	enc.Int32(int32(q.codesize))
	enc.Bytes(q.codes)
	if err := enc.Err(); err != nil {
		return err
	}
	if err := q.pq.Save(w); err != nil {
		return err
	}
	if q.qnorm {
		enc.Bytes(q.normCodes)
		if err := enc.Err(); err != nil {
			return err
		}
		return q.npq.Save(w)
	}
	return nil
}

func (q *Quant) Load(r io.Reader) error {
	dec := serialize.NewDecoder(r)
	q.qnorm = dec.Bool()
	q.m = int(dec.Int64())
	q.n = int(dec.Int64())
	q.codesize = int(dec.Int32())
	if err := dec.Err(); err != nil {
		return err
	}
	if q.m < 0 || q.n < 0 || q.codesize < 0 {
		return ErrBadShape
	}
	q.codes = make([]uint8, q.codesize)
	dec.Bytes(q.codes)
	if err := dec.Err(); err != nil {
		return err
	}
	q.pq = &quant.ProductQuantizer{}
	if err := q.pq.Load(dec.Reader()); err != nil {
		return err
	}
	if q.pq.Dim() != q.n || q.codesize != q.m*q.pq.NSubq() {
		return ErrBadShape
	}
	if q.qnorm {
		q.normCodes = make([]uint8, q.m)
		dec.Bytes(q.normCodes)
		if err := dec.Err(); err != nil {
			return err
		}
		q.npq = &quant.ProductQuantizer{}
		if err := q.npq.Load(dec.Reader()); err != nil {
			return err
		}
		if q.npq.Dim() != 1 || q.npq.NSubq() != 1 {
			return ErrBadShape
		}
	}
	return nil
}
