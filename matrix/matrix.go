package matrix

import "io"

// Matrix is the row-oriented contract shared by the dense training
// matrices and their read-only quantized replacements.
type Matrix interface {
	// number of rows and columns
	Rows() int
	Cols() int
	// dot product of v with row i
	DotRow(v Vector, i int) float32
	// row i += a * v, dense only
	AddVectorToRow(v Vector, i int, a float32)
	// x += a * row i
	AddRowToVector(x Vector, i int, a float32)

	Save(w io.Writer) error
	Load(r io.Reader) error
}
