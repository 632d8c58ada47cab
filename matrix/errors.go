package matrix

import "errors"

var (
	ErrIndexOutOfRange = errors.New("matrix: index out of range")
	ErrBadShape        = errors.New("matrix: bad shape")
	ErrReadOnly        = errors.New("matrix: operation not permitted on quantized matrices")
	ErrEncounteredNaN  = errors.New("matrix: encountered NaN")
)
