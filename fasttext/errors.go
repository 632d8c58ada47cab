package fasttext

import (
	"errors"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
)

var (
	ErrIO              = corpus.ErrIO
	ErrFormat          = errors.New("fasttext: invalid model file format")
	ErrInvalidArgument = args.ErrInvalidArgument
	ErrUnsupported     = errors.New("fasttext: operation not supported on quantized models")
)
