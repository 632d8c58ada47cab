// Package fasttext is the training and inference session: it owns the
// configuration, the dictionary and the embedding matrices, runs Hogwild
// training, and serves vectors and predictions from a trained or loaded
// model.
package fasttext

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
	"github.com/tshev/faster-FastText/matrix"
	"github.com/tshev/faster-FastText/model"
	"github.com/tshev/faster-FastText/serialize"
)

const (
	Version = 12
	Magic   = 793712314
)

type FastText struct {
	args   *args.Args
	dict   *corpus.Dictionary
	input  matrix.Matrix
	output matrix.Matrix
	model  *model.Model
	quant  bool
	// version of the file the model was loaded from
	version int32

	// unit length word vectors, built on first neighbour query
	wordVectors *matrix.Dense

	progressInterval time.Duration
	registerer       prometheus.Registerer
	gatherer         prometheus.Gatherer
	metrics          *metrics
}

func New(opts ...Option) *FastText {
	reg := prometheus.NewRegistry()
	ft := &FastText{
		version:          Version,
		progressInterval: time.Second,
		registerer:       reg,
		gatherer:         reg,
	}
	for _, opt := range opts {
		opt(ft)
	}
	ft.metrics = newMetrics(ft.registerer)
	return ft
}

// Gatherer exposes the training metrics, nil when the registerer given
// through WithRegisterer cannot be gathered.
func (ft *FastText) Gatherer() prometheus.Gatherer {
	return ft.gatherer
}

func (ft *FastText) Args() *args.Args {
	return ft.args
}

func (ft *FastText) Dictionary() *corpus.Dictionary {
	return ft.dict
}

func (ft *FastText) Dimension() int {
	return ft.args.Dim
}

func (ft *FastText) IsQuant() bool {
	return ft.quant
}

// GetInputMatrix returns the dense input embeddings
func (ft *FastText) GetInputMatrix() (*matrix.Dense, error) {
	if ft.quant {
		return nil, fmt.Errorf("%w: cannot export a quantized input matrix", ErrInvalidArgument)
	}
	return ft.input.(*matrix.Dense), nil
}

// GetOutputMatrix returns the dense output matrix
func (ft *FastText) GetOutputMatrix() (*matrix.Dense, error) {
	if ft.quant && ft.args.Qout {
		return nil, fmt.Errorf("%w: cannot export a quantized output matrix", ErrInvalidArgument)
	}
	return ft.output.(*matrix.Dense), nil
}

func (ft *FastText) GetWordID(w string) int32 {
	return ft.dict.ID(w)
}

// GetSubwordID returns the input row of a character n-gram, or -1 when
// the model has no n-gram buckets.
func (ft *FastText) GetSubwordID(subword string) int32 {
	if ft.args.Bucket <= 0 {
		return -1
	}
	h := int32(corpus.Hash(subword) % uint32(ft.args.Bucket))
	return ft.dict.NWords() + h
}

func targetCounts(a *args.Args, dict *corpus.Dictionary) []int64 {
	if a.Model == args.Supervised {
		return dict.Counts(corpus.Label)
	}
	return dict.Counts(corpus.Word)
}

func newModel(a *args.Args, dict *corpus.Dictionary, input, output matrix.Matrix) (*model.Model, error) {
	loss, err := model.NewLoss(a.Loss, output, a.Neg, targetCounts(a, dict))
	if err != nil {
		return nil, err
	}
	return model.New(input, output, loss, a.Model == args.Supervised), nil
}

// SaveModel writes the model to path
func (ft *FastText) SaveModel(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s cannot be opened for saving: %v", ErrIO, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := ft.save(w); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return f.Close()
}

func (ft *FastText) save(w io.Writer) error {
	enc := serialize.NewEncoder(w)
	enc.Int32(Magic)
	enc.Int32(Version)
	if err := enc.Err(); err != nil {
		return err
	}
	if err := ft.args.Save(w); err != nil {
		return err
	}
	if err := ft.dict.Save(w); err != nil {
		return err
	}
	enc.Bool(ft.quant)
	if err := enc.Err(); err != nil {
		return err
	}
	if err := ft.input.Save(w); err != nil {
		return err
	}
	enc.Bool(ft.args.Qout)
	if err := enc.Err(); err != nil {
		return err
	}
	return ft.output.Save(w)
}

// LoadModel replaces the session state with the model stored at path
func (ft *FastText) LoadModel(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s cannot be opened for loading: %v", ErrIO, path, err)
	}
	defer f.Close()
	return ft.LoadModelFrom(f)
}

// LoadModelFrom reads a model from r. Nothing is replaced unless the
// whole model could be read.
func (ft *FastText) LoadModelFrom(r io.Reader) error {
	br := bufio.NewReader(r)
	dec := serialize.NewDecoder(br)
	magic := dec.Int32()
	version := dec.Int32()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("%w: cannot read header: %v", ErrFormat, err)
	}
	if magic != Magic {
		return fmt.Errorf("%w: bad magic %d", ErrFormat, magic)
	}
	if version > Version {
		return fmt.Errorf("%w: version %d is newer than %d", ErrFormat, version, Version)
	}

	a := &args.Args{}
	if err := a.Load(br); err != nil {
		return fmt.Errorf("%w: args: %v", ErrFormat, err)
	}
	if version == 11 && a.Model == args.Supervised {
		// old supervised models do not use char ngrams
		a.Maxn = 0
	}
	dict, err := corpus.LoadDictionary(a, br)
	if err != nil {
		return fmt.Errorf("%w: dictionary: %v", ErrFormat, err)
	}

	quantInput := dec.Bool()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	var input matrix.Matrix = &matrix.Dense{}
	if quantInput {
		input = &matrix.Quant{}
	}
	if err := input.Load(br); err != nil {
		return fmt.Errorf("%w: input matrix: %v", ErrFormat, err)
	}
	if !quantInput && dict.IsPruned() {
		return fmt.Errorf("%w: pruned dictionary with a dense input matrix", ErrFormat)
	}

	a.Qout = dec.Bool()
	if err := dec.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	var output matrix.Matrix = &matrix.Dense{}
	if quantInput && a.Qout {
		output = &matrix.Quant{}
	}
	if err := output.Load(br); err != nil {
		return fmt.Errorf("%w: output matrix: %v", ErrFormat, err)
	}

	m, err := newModel(a, dict, input, output)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	ft.args, ft.dict = a, dict
	ft.input, ft.output = input, output
	ft.model = m
	ft.quant = quantInput
	ft.version = version
	ft.wordVectors = nil
	if a.Verbose > 1 {
		log.Infof("loaded %s model: %d words, %d labels, dim %d, quantized %v",
			a.Model, dict.NWords(), dict.NLabels(), a.Dim, quantInput)
	}
	return nil
}
