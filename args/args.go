// Package args holds the hyperparameters of a training session and their
// binary encoding in the model file.
package args

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tshev/faster-FastText/serialize"
)

var ErrInvalidArgument = errors.New("fasttext: invalid argument")

type ModelName int32

const (
	CBOW ModelName = iota + 1
	SkipGram
	Supervised
)

func (m ModelName) String() string {
	switch m {
	case CBOW:
		return "cbow"
	case SkipGram:
		return "skipgram"
	case Supervised:
		return "supervised"
	}
	return fmt.Sprintf("model(%d)", int32(m))
}

func ParseModel(s string) (ModelName, error) {
	switch strings.ToLower(s) {
	case "cbow":
		return CBOW, nil
	case "skipgram", "sg":
		return SkipGram, nil
	case "supervised", "sup":
		return Supervised, nil
	}
	return 0, fmt.Errorf("%w: unknown model %q", ErrInvalidArgument, s)
}

type LossName int32

const (
	HS LossName = iota + 1
	NS
	Softmax
	OVA
)

func (l LossName) String() string {
	switch l {
	case HS:
		return "hs"
	case NS:
		return "ns"
	case Softmax:
		return "softmax"
	case OVA:
		return "ova"
	}
	return fmt.Sprintf("loss(%d)", int32(l))
}

func ParseLoss(s string) (LossName, error) {
	switch strings.ToLower(s) {
	case "hs":
		return HS, nil
	case "ns":
		return NS, nil
	case "softmax":
		return Softmax, nil
	case "ova", "one-vs-all":
		return OVA, nil
	}
	return 0, fmt.Errorf("%w: unknown loss %q", ErrInvalidArgument, s)
}

type Args struct {
	Input  string // training corpus, not serialized
	Output string // output prefix, not serialized

	LR            float64 // initial learning rate
	LRUpdateRate  int     // tokens a worker consumes before publishing progress
	Dim           int     // embedding dimension
	WS            int     // context window size
	Epoch         int
	MinCount      int // minimal word count
	MinCountLabel int // minimal label count
	Neg           int // negatives sampled per target
	WordNgrams    int // max length of word n-grams
	Loss          LossName
	Model         ModelName
	Bucket        int // number of hashed n-gram buckets
	Minn          int // min char n-gram length
	Maxn          int // max char n-gram length
	Thread        int
	T             float64 // subsampling threshold
	Label         string  // label prefix

	Verbose           int
	PretrainedVectors string
	SaveOutput        bool

	// quantization
	Qout    bool
	Qnorm   bool
	Retrain bool
	Cutoff  int
	Dsub    int
}

// Default returns the settings used for unsupervised training
func Default() *Args {
	return &Args{
		LR:            0.05,
		LRUpdateRate:  100,
		Dim:           100,
		WS:            5,
		Epoch:         5,
		MinCount:      5,
		MinCountLabel: 0,
		Neg:           5,
		WordNgrams:    1,
		Loss:          NS,
		Model:         SkipGram,
		Bucket:        2000000,
		Minn:          3,
		Maxn:          6,
		Thread:        12,
		T:             1e-4,
		Label:         "__label__",
		Verbose:       2,
		Dsub:          2,
	}
}

// DefaultSupervised returns the settings used for text classification
func DefaultSupervised() *Args {
	a := Default()
	a.Model = Supervised
	a.Loss = Softmax
	a.MinCount = 1
	a.Minn = 0
	a.Maxn = 0
	a.LR = 0.1
	return a
}

// Validate rejects settings the trainer cannot run with
func (a *Args) Validate() error {
	switch {
	case a.Dim <= 0:
		return fmt.Errorf("%w: dim must be positive, got %d", ErrInvalidArgument, a.Dim)
	case a.Epoch <= 0:
		return fmt.Errorf("%w: epoch must be positive, got %d", ErrInvalidArgument, a.Epoch)
	case a.Thread <= 0:
		return fmt.Errorf("%w: thread must be positive, got %d", ErrInvalidArgument, a.Thread)
	case a.WS <= 0:
		return fmt.Errorf("%w: ws must be positive, got %d", ErrInvalidArgument, a.WS)
	case a.LRUpdateRate <= 0:
		return fmt.Errorf("%w: lrUpdateRate must be positive, got %d", ErrInvalidArgument, a.LRUpdateRate)
	case a.Dsub <= 0:
		return fmt.Errorf("%w: dsub must be positive, got %d", ErrInvalidArgument, a.Dsub)
	case a.Bucket < 0:
		return fmt.Errorf("%w: bucket must not be negative, got %d", ErrInvalidArgument, a.Bucket)
	case a.Neg < 0:
		return fmt.Errorf("%w: neg must not be negative, got %d", ErrInvalidArgument, a.Neg)
	case a.Maxn > 0 && a.Minn > a.Maxn:
		return fmt.Errorf("%w: minn %d is larger than maxn %d", ErrInvalidArgument, a.Minn, a.Maxn)
	case a.Model < CBOW || a.Model > Supervised:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, a.Model)
	case a.Loss < HS || a.Loss > OVA:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, a.Loss)
	}
	return nil
}

// Save writes the configuration block as a flat sequence of fields
func (a *Args) Save(w io.Writer) error {
	enc := serialize.NewEncoder(w)
	enc.Int32(int32(a.Dim))
	enc.Int32(int32(a.WS))
	enc.Int32(int32(a.Epoch))
	enc.Int32(int32(a.MinCount))
	enc.Int32(int32(a.Neg))
	enc.Int32(int32(a.WordNgrams))
	enc.Int32(int32(a.Loss))
	enc.Int32(int32(a.Model))
	enc.Int32(int32(a.Bucket))
	enc.Int32(int32(a.Minn))
	enc.Int32(int32(a.Maxn))
	enc.Int32(int32(a.LRUpdateRate))
	enc.Float64(a.T)
	enc.Float64(a.LR)
	enc.Int32(int32(a.MinCountLabel))
	enc.Int32(int32(a.Thread))
	enc.Int32(int32(a.Verbose))
	enc.String(a.Label)
	enc.String(a.PretrainedVectors)
	enc.Bool(a.SaveOutput)
	enc.Bool(a.Qnorm)
	enc.Bool(a.Retrain)
	enc.Int32(int32(a.Cutoff))
	enc.Int32(int32(a.Dsub))
	return enc.Err()
}

// Load reads a configuration block written by Save. Input, Output and
// Qout are left untouched; Qout is stored next to the output matrix.
func (a *Args) Load(r io.Reader) error {
	dec := serialize.NewDecoder(r)
	a.Dim = int(dec.Int32())
	a.WS = int(dec.Int32())
	a.Epoch = int(dec.Int32())
	a.MinCount = int(dec.Int32())
	a.Neg = int(dec.Int32())
	a.WordNgrams = int(dec.Int32())
	a.Loss = LossName(dec.Int32())
	a.Model = ModelName(dec.Int32())
	a.Bucket = int(dec.Int32())
	a.Minn = int(dec.Int32())
	a.Maxn = int(dec.Int32())
	a.LRUpdateRate = int(dec.Int32())
	a.T = dec.Float64()
	a.LR = dec.Float64()
	a.MinCountLabel = int(dec.Int32())
	a.Thread = int(dec.Int32())
	a.Verbose = int(dec.Int32())
	a.Label = dec.String()
	a.PretrainedVectors = dec.String()
	a.SaveOutput = dec.Bool()
	a.Qnorm = dec.Bool()
	a.Retrain = dec.Bool()
	a.Cutoff = int(dec.Int32())
	a.Dsub = int(dec.Int32())
	return dec.Err()
}
