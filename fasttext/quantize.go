package fasttext

import (
	"fmt"
	"sort"

	log "github.com/golang/glog"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
	"github.com/tshev/faster-FastText/matrix"
	"github.com/tshev/faster-FastText/quant"
)

// selectEmbeddings returns the cutoff input rows of largest norm, the end
// of sentence row always first.
func selectEmbeddings(dict *corpus.Dictionary, input *matrix.Dense, cutoff int) []int32 {
	norms := input.L2NormRows()
	idx := make([]int32, input.Rows())
	for i := range idx {
		idx[i] = int32(i)
	}
	eos := dict.ID(corpus.EOS)
	sort.SliceStable(idx, func(i, j int) bool {
		if idx[i] == eos {
			return idx[j] != eos
		}
		if idx[j] == eos {
			return false
		}
		return norms[idx[i]] > norms[idx[j]]
	})
	return idx[:cutoff]
}

// Quantize compresses a trained supervised model. With a cutoff only the
// rows of largest norm are kept, optionally retraining on them first; the
// input matrix is then product quantized with qargs.Dsub wide subvectors,
// and the output matrix too when qargs.Qout is set. The session is left
// as it was when an error is returned.
func (ft *FastText) Quantize(qargs *args.Args) error {
	if err := ft.checkSupervised(); err != nil {
		return fmt.Errorf("%w: only supervised models can be quantized", ErrInvalidArgument)
	}
	if ft.quant {
		return fmt.Errorf("%w: model is already quantized", ErrUnsupported)
	}
	if err := qargs.Validate(); err != nil {
		return err
	}
	input := ft.input.(*matrix.Dense)
	output := ft.output.(*matrix.Dense)

	rows := input.Rows()
	if qargs.Cutoff > 0 && qargs.Cutoff < rows {
		rows = qargs.Cutoff
	}
	if rows < quant.KSub || (qargs.Qout && output.Rows() < quant.KSub) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, quant.ErrTooFewRows)
	}

	a := *ft.args
	a.Input = qargs.Input
	a.Output = qargs.Output
	a.Qout = qargs.Qout
	a.Qnorm = qargs.Qnorm
	a.Dsub = qargs.Dsub
	a.Cutoff = qargs.Cutoff
	a.Retrain = qargs.Retrain

	dict := ft.dict
	if qargs.Cutoff > 0 && qargs.Cutoff < input.Rows() {
		dict = ft.dict.Clone()
		idx := dict.Prune(selectEmbeddings(dict, input, qargs.Cutoff))
		pruned := matrix.NewDense(len(idx), a.Dim)
		for i, j := range idx {
			copy(pruned.Row(i), input.Row(int(j)))
		}
		input = pruned
		if a.Verbose > 1 {
			log.Infof("pruned input matrix to %d rows", len(idx))
		}
		if qargs.Retrain {
			a.Epoch = qargs.Epoch
			a.LR = qargs.LR
			a.Thread = qargs.Thread
			a.Verbose = qargs.Verbose
			output = output.Clone()
			m, err := newModel(&a, dict, input, output)
			if err != nil {
				return err
			}
			if err := ft.newTrainer(&a, dict, m).run(); err != nil {
				return err
			}
		}
	}

	qinput, err := matrix.NewQuant(input, a.Dsub, a.Qnorm)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	var qoutput matrix.Matrix = output
	if a.Qout {
		qoutput, err = matrix.NewQuant(output, 2, a.Qnorm)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
	}
	m, err := newModel(&a, dict, qinput, qoutput)
	if err != nil {
		return err
	}

	// the dictionary keeps pointing at ft.args
	*ft.args = a
	ft.dict = dict
	ft.input, ft.output = qinput, qoutput
	ft.model = m
	ft.quant = true
	ft.wordVectors = nil
	if a.Verbose > 1 {
		log.Infof("quantized input matrix: %d rows, dsub %d, qnorm %v, qout %v",
			qinput.Rows(), a.Dsub, a.Qnorm, a.Qout)
	}
	return nil
}
