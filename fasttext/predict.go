package fasttext

import (
	"fmt"
	"io"
	"math"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
	"github.com/tshev/faster-FastText/model"
)

// LabelPrediction is a predicted label with its probability
type LabelPrediction struct {
	Probability float32
	Label       string
}

func (ft *FastText) checkSupervised() error {
	if ft.args == nil || ft.model == nil {
		return fmt.Errorf("%w: no model trained or loaded", ErrInvalidArgument)
	}
	if ft.args.Model != args.Supervised {
		return fmt.Errorf("%w: model needs to be supervised for prediction, got %s", ErrInvalidArgument, ft.args.Model)
	}
	return nil
}

// Predict returns the k most likely labels of the feature ids words with
// a probability of at least threshold. k = -1 returns every label.
func (ft *FastText) Predict(words []int32, k int, threshold float32) ([]model.Prediction, error) {
	if err := ft.checkSupervised(); err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, nil
	}
	var preds model.Predictions
	if err := ft.model.Predict(words, k, threshold, &preds, ft.model.NewState(0)); err != nil {
		return nil, err
	}
	return preds, nil
}

// PredictLine predicts the labels of the next line of r. It returns false
// once r is exhausted.
func (ft *FastText) PredictLine(r *corpus.Reader, k int, threshold float32) ([]LabelPrediction, bool, error) {
	if err := ft.checkSupervised(); err != nil {
		return nil, false, err
	}
	if r.EOF() {
		return nil, false, nil
	}
	var line corpus.Line
	n, err := ft.dict.GetSupervisedLine(r, &line)
	if err != nil {
		return nil, false, err
	}
	if n == 0 && r.EOF() {
		return nil, false, nil
	}
	preds, err := ft.Predict(line.Words, k, threshold)
	if err != nil {
		return nil, false, err
	}
	result := make([]LabelPrediction, 0, len(preds))
	for _, p := range preds {
		label, err := ft.dict.Label(p.Label)
		if err != nil {
			return nil, false, err
		}
		result = append(result, LabelPrediction{
			Probability: float32(math.Exp(float64(p.Score))),
			Label:       label,
		})
	}
	return result, true, nil
}

// Test predicts every labelled line of r and measures the predictions
// against the labels of the line.
func (ft *FastText) Test(r io.Reader, k int, threshold float32) (*Meter, error) {
	if err := ft.checkSupervised(); err != nil {
		return nil, err
	}
	meter := NewMeter()
	cr := corpus.NewReader(r)
	var line corpus.Line
	for !cr.EOF() {
		if _, err := ft.dict.GetSupervisedLine(cr, &line); err != nil {
			return nil, err
		}
		if len(line.Labels) == 0 || len(line.Words) == 0 {
			continue
		}
		preds, err := ft.Predict(line.Words, k, threshold)
		if err != nil {
			return nil, err
		}
		meter.Log(line.Labels, preds)
	}
	return meter, nil
}
