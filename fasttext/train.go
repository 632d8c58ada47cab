package fasttext

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"

	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
	"github.com/tshev/faster-FastText/matrix"
	"github.com/tshev/faster-FastText/model"
	"github.com/tshev/faster-FastText/util"
)

// Train builds the vocabulary of a.Input and trains a new model on it,
// replacing the session state once training has succeeded.
func (ft *FastText) Train(a *args.Args) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.Input == "-" {
		return fmt.Errorf("%w: cannot use stdin for training", ErrInvalidArgument)
	}
	f, err := os.Open(a.Input)
	if err != nil {
		return fmt.Errorf("%w: %s cannot be opened for training: %v", ErrIO, a.Input, err)
	}
	defer f.Close()

	targs := *a
	dict := corpus.NewDictionary(&targs)
	if err := dict.ReadFromFile(corpus.NewReader(f)); err != nil {
		return err
	}
	if dict.NWords() == 0 {
		return fmt.Errorf("%w: empty vocabulary, try a smaller minCount", ErrInvalidArgument)
	}
	if targs.Model == args.Supervised && dict.NLabels() == 0 {
		return fmt.Errorf("%w: no label with prefix %q in %s", ErrInvalidArgument, targs.Label, targs.Input)
	}

	var input *matrix.Dense
	if targs.PretrainedVectors != "" {
		input, err = loadVectors(&targs, dict, targs.PretrainedVectors)
		if err != nil {
			return err
		}
	} else {
		input = matrix.NewDense(int(dict.NWords())+targs.Bucket, targs.Dim)
		input.Uniform(1.0/float32(targs.Dim), 1)
	}
	rows := dict.NWords()
	if targs.Model == args.Supervised {
		rows = dict.NLabels()
	}
	output := matrix.NewDense(int(rows), targs.Dim)

	m, err := newModel(&targs, dict, input, output)
	if err != nil {
		return err
	}
	if err := ft.newTrainer(&targs, dict, m).run(); err != nil {
		return err
	}

	ft.args, ft.dict = &targs, dict
	ft.input, ft.output = input, output
	ft.model = m
	ft.quant = false
	ft.version = Version
	ft.wordVectors = nil
	return nil
}

// progress is the state shared by the workers of one run
type progress struct {
	tokens atomic.Int64
	// float64 bits of the loss of worker 0, negative until first reported
	loss atomic.Uint64
}

func (p *progress) setLoss(l float64) {
	p.loss.Store(math.Float64bits(l))
}

func (p *progress) getLoss() float64 {
	return math.Float64frombits(p.loss.Load())
}

type progressInfo struct {
	progress float64
	lr       float64
	loss     float64
	wst      float64
	eta      time.Duration
}

func (p progressInfo) String() string {
	eta := int64(p.eta.Seconds())
	return fmt.Sprintf("Progress: %5.1f%% words/sec/thread: %7d lr: %9.6f loss: %9.6f ETA: %3dh%2dm",
		100*p.progress, int64(p.wst), p.lr, p.loss, eta/3600, (eta%3600)/60)
}

type trainer struct {
	args     *args.Args
	dict     *corpus.Dictionary
	model    *model.Model
	metrics  *metrics
	interval time.Duration

	progress progress
	start    time.Time
	// tokens already added to the metrics counter
	reported int64
}

func (ft *FastText) newTrainer(a *args.Args, dict *corpus.Dictionary, m *model.Model) *trainer {
	return &trainer{
		args:     a,
		dict:     dict,
		model:    m,
		metrics:  ft.metrics,
		interval: ft.progressInterval,
	}
}

func (t *trainer) budget() int64 {
	return int64(t.args.Epoch) * t.dict.NTokens()
}

// run trains with one goroutine per configured thread until the token
// budget is spent. The first worker error aborts the run.
func (t *trainer) run() error {
	t.start = time.Now()
	t.progress.setLoss(-1)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < t.args.Thread; i += 1 {
		i := i
		g.Go(func() error {
			return t.worker(ctx, i)
		})
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		t.monitor(done)
		close(stopped)
	}()
	err := g.Wait()
	close(done)
	<-stopped
	if err != nil {
		return err
	}

	info := t.info(1.0)
	t.metrics.observe(t.progress.tokens.Load()-t.reported, info)
	if t.args.Verbose > 0 {
		log.Infof("%s", info)
	}
	return nil
}

func (t *trainer) info(ratio float64) progressInfo {
	info := progressInfo{
		progress: ratio,
		lr:       t.args.LR * (1.0 - ratio),
		loss:     t.progress.getLoss(),
		eta:      720 * time.Hour,
	}
	elapsed := time.Since(t.start).Seconds()
	if ratio > 0 && elapsed > 0 {
		info.eta = time.Duration(elapsed * (1 - ratio) / ratio * float64(time.Second))
		info.wst = float64(t.progress.tokens.Load()) / elapsed / float64(t.args.Thread)
	}
	return info
}

func (t *trainer) monitor(done <-chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			tokens := t.progress.tokens.Load()
			ratio := math.Min(float64(tokens)/float64(t.budget()), 1.0)
			info := t.info(ratio)
			t.metrics.observe(tokens-t.reported, info)
			t.reported = tokens
			if info.loss >= 0 && t.args.Verbose > 1 {
				log.Infof("%s", info)
			}
		}
	}
}

func (t *trainer) worker(ctx context.Context, id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("fasttext: worker %d: %w", id, e)
			} else {
				err = fmt.Errorf("fasttext: worker %d: %v", id, r)
			}
		}
	}()

	f, err := os.Open(t.args.Input)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()
	size, err := util.Size(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	if err := util.Seek(f, int64(id)*size/int64(t.args.Thread)); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}

	r := corpus.NewReader(f)
	state := t.model.NewState(int64(id))
	budget := t.budget()
	var line corpus.Line
	local := int64(0)
	for t.progress.tokens.Load() < budget {
		if ctx.Err() != nil {
			return nil
		}
		ratio := float64(t.progress.tokens.Load()) / float64(budget)
		lr := float32(t.args.LR * (1.0 - ratio))

		var n int
		switch t.args.Model {
		case args.Supervised:
			n, err = t.dict.GetSupervisedLine(r, &line)
			if err == nil {
				t.supervised(state, lr, &line)
			}
		case args.CBOW:
			n, err = t.dict.GetLine(r, &line, state.Rng())
			if err == nil {
				t.cbow(state, lr, line.Words)
			}
		default:
			n, err = t.dict.GetLine(r, &line, state.Rng())
			if err == nil {
				t.skipgram(state, lr, line.Words)
			}
		}
		if err != nil {
			return err
		}

		local += int64(n)
		if local > int64(t.args.LRUpdateRate) {
			t.progress.tokens.Add(local)
			local = 0
			if id == 0 && t.args.Verbose > 1 {
				t.progress.setLoss(state.Loss())
			}
		}
	}
	if id == 0 {
		t.progress.setLoss(state.Loss())
	}
	return nil
}

// supervised updates toward one random label of the line, or every
// label with the one-vs-all loss
func (t *trainer) supervised(state *model.State, lr float32, line *corpus.Line) {
	if len(line.Labels) == 0 || len(line.Words) == 0 {
		return
	}
	if t.args.Loss == args.OVA {
		t.model.Update(line.Words, line.Labels, model.AllLabelsAsTarget, lr, state)
		return
	}
	i := state.Rng().Intn(len(line.Labels))
	t.model.Update(line.Words, line.Labels, int32(i), lr, state)
}

// cbow predicts every word from the subwords of its context
func (t *trainer) cbow(state *model.State, lr float32, line []int32) {
	var bow []int32
	for w := range line {
		boundary := 1 + state.Rng().Intn(t.args.WS)
		bow = bow[:0]
		for c := -boundary; c <= boundary; c += 1 {
			if c != 0 && w+c >= 0 && w+c < len(line) {
				bow = append(bow, t.dict.SubwordsOf(line[w+c])...)
			}
		}
		t.model.Update(bow, line, int32(w), lr, state)
	}
}

// skipgram predicts every context word from the subwords of the center
func (t *trainer) skipgram(state *model.State, lr float32, line []int32) {
	for w := range line {
		boundary := 1 + state.Rng().Intn(t.args.WS)
		ngrams := t.dict.SubwordsOf(line[w])
		for c := -boundary; c <= boundary; c += 1 {
			if c != 0 && w+c >= 0 && w+c < len(line) {
				t.model.Update(ngrams, line, int32(w+c), lr, state)
			}
		}
	}
}
