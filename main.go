package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	log "github.com/golang/glog"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
	"github.com/tshev/faster-FastText/fasttext"
	"github.com/tshev/faster-FastText/matrix"
)

var (
	modelPath = flag.String("model", "", "model file for test, predict and print commands")
	testPath  = flag.String("test", "-", "labelled test file, - for stdin")
	k         = flag.Int("k", 1, "number of labels to predict")
	threshold = flag.Float64("threshold", 0.0, "minimal probability of a predicted label")
)

const usage = `usage: faster-fasttext <command> [flags]

commands:
  supervised              train a classifier
  skipgram                train a skipgram model
  cbow                    train a cbow model
  quantize                quantize a supervised model to <output>.ftz
  test                    evaluate a classifier on -test
  predict                 print the k most likely labels of every line of -test
  predict-prob            same as predict, with probabilities
  print-word-vectors      print the vectors of the words read from stdin
  print-sentence-vectors  print the vector of every line read from stdin
  print-ngrams            print the n-gram vectors of a word
`

// bindArgs registers one flag per training setting, defaulting to a
func bindArgs(fs *flag.FlagSet, a *args.Args, loss *string) {
	fs.StringVar(&a.Input, "input", a.Input, "training file path")
	fs.StringVar(&a.Output, "output", a.Output, "output file path prefix")
	fs.Float64Var(&a.LR, "lr", a.LR, "learning rate")
	fs.IntVar(&a.LRUpdateRate, "lrUpdateRate", a.LRUpdateRate, "tokens between learning rate updates")
	fs.IntVar(&a.Dim, "dim", a.Dim, "size of word vectors")
	fs.IntVar(&a.WS, "ws", a.WS, "size of the context window")
	fs.IntVar(&a.Epoch, "epoch", a.Epoch, "number of epochs")
	fs.IntVar(&a.MinCount, "minCount", a.MinCount, "minimal number of word occurrences")
	fs.IntVar(&a.MinCountLabel, "minCountLabel", a.MinCountLabel, "minimal number of label occurrences")
	fs.IntVar(&a.Neg, "neg", a.Neg, "number of negatives sampled")
	fs.IntVar(&a.WordNgrams, "wordNgrams", a.WordNgrams, "max length of word ngram")
	fs.StringVar(loss, "loss", a.Loss.String(), "loss function {ns, hs, softmax, ova}")
	fs.IntVar(&a.Bucket, "bucket", a.Bucket, "number of buckets")
	fs.IntVar(&a.Minn, "minn", a.Minn, "min length of char ngram")
	fs.IntVar(&a.Maxn, "maxn", a.Maxn, "max length of char ngram")
	fs.IntVar(&a.Thread, "thread", a.Thread, "number of threads")
	fs.Float64Var(&a.T, "t", a.T, "sampling threshold")
	fs.StringVar(&a.Label, "label", a.Label, "labels prefix")
	fs.IntVar(&a.Verbose, "verbose", a.Verbose, "verbosity level")
	fs.StringVar(&a.PretrainedVectors, "pretrainedVectors", a.PretrainedVectors, "pretrained word vectors for supervised learning")
	fs.BoolVar(&a.SaveOutput, "saveOutput", a.SaveOutput, "whether output params should be saved")
	fs.IntVar(&a.Cutoff, "cutoff", a.Cutoff, "number of words and ngrams to retain")
	fs.BoolVar(&a.Retrain, "retrain", a.Retrain, "whether embeddings are finetuned if a cutoff is applied")
	fs.BoolVar(&a.Qnorm, "qnorm", a.Qnorm, "whether the norm is quantized separately")
	fs.BoolVar(&a.Qout, "qout", a.Qout, "whether the classifier is quantized")
	fs.IntVar(&a.Dsub, "dsub", a.Dsub, "size of each sub-vector")
}

func parseArgs(command string) (*args.Args, error) {
	a := args.Default()
	switch command {
	case "supervised":
		a = args.DefaultSupervised()
	case "cbow":
		a.Model = args.CBOW
	}
	var loss string
	bindArgs(flag.CommandLine, a, &loss)
	if err := flag.CommandLine.Parse(os.Args[2:]); err != nil {
		return nil, err
	}

	var err error
	if a.Loss, err = args.ParseLoss(loss); err != nil {
		return nil, err
	}
	if a.WordNgrams <= 1 && a.Maxn == 0 {
		a.Bucket = 0
	}
	return a, nil
}

func train(a *args.Args) error {
	ft := fasttext.New()
	if err := ft.Train(a); err != nil {
		return err
	}
	if err := ft.SaveModel(a.Output + ".bin"); err != nil {
		return err
	}
	if a.Model != args.Supervised {
		if err := ft.SaveVectors(a.Output + ".vec"); err != nil {
			return err
		}
	}
	if a.SaveOutput {
		return ft.SaveOutput(a.Output + ".output")
	}
	return nil
}

func quantize(qargs *args.Args) error {
	ft := fasttext.New()
	if err := ft.LoadModel(qargs.Output + ".bin"); err != nil {
		return err
	}
	if err := ft.Quantize(qargs); err != nil {
		return err
	}
	return ft.SaveModel(qargs.Output + ".ftz")
}

func loadModel() (*fasttext.FastText, error) {
	ft := fasttext.New()
	if err := ft.LoadModel(*modelPath); err != nil {
		return nil, err
	}
	return ft, nil
}

func openTest() (io.ReadCloser, error) {
	if *testPath == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(*testPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fasttext.ErrIO, err)
	}
	return f, nil
}

func test(ft *fasttext.FastText) error {
	in, err := openTest()
	if err != nil {
		return err
	}
	defer in.Close()
	meter, err := ft.Test(in, *k, float32(*threshold))
	if err != nil {
		return err
	}
	fmt.Printf("N\t%d\n", meter.NExamples())
	fmt.Printf("P@%d\t%.3f\n", *k, meter.Precision())
	fmt.Printf("R@%d\t%.3f\n", *k, meter.Recall())
	return nil
}

func predict(ft *fasttext.FastText, prob bool) error {
	in, err := openTest()
	if err != nil {
		return err
	}
	defer in.Close()
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	r := corpus.NewReader(in)
	for {
		preds, ok, err := ft.PredictLine(r, *k, float32(*threshold))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fields := make([]string, 0, 2*len(preds))
		for _, p := range preds {
			fields = append(fields, p.Label)
			if prob {
				fields = append(fields, strconv.FormatFloat(float64(p.Probability), 'g', 5, 32))
			}
		}
		fmt.Fprintln(out, strings.Join(fields, " "))
	}
}

func printVector(w io.Writer, prefix string, vec matrix.Vector) {
	fields := make([]string, 0, len(vec)+1)
	if prefix != "" {
		fields = append(fields, prefix)
	}
	for _, v := range vec {
		fields = append(fields, strconv.FormatFloat(float64(v), 'g', 5, 32))
	}
	fmt.Fprintln(w, strings.Join(fields, " "))
}

func printWordVectors(ft *fasttext.FastText) error {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		printVector(out, scanner.Text(), ft.GetWordVector(scanner.Text()))
	}
	return scanner.Err()
}

func printSentenceVectors(ft *fasttext.FastText) error {
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		vec, err := ft.GetSentenceVector(scanner.Text() + "\n")
		if err != nil {
			return err
		}
		printVector(out, "", vec)
	}
	return scanner.Err()
}

func printNgrams(ft *fasttext.FastText, word string) {
	for _, nv := range ft.GetNgramVectors(word) {
		printVector(os.Stdout, nv.Ngram, nv.Vector)
	}
}

func run(command string) error {
	switch command {
	case "supervised", "skipgram", "cbow":
		a, err := parseArgs(command)
		if err != nil {
			return err
		}
		return train(a)
	case "quantize":
		a, err := parseArgs(command)
		if err != nil {
			return err
		}
		return quantize(a)
	}

	if err := flag.CommandLine.Parse(os.Args[2:]); err != nil {
		return err
	}
	ft, err := loadModel()
	if err != nil {
		return err
	}
	switch command {
	case "test":
		return test(ft)
	case "predict", "predict-prob":
		return predict(ft, command == "predict-prob")
	case "print-word-vectors":
		return printWordVectors(ft)
	case "print-sentence-vectors":
		return printSentenceVectors(ft)
	case "print-ngrams":
		if flag.NArg() != 1 {
			return fmt.Errorf("%w: print-ngrams needs one word", fasttext.ErrInvalidArgument)
		}
		printNgrams(ft, flag.Arg(0))
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", fasttext.ErrInvalidArgument, command)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
	defer log.Flush()
	if err := run(os.Args[1]); err != nil {
		log.Errorf("%s: %v", os.Args[1], err)
		log.Flush()
		os.Exit(1)
	}
}
