package fasttext

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
	"github.com/tshev/faster-FastText/matrix"
	"github.com/tshev/faster-FastText/serialize"
)

const labelled = `__label__A sun bright warm
__label__B rain cold wet
__label__A warm sun summer
__label__B wet rain winter
__label__A bright summer sun
__label__B cold winter rain
`

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newSession() *FastText {
	return New(WithProgressInterval(10 * time.Millisecond))
}

func unsupervisedArgs(input string) *args.Args {
	a := args.Default()
	a.Input = input
	a.MinCount = 1
	a.Dim = 2
	a.WS = 1
	a.Epoch = 1
	a.Thread = 1
	a.Bucket = 100
	a.Verbose = 0
	return a
}

func supervisedArgs(input string) *args.Args {
	a := args.DefaultSupervised()
	a.Input = input
	a.Dim = 10
	a.Epoch = 25
	a.LR = 0.5
	a.Thread = 1
	a.Bucket = 0
	a.Verbose = 0
	return a
}

func trainSupervised(t *testing.T) (*FastText, string) {
	path := writeFile(t, "train.txt", labelled)
	ft := newSession()
	require.NoError(t, ft.Train(supervisedArgs(path)))
	return ft, path
}

func assertFinite(t *testing.T, m *matrix.Dense) {
	for i, v := range m.Data() {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			t.Fatalf("value %d is not finite: %v", i, v)
		}
	}
}

func TestTrainSkipgram(t *testing.T) {
	ft := newSession()
	a := unsupervisedArgs(writeFile(t, "train.txt", "the cat sat on the mat\n"))
	require.NoError(t, ft.Train(a))

	assert.Equal(t, int32(6), ft.Dictionary().NWords())
	assert.Equal(t, 2, ft.Dimension())
	assert.Len(t, ft.GetWordVector("cat"), 2)

	input, err := ft.GetInputMatrix()
	require.NoError(t, err)
	assert.Equal(t, 6+100, input.Rows())
	assertFinite(t, input)
	output, err := ft.GetOutputMatrix()
	require.NoError(t, err)
	assert.Equal(t, 6, output.Rows())
	assertFinite(t, output)
}

func TestTrainHogwild(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i += 1 {
		sb.WriteString("a quick brown fox jumps over the lazy dog\n")
	}
	for _, m := range []args.ModelName{args.SkipGram, args.CBOW} {
		a := unsupervisedArgs(writeFile(t, "train.txt", sb.String()))
		a.Model = m
		a.Thread = 4
		a.Dim = 8
		a.Loss = args.HS
		ft := newSession()
		require.NoError(t, ft.Train(a), m.String())
		input, err := ft.GetInputMatrix()
		require.NoError(t, err)
		assertFinite(t, input)
	}
}

func TestTrainRejects(t *testing.T) {
	ft := newSession()

	a := unsupervisedArgs("-")
	assert.ErrorIs(t, ft.Train(a), ErrInvalidArgument)

	a = unsupervisedArgs(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, ft.Train(a), ErrIO)

	a = unsupervisedArgs(writeFile(t, "train.txt", "rare words only\n"))
	a.MinCount = 5
	assert.ErrorIs(t, ft.Train(a), ErrInvalidArgument)

	a = supervisedArgs(writeFile(t, "train.txt", "no labels here\n"))
	assert.ErrorIs(t, ft.Train(a), ErrInvalidArgument)

	a = unsupervisedArgs(writeFile(t, "train.txt", "the cat\n"))
	a.Dim = 0
	assert.ErrorIs(t, ft.Train(a), ErrInvalidArgument)

	assert.Nil(t, ft.Args())
}

func TestPretrainedVectors(t *testing.T) {
	path := writeFile(t, "train.txt", labelled)
	vec := writeFile(t, "pre.vec", "2 3\nsun 1 0 0\nmoon 0 1 0\n")

	a := supervisedArgs(path)
	a.PretrainedVectors = vec
	ft := newSession()
	assert.ErrorIs(t, ft.Train(a), ErrInvalidArgument)

	a.Dim = 3
	a.Epoch = 1
	require.NoError(t, ft.Train(a))
	assert.GreaterOrEqual(t, ft.GetWordID("moon"), int32(0))
	assert.GreaterOrEqual(t, ft.GetWordID("sun"), int32(0))

	bad := writeFile(t, "bad.vec", "not a header line\n")
	a.PretrainedVectors = bad
	assert.ErrorIs(t, newSession().Train(a), ErrFormat)
}

func TestSupervisedTest(t *testing.T) {
	ft, path := trainSupervised(t)
	assert.Equal(t, int32(2), ft.Dictionary().NLabels())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	meter, err := ft.Test(f, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), meter.NExamples())
	assert.Greater(t, meter.Precision(), 0.8)
	assert.InDelta(t, meter.Precision(), meter.Recall(), 1e-9)
}

func TestPredictLine(t *testing.T) {
	ft, _ := trainSupervised(t)
	r := corpus.NewReader(strings.NewReader("bright sun\nwet winter\n"))

	preds, ok, err := ft.PredictLine(r, 2, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, preds, 2)
	assert.Equal(t, "__label__A", preds[0].Label)
	assert.GreaterOrEqual(t, preds[0].Probability, preds[1].Probability)
	assert.InDelta(t, 1.0, preds[0].Probability+preds[1].Probability, 1e-3)

	preds, ok, err = ft.PredictLine(r, 1, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, preds, 1)
	assert.Equal(t, "__label__B", preds[0].Label)

	_, ok, err = ft.PredictLine(r, 1, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPredictThresholdAndK(t *testing.T) {
	ft, _ := trainSupervised(t)
	words := []int32{ft.GetWordID("sun"), ft.GetWordID("warm")}

	preds, err := ft.Predict(words, -1, 0)
	require.NoError(t, err)
	assert.Len(t, preds, 2)

	preds, err = ft.Predict(words, 2, 0.99999)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(preds), 1)

	_, err = ft.Predict(words, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	preds, err = ft.Predict(nil, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, preds)
}

func TestPredictNeedsSupervisedModel(t *testing.T) {
	_, err := newSession().Predict([]int32{0}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	ft := newSession()
	require.NoError(t, ft.Train(unsupervisedArgs(writeFile(t, "train.txt", "the cat sat on the mat\n"))))
	_, err = ft.Predict([]int32{0}, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = ft.Test(strings.NewReader("__label__A cat\n"), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSaveLoadModel(t *testing.T) {
	ft, _ := trainSupervised(t)
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, ft.SaveModel(path))

	loaded := newSession()
	require.NoError(t, loaded.LoadModel(path))
	assert.Equal(t, ft.Dictionary().NWords(), loaded.Dictionary().NWords())
	assert.Equal(t, ft.Dictionary().NLabels(), loaded.Dictionary().NLabels())
	assert.Equal(t, ft.Args().Dim, loaded.Args().Dim)
	assert.Equal(t, ft.Args().Loss, loaded.Args().Loss)
	assert.False(t, loaded.IsQuant())
	assert.Equal(t, ft.GetWordVector("sun"), loaded.GetWordVector("sun"))

	words := []int32{ft.GetWordID("rain"), ft.GetWordID("cold")}
	want, err := ft.Predict(words, -1, 0)
	require.NoError(t, err)
	got, err := loaded.Predict(words, -1, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func encodeHeader(magic, version int32) []byte {
	var buf bytes.Buffer
	enc := serialize.NewEncoder(&buf)
	enc.Int32(magic)
	enc.Int32(version)
	return buf.Bytes()
}

func TestLoadModelRejects(t *testing.T) {
	ft := newSession()
	assert.ErrorIs(t, ft.LoadModelFrom(bytes.NewReader(encodeHeader(1, Version))), ErrFormat)
	assert.ErrorIs(t, ft.LoadModelFrom(bytes.NewReader(encodeHeader(Magic, Version+1))), ErrFormat)
	assert.ErrorIs(t, ft.LoadModelFrom(bytes.NewReader(nil)), ErrFormat)
	assert.ErrorIs(t, ft.LoadModel(filepath.Join(t.TempDir(), "missing.bin")), ErrIO)

	trained, _ := trainSupervised(t)
	var buf bytes.Buffer
	require.NoError(t, trained.save(&buf))
	data := buf.Bytes()
	assert.ErrorIs(t, ft.LoadModelFrom(bytes.NewReader(data[:len(data)/2])), ErrFormat)
	assert.Nil(t, ft.Args())

	require.NoError(t, ft.LoadModelFrom(bytes.NewReader(data)))
	assert.NotNil(t, ft.Args())
}

func TestLoadVersion11SupervisedDropsCharNgrams(t *testing.T) {
	a := supervisedArgs(writeFile(t, "train.txt", labelled))
	a.Epoch = 1
	a.Minn = 2
	a.Maxn = 3
	a.Bucket = 100
	ft := newSession()
	require.NoError(t, ft.Train(a))
	var buf bytes.Buffer
	require.NoError(t, ft.save(&buf))
	data := buf.Bytes()

	current := newSession()
	require.NoError(t, current.LoadModelFrom(bytes.NewReader(data)))
	assert.Equal(t, 3, current.Args().Maxn)
	assert.Equal(t, int32(Version), current.version)

	old := append([]byte(nil), data...)
	copy(old[4:8], encodeHeader(Magic, 11)[4:8])
	loaded := newSession()
	require.NoError(t, loaded.LoadModelFrom(bytes.NewReader(old)))
	assert.Equal(t, 0, loaded.Args().Maxn)
	assert.Equal(t, int32(11), loaded.version)
	assert.Equal(t, []int32{loaded.GetWordID("sun")}, loaded.Dictionary().GetSubwords("sun"))
}

func TestSubwordWithoutBuckets(t *testing.T) {
	ft, _ := trainSupervised(t)
	require.Equal(t, 0, ft.Args().Bucket)
	assert.Equal(t, int32(-1), ft.GetSubwordID("sun"))
	vec := ft.GetSubwordVector("sun")
	assert.Len(t, vec, ft.Dimension())
	assert.Equal(t, float32(0), vec.Norm())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ft := New(WithRegisterer(reg), WithProgressInterval(time.Millisecond))
	require.NoError(t, ft.Train(unsupervisedArgs(writeFile(t, "train.txt", "the cat sat on the mat\n"))))

	assert.Greater(t, testutil.ToFloat64(ft.metrics.tokens), 0.0)
	assert.Equal(t, 1.0, testutil.ToFloat64(ft.metrics.progress))
	assert.Equal(t, 0.0, testutil.ToFloat64(ft.metrics.lr))
	assert.Equal(t, reg, ft.Gatherer())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "fasttext_tokens_processed_total")
	assert.Contains(t, names, "fasttext_learning_rate")

	// a second session on the same registry shares the collectors
	other := New(WithRegisterer(reg))
	assert.Equal(t, ft.metrics.tokens, other.metrics.tokens)
}
