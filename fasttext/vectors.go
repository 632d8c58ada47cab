package fasttext

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	log "github.com/golang/glog"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/corpus"
	"github.com/tshev/faster-FastText/matrix"
)

// NgramVector is the input row of one character n-gram of a word
type NgramVector struct {
	Ngram  string
	Vector matrix.Vector
}

// Neighbor is a word and its cosine similarity to a query
type Neighbor struct {
	Similarity float32
	Word       string
}

// GetWordVector averages the rows of w and of its character n-grams
func (ft *FastText) GetWordVector(w string) matrix.Vector {
	vec := matrix.NewVector(ft.args.Dim)
	ft.wordVector(vec, w)
	return vec
}

func (ft *FastText) wordVector(vec matrix.Vector, w string) {
	vec.Zero()
	ngrams := ft.dict.GetSubwords(w)
	for _, n := range ngrams {
		vec.AddRow(ft.input, int(n), 1.0)
	}
	if len(ngrams) > 0 {
		vec.Mul(1.0 / float32(len(ngrams)))
	}
}

// GetSubwordVector returns the input row of a character n-gram, zero when
// the model has no n-gram buckets
func (ft *FastText) GetSubwordVector(subword string) matrix.Vector {
	vec := matrix.NewVector(ft.args.Dim)
	if id := ft.GetSubwordID(subword); id >= 0 {
		vec.AddRow(ft.input, int(id), 1.0)
	}
	return vec
}

// GetSentenceVector embeds the first line of text. Supervised models
// average the rows of its features; other models average the unit
// length vectors of its words.
func (ft *FastText) GetSentenceVector(text string) (matrix.Vector, error) {
	svec := matrix.NewVector(ft.args.Dim)
	if ft.args.Model == args.Supervised {
		var line corpus.Line
		if _, err := ft.dict.GetSupervisedLine(corpus.NewReader(strings.NewReader(text)), &line); err != nil {
			return nil, err
		}
		for _, i := range line.Words {
			svec.AddRow(ft.input, int(i), 1.0)
		}
		if len(line.Words) > 0 {
			svec.Mul(1.0 / float32(len(line.Words)))
		}
		return svec, nil
	}

	sentence, _, _ := strings.Cut(text, "\n")
	vec := matrix.NewVector(ft.args.Dim)
	count := 0
	for _, w := range strings.Fields(sentence) {
		ft.wordVector(vec, w)
		if norm := vec.Norm(); norm > 0 {
			svec.AddVector(vec, 1.0/norm)
			count += 1
		}
	}
	if count > 0 {
		svec.Mul(1.0 / float32(count))
	}
	return svec, nil
}

// GetNgramVectors lists the rows used to build the vector of w
func (ft *FastText) GetNgramVectors(w string) []NgramVector {
	ngrams, substrings := ft.dict.GetSubwordsWithStrings(w)
	result := make([]NgramVector, 0, len(ngrams))
	for i, n := range ngrams {
		vec := matrix.NewVector(ft.args.Dim)
		if n >= 0 {
			vec.AddRow(ft.input, int(n), 1.0)
		}
		result = append(result, NgramVector{Ngram: substrings[i], Vector: vec})
	}
	return result
}

func (ft *FastText) lazyComputeWordVectors() {
	if ft.wordVectors != nil {
		return
	}
	nwords := ft.dict.NWords()
	ft.wordVectors = matrix.NewDense(int(nwords), ft.args.Dim)
	vec := matrix.NewVector(ft.args.Dim)
	for i := int32(0); i < nwords; i += 1 {
		ft.wordVector(vec, ft.dict.Word(i))
		if norm := vec.Norm(); norm > 0 {
			ft.wordVectors.AddVectorToRow(vec, int(i), 1.0/norm)
		}
	}
}

func (ft *FastText) nearest(query matrix.Vector, k int, ban map[string]bool) ([]Neighbor, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k needs to be 1 or higher, got %d", ErrInvalidArgument, k)
	}
	ft.lazyComputeWordVectors()
	queryNorm := query.Norm()
	if math.Abs(float64(queryNorm)) < 1e-8 {
		queryNorm = 1
	}
	var result []Neighbor
	for i := int32(0); i < ft.dict.NWords(); i += 1 {
		w := ft.dict.Word(i)
		if ban[w] {
			continue
		}
		sim := ft.wordVectors.DotRow(query, int(i)) / queryNorm
		result = append(result, Neighbor{Similarity: sim, Word: w})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Similarity > result[j].Similarity
	})
	if len(result) > k {
		result = result[:k]
	}
	return result, nil
}

// GetNN returns the k words closest to w, w itself excluded
func (ft *FastText) GetNN(w string, k int) ([]Neighbor, error) {
	return ft.nearest(ft.GetWordVector(w), k, map[string]bool{w: true})
}

// GetAnalogies returns the k words closest to a - b + c
func (ft *FastText) GetAnalogies(k int, a, b, c string) ([]Neighbor, error) {
	query := matrix.NewVector(ft.args.Dim)
	buf := matrix.NewVector(ft.args.Dim)
	ft.wordVector(buf, a)
	query.AddVector(buf, 1.0/(buf.Norm()+1e-8))
	ft.wordVector(buf, b)
	query.AddVector(buf, -1.0/(buf.Norm()+1e-8))
	ft.wordVector(buf, c)
	query.AddVector(buf, 1.0/(buf.Norm()+1e-8))
	return ft.nearest(query, k, map[string]bool{a: true, b: true, c: true})
}

func writeVector(w *bufio.Writer, word string, vec matrix.Vector) {
	w.WriteString(word)
	for _, v := range vec {
		w.WriteByte(' ')
		w.WriteString(strconv.FormatFloat(float64(v), 'g', 5, 32))
	}
	w.WriteByte('\n')
}

func writeTextFile(path string, fill func(w *bufio.Writer)) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s cannot be opened for saving vectors: %v", ErrIO, path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	fill(w)
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return f.Close()
}

// SaveVectors writes the vector of every word in the text format
func (ft *FastText) SaveVectors(path string) error {
	return writeTextFile(path, func(w *bufio.Writer) {
		fmt.Fprintf(w, "%d %d\n", ft.dict.NWords(), ft.args.Dim)
		vec := matrix.NewVector(ft.args.Dim)
		for i := int32(0); i < ft.dict.NWords(); i += 1 {
			word := ft.dict.Word(i)
			ft.wordVector(vec, word)
			writeVector(w, word, vec)
		}
	})
}

// SaveOutput writes the rows of the output matrix, keyed by label for
// supervised models and by word otherwise.
func (ft *FastText) SaveOutput(path string) error {
	if ft.quant {
		return fmt.Errorf("%w: saving the output matrix", ErrUnsupported)
	}
	supervised := ft.args.Model == args.Supervised
	n := ft.dict.NWords()
	if supervised {
		n = ft.dict.NLabels()
	}
	return writeTextFile(path, func(w *bufio.Writer) {
		fmt.Fprintf(w, "%d %d\n", n, ft.args.Dim)
		vec := matrix.NewVector(ft.args.Dim)
		for i := int32(0); i < n; i += 1 {
			word := ft.dict.Word(i)
			if supervised {
				word, _ = ft.dict.Label(i)
			}
			vec.Zero()
			vec.AddRow(ft.output, int(i), 1.0)
			writeVector(w, word, vec)
		}
	})
}

// loadVectors reads pretrained vectors in the text format, adds their
// words to dict and returns an input matrix initialized with them.
func loadVectors(a *args.Args, dict *corpus.Dictionary, path string) (*matrix.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s cannot be opened for loading: %v", ErrIO, path, err)
	}
	defer f.Close()
	words, mat, err := readVectors(f, a.Dim)
	if err != nil {
		return nil, err
	}

	for _, w := range words {
		dict.Add(w)
	}
	dict.Threshold(1, 0)
	dict.Init()

	input := matrix.NewDense(int(dict.NWords())+a.Bucket, a.Dim)
	input.Uniform(1.0/float32(a.Dim), 1)
	for i, w := range words {
		idx := dict.ID(w)
		if idx < 0 || idx >= dict.NWords() {
			continue
		}
		copy(input.Row(int(idx)), mat[i])
	}
	return input, nil
}

func readVectors(r io.Reader, dim int) ([]string, []matrix.Vector, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("%w: missing vectors header", ErrFormat)
	}
	header := strings.Fields(scanner.Text())
	if len(header) != 2 {
		return nil, nil, fmt.Errorf("%w: bad vectors header %q", ErrFormat, scanner.Text())
	}
	n, err := strconv.Atoi(header[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad vector count: %v", ErrFormat, err)
	}
	vdim, err := strconv.Atoi(header[1])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad vector dimension: %v", ErrFormat, err)
	}
	if vdim != dim {
		return nil, nil, fmt.Errorf("%w: dimension of pretrained vectors (%d) does not match dimension (%d)",
			ErrInvalidArgument, vdim, dim)
	}

	var words []string
	var vecs []matrix.Vector
	for line := 2; len(words) < n && scanner.Scan(); line += 1 {
		fields := strings.Fields(scanner.Text())
		if len(fields) != dim+1 {
			log.Warningf("skipping vector on line %d: %d fields, want %d", line, len(fields), dim+1)
			continue
		}
		vec := matrix.NewVector(dim)
		bad := false
		for j, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 32)
			if err != nil {
				bad = true
				break
			}
			vec[j] = float32(v)
		}
		if bad {
			log.Warningf("skipping vector on line %d: malformed value", line)
			continue
		}
		words = append(words, fields[0])
		vecs = append(vecs, vec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return words, vecs, nil
}
