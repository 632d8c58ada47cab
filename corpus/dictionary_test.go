package corpus

import (
	"bytes"
	"hash/fnv"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tshev/faster-FastText/args"
)

func newArgs() *args.Args {
	a := args.Default()
	a.MinCount = 1
	a.Minn = 3
	a.Maxn = 3
	a.Bucket = 1000000
	a.Verbose = 0
	a.T = 1
	return a
}

func buildDictionary(t *testing.T, a *args.Args, text string) *Dictionary {
	d := NewDictionary(a)
	require.NoError(t, d.ReadFromFile(NewReader(strings.NewReader(text))))
	return d
}

func TestHash(t *testing.T) {
	assert.Equal(t, uint32(2166136261), Hash(""))

	h := fnv.New32a()
	h.Write([]byte("ascii"))
	assert.Equal(t, h.Sum32(), Hash("ascii"))

	h.Reset()
	h.Write([]byte("é"))
	assert.NotEqual(t, h.Sum32(), Hash("é"))
}

func TestReadFromFileSortsByCount(t *testing.T) {
	d := buildDictionary(t, newArgs(), "b a b c b a __label__x\n")

	assert.Equal(t, int32(4), d.NWords())
	assert.Equal(t, int32(1), d.NLabels())
	assert.Equal(t, int32(5), d.Size())
	assert.Equal(t, int64(8), d.NTokens())
	assert.Equal(t, []string{"b", "a", "c", EOS}, []string{d.Word(0), d.Word(1), d.Word(2), d.Word(3)})
	assert.Equal(t, []int64{3, 2, 1, 1}, d.Counts(Word))
	assert.Equal(t, []int64{1}, d.Counts(Label))

	label, err := d.Label(0)
	require.NoError(t, err)
	assert.Equal(t, "__label__x", label)
	_, err = d.Label(1)
	assert.ErrorIs(t, err, args.ErrInvalidArgument)

	for i := int32(0); i < d.Size(); i += 1 {
		assert.Equal(t, i, d.ID(d.Word(i)))
	}
	assert.Equal(t, int32(-1), d.ID("missing"))
}

func TestThreshold(t *testing.T) {
	a := newArgs()
	a.MinCount = 2
	a.MinCountLabel = 2
	d := buildDictionary(t, a, "b a b c b a __label__x __label__y __label__y\n")

	assert.Equal(t, int32(2), d.NWords())
	assert.Equal(t, int32(1), d.NLabels())
	assert.Equal(t, "b", d.Word(0))
	assert.Equal(t, "a", d.Word(1))
	assert.Equal(t, "__label__y", d.Word(2))
	assert.Equal(t, Label, d.Type(2))
}

func TestEmptyVocabulary(t *testing.T) {
	a := newArgs()
	a.MinCount = 10
	d := NewDictionary(a)
	require.NoError(t, d.ReadFromFile(NewReader(strings.NewReader("a b c\n"))))
	assert.Equal(t, int32(0), d.Size())
	assert.Equal(t, int64(4), d.NTokens())
}

func TestSubwordsInBucketRange(t *testing.T) {
	a := newArgs()
	a.Bucket = 100
	d := buildDictionary(t, a, "ab abc where\n")

	id := d.ID("ab")
	subwords := d.GetSubwords("ab")
	require.Len(t, subwords, 3)
	assert.Equal(t, id, subwords[0])
	assert.Equal(t, d.NWords()+int32(Hash("<ab")%100), subwords[1])
	assert.Equal(t, d.NWords()+int32(Hash("ab>")%100), subwords[2])

	for _, w := range []string{"where", "unknownword", "x"} {
		for _, s := range d.GetSubwords(w) {
			if s == d.ID(w) {
				continue
			}
			assert.GreaterOrEqual(t, s, d.NWords())
			assert.Less(t, s, d.NWords()+100)
		}
	}
	assert.Equal(t, []int32{d.ID(EOS)}, d.GetSubwords(EOS))
}

func TestSubwordsUTF8(t *testing.T) {
	a := newArgs()
	a.Minn = 1
	a.Maxn = 1
	d := buildDictionary(t, a, "a\n")

	ids, strs := d.GetSubwordsWithStrings("é")
	assert.Equal(t, []string{"é"}, strs)
	assert.Equal(t, []int32{d.NWords() + int32(Hash("é")%uint32(a.Bucket))}, ids)

	ids, strs = d.GetSubwordsWithStrings("a")
	assert.Equal(t, []string{"a", "a"}, strs)
	assert.Equal(t, d.ID("a"), ids[0])
}

func TestNoSubwordsWithoutNgramRange(t *testing.T) {
	a := newArgs()
	a.Minn = 0
	a.Maxn = 0
	d := buildDictionary(t, a, "hello\n")
	assert.Equal(t, []int32{d.ID("hello")}, d.GetSubwords("hello"))
	assert.Empty(t, d.GetSubwords("unknown"))
}

func TestGetLine(t *testing.T) {
	d := buildDictionary(t, newArgs(), "the cat sat\nthe dog\n")
	r := NewReader(strings.NewReader("the cat unknown sat\nthe dog\n"))
	rng := rand.New(rand.NewSource(1))

	var line Line
	n, err := d.GetLine(r, &line, rng)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []int32{d.ID("the"), d.ID("cat"), d.ID("sat"), d.ID(EOS)}, line.Words)

	n, err = d.GetLine(r, &line, rng)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []int32{d.ID("the"), d.ID("dog"), d.ID(EOS)}, line.Words)
}

func TestGetLineDiscardsFrequentWords(t *testing.T) {
	a := newArgs()
	a.T = 1e-15
	text := strings.Repeat("w ", 1000) + "\n"
	d := buildDictionary(t, a, text)

	var line Line
	_, err := d.GetLine(NewReader(strings.NewReader(text)), &line, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Empty(t, line.Words)
}

func TestGetSupervisedLine(t *testing.T) {
	a := args.DefaultSupervised()
	a.WordNgrams = 2
	a.Bucket = 1000
	a.Verbose = 0
	d := buildDictionary(t, a, "__label__a hello world\n__label__b world\n")

	var line Line
	n, err := d.GetSupervisedLine(NewReader(strings.NewReader("__label__b hello world __label__zzz\n")), &line)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []int32{d.ID("__label__b") - d.NWords()}, line.Labels)

	// hello, world, </s> and the two bigrams between them
	require.Len(t, line.Words, 5)
	assert.Equal(t, []int32{d.ID("hello"), d.ID("world"), d.ID(EOS)}, line.Words[:3])
	hello, world := Hash("hello"), Hash("world")
	bigram := uint64(int64(int32(hello)))*116049371 + uint64(int64(int32(world)))
	assert.Equal(t, d.NWords()+int32(bigram%1000), line.Words[3])
	for _, id := range line.Words[3:] {
		assert.GreaterOrEqual(t, id, d.NWords())
		assert.Less(t, id, d.NWords()+1000)
	}
}

func TestPrune(t *testing.T) {
	d := buildDictionary(t, newArgs(), "abc abc abc xyz xyz mno __label__q\n")
	require.Equal(t, int32(4), d.NWords())
	abc := d.ID("abc")
	require.Equal(t, int32(0), abc)
	ngram := d.GetSubwords("abc")[1]

	idx := d.Prune([]int32{ngram, d.ID("mno"), abc})
	assert.Equal(t, []int32{abc, 2, ngram}, idx)
	assert.True(t, d.IsPruned())
	assert.Equal(t, int32(2), d.NWords())
	assert.Equal(t, int32(1), d.NLabels())
	assert.Equal(t, "abc", d.Word(0))
	assert.Equal(t, "mno", d.Word(1))
	assert.Equal(t, "__label__q", d.Word(2))
	assert.Equal(t, int32(-1), d.ID("xyz"))

	// only the kept n-gram survives, remapped to the first row after the words
	assert.Equal(t, []int32{0, 2}, d.GetSubwords("abc"))
}

func TestSaveLoad(t *testing.T) {
	a := newArgs()
	d := buildDictionary(t, a, "abc abc abc xyz xyz mno __label__q\n")
	d.Prune([]int32{d.GetSubwords("abc")[1], 0, 1})

	var buf bytes.Buffer
	require.NoError(t, d.Save(&buf))
	loaded, err := LoadDictionary(a, &buf)
	require.NoError(t, err)

	assert.Equal(t, d.Size(), loaded.Size())
	assert.Equal(t, d.NWords(), loaded.NWords())
	assert.Equal(t, d.NLabels(), loaded.NLabels())
	assert.Equal(t, d.NTokens(), loaded.NTokens())
	assert.Equal(t, d.pruneIdx, loaded.pruneIdx)
	assert.Equal(t, d.words, loaded.words)
	assert.Equal(t, d.word2int, loaded.word2int)
	assert.True(t, loaded.IsPruned())
}

func TestLoadTruncated(t *testing.T) {
	d := buildDictionary(t, newArgs(), "a b\n")
	var buf bytes.Buffer
	require.NoError(t, d.Save(&buf))
	_, err := LoadDictionary(newArgs(), bytes.NewReader(buf.Bytes()[:buf.Len()-3]))
	assert.Error(t, err)
}
