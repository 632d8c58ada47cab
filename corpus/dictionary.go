package corpus

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"strings"

	log "github.com/golang/glog"

	"github.com/tshev/faster-FastText/args"
	"github.com/tshev/faster-FastText/serialize"
)

type EntryType int8

const (
	Word EntryType = iota
	Label
)

type Entry struct {
	Word     string
	Count    int64
	Type     EntryType
	Subwords []int32
}

// Line holds the ids extracted from one line of text
type Line struct {
	Words  []int32
	Labels []int32
}

func (l *Line) Reset() {
	l.Words = l.Words[:0]
	l.Labels = l.Labels[:0]
}

// Dictionary maps tokens to contiguous ids: words first, sorted by
// descending count, then labels. Ids in [nwords, nwords+bucket) address
// hashed character and word n-grams.
type Dictionary struct {
	args     *args.Args
	word2int map[string]int32
	words    []Entry
	pdiscard []float32

	size    int32
	nwords  int32
	nlabels int32
	ntokens int64

	// -1 until Prune is called, then the number of surviving n-grams
	pruneIdxSize int64
	pruneIdx     map[int32]int32
}

func NewDictionary(a *args.Args) *Dictionary {
	return &Dictionary{
		args:         a,
		word2int:     make(map[string]int32),
		pruneIdxSize: -1,
		pruneIdx:     make(map[int32]int32),
	}
}

// LoadDictionary reads a dictionary written by Save
func LoadDictionary(a *args.Args, r io.Reader) (*Dictionary, error) {
	d := NewDictionary(a)
	if err := d.Load(r); err != nil {
		return nil, err
	}
	return d, nil
}

// Clone returns a deep copy of d sharing its settings
func (d *Dictionary) Clone() *Dictionary {
	c := *d
	c.word2int = make(map[string]int32, len(d.word2int))
	for w, id := range d.word2int {
		c.word2int[w] = id
	}
	c.words = make([]Entry, len(d.words))
	for i, e := range d.words {
		e.Subwords = append([]int32(nil), e.Subwords...)
		c.words[i] = e
	}
	c.pdiscard = append([]float32(nil), d.pdiscard...)
	c.pruneIdx = make(map[int32]int32, len(d.pruneIdx))
	for k, v := range d.pruneIdx {
		c.pruneIdx[k] = v
	}
	return &c
}

// Hash is the 32-bit FNV-1a hash of s, with every byte sign extended
// before it is mixed in.
func Hash(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i += 1 {
		h = h ^ uint32(int8(s[i]))
		h = h * 16777619
	}
	return h
}

func (d *Dictionary) NWords() int32 {
	return d.nwords
}

func (d *Dictionary) NLabels() int32 {
	return d.nlabels
}

func (d *Dictionary) NTokens() int64 {
	return d.ntokens
}

func (d *Dictionary) Size() int32 {
	return d.size
}

func (d *Dictionary) IsPruned() bool {
	return d.pruneIdxSize >= 0
}

// ID returns the id of w, or -1 when w is not in the vocabulary
func (d *Dictionary) ID(w string) int32 {
	if id, ok := d.word2int[w]; ok {
		return id
	}
	return -1
}

// Type returns the type of the entry with the given id
func (d *Dictionary) Type(id int32) EntryType {
	return d.words[id].Type
}

func (d *Dictionary) tokenType(w string) EntryType {
	if strings.HasPrefix(w, d.args.Label) {
		return Label
	}
	return Word
}

func (d *Dictionary) Word(id int32) string {
	return d.words[id].Word
}

// Label returns the label string of label id lid
func (d *Dictionary) Label(lid int32) (string, error) {
	if lid < 0 || lid >= d.nlabels {
		return "", fmt.Errorf("%w: label id %d is out of range [0, %d)", args.ErrInvalidArgument, lid, d.nlabels)
	}
	return d.words[lid+d.nwords].Word, nil
}

// Counts returns the counts of every entry of type t, in id order
func (d *Dictionary) Counts(t EntryType) []int64 {
	var counts []int64
	for _, e := range d.words {
		if e.Type == t {
			counts = append(counts, e.Count)
		}
	}
	return counts
}

// Add counts one more occurrence of w
func (d *Dictionary) Add(w string) {
	d.ntokens += 1
	if id, ok := d.word2int[w]; ok {
		d.words[id].Count += 1
		return
	}
	d.word2int[w] = d.size
	d.words = append(d.words, Entry{
		Word:  w,
		Count: 1,
		Type:  d.tokenType(w),
	})
	d.size += 1
}

// ReadFromFile counts every token of r and builds the vocabulary
func (d *Dictionary) ReadFromFile(r *Reader) error {
	minThreshold := int64(1)
	for {
		w, ok := r.ReadWord()
		if !ok {
			break
		}
		d.Add(w)
		if d.ntokens%1000000 == 0 && d.args.Verbose > 1 {
			log.Infof("Read %dM words", d.ntokens/1000000)
		}
		if float64(d.size) > 0.75*MaxVocabSize {
			minThreshold += 1
			d.Threshold(minThreshold, minThreshold)
		}
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	d.Threshold(int64(d.args.MinCount), int64(d.args.MinCountLabel))
	d.Init()
	if d.args.Verbose > 0 {
		log.Infof("Read %dM words", d.ntokens/1000000)
		log.Infof("Number of words:  %d", d.nwords)
		log.Infof("Number of labels: %d", d.nlabels)
	}
	return nil
}

// Init rebuilds the discard table and the subwords of every entry, for
// dictionaries filled through Add and Threshold.
func (d *Dictionary) Init() {
	d.initTableDiscard()
	d.initNgrams()
}

// Threshold drops words seen fewer than t times and labels seen fewer
// than tl times, then renumbers the survivors.
func (d *Dictionary) Threshold(t, tl int64) {
	sort.SliceStable(d.words, func(i, j int) bool {
		if d.words[i].Type != d.words[j].Type {
			return d.words[i].Type < d.words[j].Type
		}
		return d.words[i].Count > d.words[j].Count
	})
	kept := d.words[:0]
	for _, e := range d.words {
		if (e.Type == Word && e.Count < t) || (e.Type == Label && e.Count < tl) {
			continue
		}
		kept = append(kept, e)
	}
	d.words = kept
	d.reindex()
}

func (d *Dictionary) reindex() {
	d.size, d.nwords, d.nlabels = 0, 0, 0
	d.word2int = make(map[string]int32, len(d.words))
	for _, e := range d.words {
		d.word2int[e.Word] = d.size
		d.size += 1
		if e.Type == Word {
			d.nwords += 1
		} else {
			d.nlabels += 1
		}
	}
}

func (d *Dictionary) initTableDiscard() {
	d.pdiscard = make([]float32, d.size)
	for i, e := range d.words {
		f := float64(e.Count) / float64(d.ntokens)
		d.pdiscard[i] = float32(math.Sqrt(d.args.T/f) + d.args.T/f)
	}
}

func (d *Dictionary) discard(id int32, rnd float32) bool {
	if d.args.Model == args.Supervised {
		return false
	}
	return rnd > d.pdiscard[id]
}

func (d *Dictionary) initNgrams() {
	for i := range d.words {
		e := &d.words[i]
		e.Subwords = append(e.Subwords[:0], int32(i))
		if e.Word != EOS {
			e.Subwords = d.computeSubwords(BOW+e.Word+EOW, e.Subwords, nil)
		}
	}
}

// pushHash maps n-gram bucket id onto the input matrix row, honouring
// the prune index once the dictionary has been pruned.
func (d *Dictionary) pushHash(hashes []int32, id int32) []int32 {
	if d.pruneIdxSize == 0 || id < 0 {
		return hashes
	}
	if d.pruneIdxSize > 0 {
		mapped, ok := d.pruneIdx[id]
		if !ok {
			return hashes
		}
		id = mapped
	}
	return append(hashes, d.nwords+id)
}

// computeSubwords appends the bucket ids of the character n-grams of the
// wrapped word w. n-grams never split a UTF-8 sequence.
func (d *Dictionary) computeSubwords(w string, ngrams []int32, substrings *[]string) []int32 {
	minn, maxn, bucket := d.args.Minn, d.args.Maxn, d.args.Bucket
	if minn <= 0 || maxn <= 0 || bucket <= 0 {
		return ngrams
	}
	for i := 0; i < len(w); i += 1 {
		if w[i]&0xC0 == 0x80 {
			continue
		}
		j := i
		for n := 1; j < len(w) && n <= maxn; n += 1 {
			j += 1
			for j < len(w) && w[j]&0xC0 == 0x80 {
				j += 1
			}
			if n >= minn && !(n == 1 && (i == 0 || j == len(w))) {
				ngram := w[i:j]
				n0 := len(ngrams)
				ngrams = d.pushHash(ngrams, int32(Hash(ngram)%uint32(bucket)))
				if substrings != nil && len(ngrams) > n0 {
					*substrings = append(*substrings, ngram)
				}
			}
		}
	}
	return ngrams
}

// GetSubwords returns the input rows of w: its own id when known,
// followed by its character n-gram buckets.
func (d *Dictionary) GetSubwords(w string) []int32 {
	if id := d.ID(w); id >= 0 {
		return d.words[id].Subwords
	}
	if w == EOS {
		return nil
	}
	return d.computeSubwords(BOW+w+EOW, nil, nil)
}

// SubwordsOf returns the precomputed input rows of word id
func (d *Dictionary) SubwordsOf(id int32) []int32 {
	return d.words[id].Subwords
}

// GetSubwordsWithStrings is GetSubwords along with the text of every
// n-gram; a known word contributes itself first.
func (d *Dictionary) GetSubwordsWithStrings(w string) ([]int32, []string) {
	var ngrams []int32
	var substrings []string
	if id := d.ID(w); id >= 0 {
		ngrams = append(ngrams, id)
		substrings = append(substrings, d.words[id].Word)
	}
	if w != EOS {
		ngrams = d.computeSubwords(BOW+w+EOW, ngrams, &substrings)
	}
	return ngrams, substrings
}

func (d *Dictionary) addSubwords(line []int32, token string, id int32) []int32 {
	if id < 0 {
		if token != EOS {
			return d.computeSubwords(BOW+token+EOW, line, nil)
		}
		return line
	}
	if d.args.Maxn <= 0 {
		return append(line, id)
	}
	return append(line, d.words[id].Subwords...)
}

func (d *Dictionary) addWordNgrams(line []int32, hashes []int32, n int) []int32 {
	if d.args.Bucket <= 0 {
		return line
	}
	bucket := uint64(d.args.Bucket)
	for i := 0; i < len(hashes); i += 1 {
		h := uint64(int64(hashes[i]))
		for j := i + 1; j < len(hashes) && j < i+n; j += 1 {
			h = h*116049371 + uint64(int64(hashes[j]))
			line = d.pushHash(line, int32(h%bucket))
		}
	}
	return line
}

func (d *Dictionary) rewind(r *Reader) error {
	if !r.EOF() {
		return nil
	}
	if err := r.Rewind(); err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}

// GetLine reads the word ids of one line for unsupervised training,
// dropping frequent words at random. It returns the number of known
// tokens consumed; a reader at EOF is rewound first.
func (d *Dictionary) GetLine(r *Reader, line *Line, rng *rand.Rand) (int, error) {
	if err := d.rewind(r); err != nil {
		return 0, err
	}
	line.Reset()
	ntokens := 0
	for {
		token, ok := r.ReadWord()
		if !ok {
			break
		}
		id := d.ID(token)
		if id < 0 {
			continue
		}
		ntokens += 1
		if d.Type(id) == Word && !d.discard(id, rng.Float32()) {
			line.Words = append(line.Words, id)
		}
		if ntokens > MaxLineSize || token == EOS {
			break
		}
	}
	if err := r.Err(); err != nil {
		return ntokens, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return ntokens, nil
}

// GetSupervisedLine reads the features and labels of one line. Features
// are subword ids of every word followed by word n-gram buckets; labels
// are label ids in [0, nlabels).
func (d *Dictionary) GetSupervisedLine(r *Reader, line *Line) (int, error) {
	if err := d.rewind(r); err != nil {
		return 0, err
	}
	line.Reset()
	var hashes []int32
	ntokens := 0
	for {
		token, ok := r.ReadWord()
		if !ok {
			break
		}
		h := Hash(token)
		id := d.ID(token)
		t := d.tokenType(token)
		if id >= 0 {
			t = d.Type(id)
		}
		ntokens += 1
		if t == Word {
			line.Words = d.addSubwords(line.Words, token, id)
			hashes = append(hashes, int32(h))
		} else if t == Label && id >= 0 {
			line.Labels = append(line.Labels, id-d.nwords)
		}
		if token == EOS {
			break
		}
	}
	line.Words = d.addWordNgrams(line.Words, hashes, d.args.WordNgrams)
	if err := r.Err(); err != nil {
		return ntokens, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return ntokens, nil
}

// Prune keeps the words and n-gram rows listed in idx. It returns the
// kept rows reordered as they appear in the new input matrix: sorted
// word ids followed by the n-gram rows in their given order.
func (d *Dictionary) Prune(idx []int32) []int32 {
	var words, ngrams []int32
	for _, i := range idx {
		if i < d.nwords {
			words = append(words, i)
		} else {
			ngrams = append(ngrams, i)
		}
	}
	sort.Slice(words, func(i, j int) bool { return words[i] < words[j] })
	result := append([]int32(nil), words...)
	if len(ngrams) != 0 {
		for j, ngram := range ngrams {
			d.pruneIdx[ngram-d.nwords] = int32(j)
		}
		result = append(result, ngrams...)
	}
	d.pruneIdxSize = int64(len(d.pruneIdx))

	j := 0
	for i := range d.words {
		if d.words[i].Type == Label || (j < len(words) && words[j] == int32(i)) {
			d.words[j] = d.words[i]
			j += 1
		}
	}
	d.words = d.words[:j]
	d.reindex()
	d.initNgrams()
	return result
}

func (d *Dictionary) Save(w io.Writer) error {
	enc := serialize.NewEncoder(w)
	enc.Int32(d.size)
	enc.Int32(d.nwords)
	enc.Int32(d.nlabels)
	enc.Int64(d.ntokens)
	enc.Int64(d.pruneIdxSize)
	for _, e := range d.words {
		enc.String(e.Word)
		enc.Int64(e.Count)
		enc.Int8(int8(e.Type))
	}
	keys := make([]int32, 0, len(d.pruneIdx))
	for k := range d.pruneIdx {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		enc.Int32(k)
		enc.Int32(d.pruneIdx[k])
	}
	return enc.Err()
}

func (d *Dictionary) Load(r io.Reader) error {
	dec := serialize.NewDecoder(r)
	size := dec.Int32()
	nwords := dec.Int32()
	nlabels := dec.Int32()
	d.ntokens = dec.Int64()
	d.pruneIdxSize = dec.Int64()
	if err := dec.Err(); err != nil {
		return err
	}
	if size < 0 || nwords < 0 || nlabels < 0 || nwords+nlabels != size {
		return fmt.Errorf("corpus: inconsistent dictionary header %d/%d/%d", size, nwords, nlabels)
	}
	d.words = make([]Entry, 0, size)
	for i := int32(0); i < size; i += 1 {
		e := Entry{Word: dec.String(), Count: dec.Int64(), Type: EntryType(dec.Int8())}
		d.words = append(d.words, e)
	}
	d.pruneIdx = make(map[int32]int32)
	for i := int64(0); i < d.pruneIdxSize; i += 1 {
		k := dec.Int32()
		d.pruneIdx[k] = dec.Int32()
	}
	if err := dec.Err(); err != nil {
		return err
	}
	d.reindex()
	if d.nwords != nwords || d.nlabels != nlabels {
		return fmt.Errorf("corpus: entry types do not match header counts %d/%d", nwords, nlabels)
	}
	d.initTableDiscard()
	d.initNgrams()
	return nil
}
