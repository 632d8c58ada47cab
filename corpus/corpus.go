// Package corpus reads whitespace separated training text and builds the
// vocabulary (words, labels and hashed n-gram buckets) used by the models.
package corpus

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

const (
	// EOS is the token produced for every newline
	EOS = "</s>"
	// BOW and EOW wrap a word before its character n-grams are taken
	BOW = "<"
	EOW = ">"

	MaxVocabSize = 30000000
	MaxLineSize  = 1024
)

var (
	ErrIO          = errors.New("corpus: io error")
	ErrNotSeekable = errors.New("corpus: source cannot be rewound")
)

// Reader splits a byte stream into tokens. Every newline yields EOS once
// the pending token has been returned.
type Reader struct {
	src io.Reader
	r   *bufio.Reader
	eof bool
	err error
	buf []byte
}

func NewReader(src io.Reader) *Reader {
	return &Reader{
		src: src,
		r:   bufio.NewReader(src),
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '\v', '\f', 0:
		return true
	}
	return false
}

// ReadWord returns the next token, or false once the input is exhausted
// or a read error occurred.
func (this *Reader) ReadWord() (string, bool) {
	if this.err != nil {
		return "", false
	}
	this.buf = this.buf[:0]
	for {
		c, err := this.r.ReadByte()
		if err != nil {
			if err != io.EOF {
				this.err = err
			}
			this.eof = true
			return string(this.buf), len(this.buf) > 0
		}
		if isSpace(c) {
			if len(this.buf) == 0 {
				if c == '\n' {
					return EOS, true
				}
				continue
			}
			if c == '\n' {
				this.r.UnreadByte()
			}
			return string(this.buf), true
		}
		this.buf = append(this.buf, c)
	}
}

// EOF reports whether the end of the input has been reached
func (this *Reader) EOF() bool {
	return this.eof
}

// Err returns the first read error other than io.EOF
func (this *Reader) Err() error {
	return this.err
}

// Rewind moves back to the start of the source, which must be an
// io.Seeker.
func (this *Reader) Rewind() error {
	s, ok := this.src.(io.Seeker)
	if !ok {
		return ErrNotSeekable
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return err
	}
	this.r.Reset(this.src)
	this.eof = false
	return nil
}

// Tokenize splits text the same way the training reader does
func Tokenize(text string) []string {
	var tokens []string
	r := NewReader(strings.NewReader(text))
	for {
		token, ok := r.ReadWord()
		if !ok {
			return tokens
		}
		tokens = append(tokens, token)
	}
}
