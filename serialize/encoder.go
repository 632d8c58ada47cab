// Package serialize implements the flat little-endian field dump used by
// the model file. Encoder and Decoder keep the first error and turn every
// later call into a no-op, so a sequence of fields can be written or read
// and checked once at the end.
package serialize

import (
	"encoding/binary"
	"io"
	"math"
)

var order = binary.LittleEndian

// float32 values moved per Read or Write call
const chunkSize = 4096

type Encoder struct {
	w   io.Writer
	buf [8]byte
	err error
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Err returns the first error met while writing
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *Encoder) Int32(v int32) {
	order.PutUint32(e.buf[:4], uint32(v))
	e.write(e.buf[:4])
}

func (e *Encoder) Int64(v int64) {
	order.PutUint64(e.buf[:8], uint64(v))
	e.write(e.buf[:8])
}

func (e *Encoder) Int8(v int8) {
	e.buf[0] = byte(v)
	e.write(e.buf[:1])
}

func (e *Encoder) Uint8(v uint8) {
	e.buf[0] = v
	e.write(e.buf[:1])
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
	} else {
		e.Uint8(0)
	}
}

func (e *Encoder) Float64(v float64) {
	order.PutUint64(e.buf[:8], math.Float64bits(v))
	e.write(e.buf[:8])
}

// String writes the bytes of s followed by a NUL terminator
func (e *Encoder) String(s string) {
	e.write([]byte(s))
	e.Uint8(0)
}

func (e *Encoder) Bytes(p []byte) {
	e.write(p)
}

// Float32s writes v in fixed-size chunks
func (e *Encoder) Float32s(v []float32) {
	var chunk [4 * chunkSize]byte
	for len(v) > 0 && e.err == nil {
		n := min(len(v), chunkSize)
		for i, f := range v[:n] {
			order.PutUint32(chunk[4*i:], math.Float32bits(f))
		}
		e.write(chunk[:4*n])
		v = v[n:]
	}
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

// unbuffered reads single bytes straight from r, so that nothing past
// the decoded fields is consumed
type unbuffered struct {
	io.Reader
	b [1]byte
}

func (u *unbuffered) ReadByte() (byte, error) {
	if _, err := io.ReadFull(u.Reader, u.b[:]); err != nil {
		return 0, err
	}
	return u.b[0], nil
}

type Decoder struct {
	r   byteReader
	buf [8]byte
	err error
}

// NewDecoder reads fields from r. A reader without ReadByte, such as an
// *os.File, is read without buffering; wrap it in a bufio.Reader shared by
// every decoder of the same stream for speed.
func NewDecoder(r io.Reader) *Decoder {
	if br, ok := r.(byteReader); ok {
		return &Decoder{r: br}
	}
	return &Decoder{r: &unbuffered{Reader: r}}
}

// Reader exposes the underlying reader so that nested decoders share the
// same read position.
func (d *Decoder) Reader() io.Reader {
	return d.r
}

// Err returns the first error met while reading
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) read(p []byte) {
	if d.err != nil {
		return
	}
	_, d.err = io.ReadFull(d.r, p)
}

func (d *Decoder) Int32() int32 {
	d.read(d.buf[:4])
	if d.err != nil {
		return 0
	}
	return int32(order.Uint32(d.buf[:4]))
}

func (d *Decoder) Int64() int64 {
	d.read(d.buf[:8])
	if d.err != nil {
		return 0
	}
	return int64(order.Uint64(d.buf[:8]))
}

func (d *Decoder) Int8() int8 {
	return int8(d.Uint8())
}

func (d *Decoder) Uint8() uint8 {
	d.read(d.buf[:1])
	if d.err != nil {
		return 0
	}
	return d.buf[0]
}

func (d *Decoder) Bool() bool {
	return d.Uint8() != 0
}

func (d *Decoder) Float64() float64 {
	d.read(d.buf[:8])
	if d.err != nil {
		return 0
	}
	return math.Float64frombits(order.Uint64(d.buf[:8]))
}

// String reads bytes up to and excluding the next NUL
func (d *Decoder) String() string {
	if d.err != nil {
		return ""
	}
	var s []byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			d.err = err
			return ""
		}
		if b == 0 {
			return string(s)
		}
		s = append(s, b)
	}
}

func (d *Decoder) Bytes(p []byte) {
	d.read(p)
}

// Float32s fills v, reading it in fixed-size chunks
func (d *Decoder) Float32s(v []float32) {
	var chunk [4 * chunkSize]byte
	for len(v) > 0 && d.err == nil {
		n := min(len(v), chunkSize)
		d.read(chunk[:4*n])
		if d.err != nil {
			return
		}
		for i := range v[:n] {
			v[i] = math.Float32frombits(order.Uint32(chunk[4*i:]))
		}
		v = v[n:]
	}
}

// Fail records err unless an earlier error is already held
func (d *Decoder) Fail(err error) {
	if d.err == nil {
		d.err = err
	}
}
