// Package stream implements the Cap'n Proto stream framing envelope:
// the segment-table prefix that precedes a message's segments on the
// wire, plus the packed variant of that envelope. Framing a Message
// for a socket or file is explicitly out of scope for the capnp core
// package, which has no I/O surface; this package is the external
// serializer the core's design assumes exists.
package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	capnp "github.com/capnp-core/capnp"
	"github.com/capnp-core/capnp/internal/packed"
)

// ErrTooLarge is returned when a message's encoded size (header plus
// segment data) would exceed an Decoder's MaxMessageSize.
var ErrTooLarge = errors.New("stream: message larger than max size")

// ErrMalformedHeader is returned when a segment table cannot be
// parsed: a bad segment count, an overflowing total size, or a header
// that was truncated mid-read.
var ErrMalformedHeader = errors.New("stream: malformed segment table")

const maxStreamSegments = 1 << 27 // upper bound on the segment count a segment table may declare

// headerSize returns the byte length of the segment table for a
// message with numSegs segments: a uint32 segment count (stored as
// count-1) followed by one uint32 word-count per segment, padded up to
// the next multiple of 8 bytes.
func headerSize(numSegs int) int {
	return (4 + 4*numSegs + 7) &^ 7
}

// Encoder writes messages to an underlying writer using the
// unpacked stream framing.
type Encoder struct {
	w   io.Writer
	hdr []byte
}

// NewEncoder creates an encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes msg's segment table followed by each segment's raw
// bytes, in order.
func (e *Encoder) Encode(msg *capnp.Message) error {
	hdr, segs, err := buildHeader(msg)
	if err != nil {
		return err
	}
	e.hdr = append(e.hdr[:0], hdr...)
	if _, err := e.w.Write(e.hdr); err != nil {
		return err
	}
	for _, data := range segs {
		if _, err := e.w.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// buildHeader returns the encoded segment table for msg, along with
// the raw bytes of every segment in order.
func buildHeader(msg *capnp.Message) ([]byte, [][]byte, error) {
	n := msg.NumSegments()
	if n <= 0 || n > maxStreamSegments {
		return nil, nil, ErrMalformedHeader
	}
	segs := make([][]byte, n)
	for i := range segs {
		seg, err := msg.Segment(capnp.SegmentID(i))
		if err != nil {
			return nil, nil, err
		}
		if len(seg.Data())%8 != 0 {
			return nil, nil, ErrMalformedHeader
		}
		segs[i] = seg.Data()
	}
	hdr := make([]byte, headerSize(int(n)))
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(n-1))
	for i, data := range segs {
		binary.LittleEndian.PutUint32(hdr[4+4*i:8+4*i], uint32(len(data)/8))
	}
	return hdr, segs, nil
}

// Marshal encodes msg using the unpacked stream framing.
func Marshal(msg *capnp.Message) ([]byte, error) {
	hdr, segs, err := buildHeader(msg)
	if err != nil {
		return nil, err
	}
	total := len(hdr)
	for _, s := range segs {
		total += len(s)
	}
	out := make([]byte, 0, total)
	out = append(out, hdr...)
	for _, s := range segs {
		out = append(out, s...)
	}
	return out, nil
}

// Decoder reads messages framed with the unpacked stream envelope
// from an underlying reader.
type Decoder struct {
	r io.Reader

	// MaxMessageSize caps the total number of bytes (header plus
	// segment data) a single Decode call will read, guarding against a
	// hostile or corrupt segment table requesting an enormous
	// allocation. Zero means capnp.DefaultTraverseLimit.
	MaxMessageSize uint64
}

// NewDecoder creates a decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

func (d *Decoder) maxSize() uint64 {
	if d.MaxMessageSize == 0 {
		return capnp.DefaultTraverseLimit
	}
	return d.MaxMessageSize
}

// Decode reads one message from the underlying stream.
func (d *Decoder) Decode() (*capnp.Message, error) {
	segSizes, err := readHeader(d.r, d.maxSize())
	if err != nil {
		return nil, err
	}
	bufs := make([][]byte, len(segSizes))
	for i, words := range segSizes {
		buf := make([]byte, int(words)*8)
		if _, err := io.ReadFull(d.r, buf); err != nil {
			return nil, err
		}
		bufs[i] = buf
	}
	msg, _, err := capnp.NewMessage(capnp.MultiSegment(bufs))
	return msg, err
}

// Unmarshal decodes a single message from its unpacked wire
// representation.
func Unmarshal(data []byte) (*capnp.Message, error) {
	return NewDecoder(&bytesReader{b: data}).Decode()
}

// bytesReader is a minimal io.Reader over a byte slice, used so
// Unmarshal can drive the same Decode path as streaming callers
// without pulling in the bytes package's full Reader surface.
type bytesReader struct{ b []byte }

func (r *bytesReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

// readHeader parses a segment table from r, returning each segment's
// size in words.
func readHeader(r io.Reader, maxSize uint64) ([]uint32, error) {
	var first [4]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	numSegs := int64(binary.LittleEndian.Uint32(first[:])) + 1
	if numSegs <= 0 || numSegs > maxStreamSegments {
		return nil, ErrMalformedHeader
	}
	hdrSize := headerSize(int(numSegs))
	if uint64(hdrSize) > maxSize {
		return nil, ErrTooLarge
	}
	rest := make([]byte, hdrSize-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}
	sizes := make([]uint32, numSegs)
	var total uint64
	for i := range sizes {
		sizes[i] = binary.LittleEndian.Uint32(rest[4*i : 4*i+4])
		total += uint64(sizes[i]) * 8
	}
	if uint64(hdrSize)+total > maxSize {
		return nil, ErrTooLarge
	}
	return sizes, nil
}

// PackedEncoder writes messages using the packed stream encoding: the
// same segment-table framing as Encoder, but with the whole stream
// (header and segment data alike) run through packed.Pack.
type PackedEncoder struct {
	w   io.Writer
	buf []byte
}

// NewPackedEncoder creates a packed encoder that writes to w.
func NewPackedEncoder(w io.Writer) *PackedEncoder {
	return &PackedEncoder{w: w}
}

// Encode writes msg's packed stream encoding.
func (e *PackedEncoder) Encode(msg *capnp.Message) error {
	hdr, segs, err := buildHeader(msg)
	if err != nil {
		return err
	}
	e.buf = e.buf[:0]
	e.buf = packed.Pack(e.buf, hdr)
	for _, data := range segs {
		e.buf = packed.Pack(e.buf, data)
	}
	_, err = e.w.Write(e.buf)
	return err
}

// PackedDecoder reads messages using the packed stream encoding.
type PackedDecoder struct {
	r              *packed.Reader
	MaxMessageSize uint64
}

// NewPackedDecoder creates a decoder that reads r's packed contents.
func NewPackedDecoder(r io.Reader) *PackedDecoder {
	return &PackedDecoder{r: packed.NewReader(bufio.NewReader(r))}
}

// Decode reads one message from the underlying packed stream.
func (d *PackedDecoder) Decode() (*capnp.Message, error) {
	dec := &Decoder{r: d.r, MaxMessageSize: d.MaxMessageSize}
	return dec.Decode()
}

// MarshalPacked encodes msg using the packed stream encoding.
func MarshalPacked(msg *capnp.Message) ([]byte, error) {
	hdr, segs, err := buildHeader(msg)
	if err != nil {
		return nil, err
	}
	out := packed.Pack(nil, hdr)
	for _, data := range segs {
		out = packed.Pack(out, data)
	}
	return out, nil
}

// UnmarshalPacked decodes a single message from its packed wire
// representation.
func UnmarshalPacked(data []byte) (*capnp.Message, error) {
	return NewPackedDecoder(&bytesReader{b: data}).Decode()
}
