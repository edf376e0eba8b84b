// Package packed implements Cap'n Proto's packed encoding: a
// zero-allocation-friendly run-length scheme that shrinks the
// zero-heavy word stream a freshly-allocated Cap'n Proto message
// tends to produce, without touching the unpacked in-memory layout
// that the capnp package itself traffics in.
package packed

import (
	"bufio"
	"errors"
	"io"
)

// wordSize is the packing unit: Cap'n Proto words are always 8 bytes.
const wordSize = 8

var (
	errShortInput = errors.New("packed: input is not a whole number of words")
	errTruncated  = errors.New("packed: truncated stream")
)

// Pack appends the packed encoding of src to dst and returns the
// extended buffer. len(src) must be a multiple of 8; Pack panics
// otherwise, since src is always a Message's segment data, which is
// always word-aligned by construction.
func Pack(dst, src []byte) []byte {
	if len(src)%wordSize != 0 {
		panic(errShortInput)
	}
	i := 0
	for i < len(src) {
		word := src[i : i+wordSize]
		tag := byte(0)
		for j, b := range word {
			if b != 0 {
				tag |= 1 << uint(j)
			}
		}
		dst = append(dst, tag)
		i += wordSize
		switch tag {
		case 0x00:
			var count byte
			for count < 255 && i < len(src) && isZeroWord(src[i:i+wordSize]) {
				count++
				i += wordSize
			}
			dst = append(dst, count)
		case 0xff:
			for _, b := range word {
				if b != 0 {
					dst = append(dst, b)
				}
			}
			countPos := len(dst)
			dst = append(dst, 0)
			var count byte
			for count < 255 && i < len(src) && !hasZeroByte(src[i:i+wordSize]) {
				dst = append(dst, src[i:i+wordSize]...)
				count++
				i += wordSize
			}
			dst[countPos] = count
		default:
			for _, b := range word {
				if b != 0 {
					dst = append(dst, b)
				}
			}
		}
	}
	return dst
}

func isZeroWord(w []byte) bool {
	for _, b := range w {
		if b != 0 {
			return false
		}
	}
	return true
}

func hasZeroByte(w []byte) bool {
	for _, b := range w {
		if b == 0 {
			return true
		}
	}
	return false
}

// Unpack appends the unpacked form of src (the packed encoding) to dst
// and returns the extended buffer.
func Unpack(dst, src []byte) ([]byte, error) {
	for len(src) > 0 {
		tag := src[0]
		src = src[1:]
		var word [wordSize]byte
		switch tag {
		case 0x00:
			if len(src) < 1 {
				return nil, errTruncated
			}
			count := int(src[0])
			src = src[1:]
			dst = append(dst, word[:]...)
			for k := 0; k < count; k++ {
				dst = append(dst, word[:]...)
			}
		case 0xff:
			if len(src) < wordSize+1 {
				return nil, errTruncated
			}
			dst = append(dst, src[:wordSize]...)
			src = src[wordSize:]
			count := int(src[0])
			src = src[1:]
			n := count * wordSize
			if len(src) < n {
				return nil, errTruncated
			}
			dst = append(dst, src[:n]...)
			src = src[n:]
		default:
			for j := 0; j < wordSize; j++ {
				if tag&(1<<uint(j)) != 0 {
					if len(src) < 1 {
						return nil, errTruncated
					}
					word[j] = src[0]
					src = src[1:]
				}
			}
			dst = append(dst, word[:]...)
		}
	}
	return dst, nil
}

// Reader decodes a packed byte stream on the fly, presenting the
// unpacked bytes through the standard io.Reader interface so it can
// sit directly behind a segment-table framing reader.
type Reader struct {
	r   *bufio.Reader
	buf []byte // decoded bytes not yet delivered
}

// NewReader returns a Reader that decodes r's packed contents.
func NewReader(r *bufio.Reader) *Reader {
	return &Reader{r: r}
}

func (d *Reader) Read(p []byte) (int, error) {
	for len(d.buf) == 0 {
		if err := d.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, d.buf)
	d.buf = d.buf[n:]
	return n, nil
}

// fill decodes one tag's worth of words into d.buf.
func (d *Reader) fill() error {
	tag, err := d.r.ReadByte()
	if err != nil {
		return err
	}
	var word [wordSize]byte
	switch tag {
	case 0x00:
		count, err := d.r.ReadByte()
		if err != nil {
			return io.ErrUnexpectedEOF
		}
		d.buf = append(d.buf, word[:]...)
		for k := 0; k < int(count); k++ {
			d.buf = append(d.buf, word[:]...)
		}
	case 0xff:
		if _, err := io.ReadFull(d.r, word[:]); err != nil {
			return io.ErrUnexpectedEOF
		}
		d.buf = append(d.buf, word[:]...)
		count, err := d.r.ReadByte()
		if err != nil {
			return io.ErrUnexpectedEOF
		}
		raw := make([]byte, int(count)*wordSize)
		if _, err := io.ReadFull(d.r, raw); err != nil {
			return io.ErrUnexpectedEOF
		}
		d.buf = append(d.buf, raw...)
	default:
		for j := 0; j < wordSize; j++ {
			if tag&(1<<uint(j)) != 0 {
				b, err := d.r.ReadByte()
				if err != nil {
					return io.ErrUnexpectedEOF
				}
				word[j] = b
			} else {
				word[j] = 0
			}
		}
		d.buf = append(d.buf, word[:]...)
	}
	return nil
}
