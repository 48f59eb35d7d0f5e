package stream

import (
	"errors"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder turns a sequence of byte chunks into text. A multi-byte character
// split across two chunks is held back until its remaining bytes arrive.
// Invalid bytes decode to U+FFFD.
type Decoder struct {
	dec     *encoding.Decoder
	pending []byte
}

// NewDecoder returns a UTF-8 stream decoder.
func NewDecoder() *Decoder {
	return &Decoder{dec: unicode.UTF8.NewDecoder()}
}

// Decode returns the text completed by p.
func (d *Decoder) Decode(p []byte) string {
	return d.transform(p, false)
}

// Flush ends the stream. A dangling partial sequence becomes U+FFFD.
func (d *Decoder) Flush() string {
	out := d.transform(nil, true)
	d.dec.Reset()
	return out
}

func (d *Decoder) transform(p []byte, atEOF bool) string {
	src := make([]byte, 0, len(d.pending)+len(p))
	src = append(src, d.pending...)
	src = append(src, p...)
	if len(src) == 0 {
		return ""
	}

	// Each invalid byte expands to the 3-byte replacement character.
	dst := make([]byte, 3*len(src))
	nDst, nSrc, err := d.dec.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		// Only ErrShortDst is possible here and dst is sized for the worst case.
		d.pending = nil
		return string(dst[:nDst])
	}

	d.pending = append(d.pending[:0:0], src[nSrc:]...)
	return string(dst[:nDst])
}
