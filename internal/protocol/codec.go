package protocol

import (
	"encoding/json"
	"errors"
	"io"
)

// MaxFrameSize bounds the bytes a single Decode may pull from the stream.
const MaxFrameSize = 1 << 20

// ErrFrameTooLarge is returned by Decode when a request object does not fit
// in the decoder's limit.  The stream is unusable afterwards.
var ErrFrameTooLarge = errors.New("request too large")

// Decoder reads consecutive request objects from a byte stream.  Objects
// may be separated by any JSON whitespace; clients conventionally end each
// one with a newline.
type Decoder struct {
	dec   *json.Decoder
	src   *frameLimit
	limit int64
}

// NewDecoder returns a decoder limited to MaxFrameSize per request.
func NewDecoder(r io.Reader) *Decoder {
	src := &frameLimit{r: r}
	return &Decoder{dec: json.NewDecoder(src), src: src, limit: MaxFrameSize}
}

// SetLimit changes the per-request limit.  n <= 0 removes it.
func (d *Decoder) SetLimit(n int64) { d.limit = n }

// Decode reads the next request into req, resetting it first.  io.EOF means
// the peer closed the stream between requests.  Use IsFatal to decide
// whether the stream can be read further after an error.
func (d *Decoder) Decode(req *Request) error {
	*req = Request{}
	d.src.limited, d.src.remaining = d.limit > 0, d.limit
	return d.dec.Decode(req)
}

// frameLimit fails reads once the budget of the current request is spent.
type frameLimit struct {
	r         io.Reader
	limited   bool
	remaining int64
}

func (f *frameLimit) Read(p []byte) (int, error) {
	if !f.limited {
		return f.r.Read(p)
	}
	if f.remaining <= 0 {
		return 0, ErrFrameTooLarge
	}
	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}
	n, err := f.r.Read(p)
	f.remaining -= int64(n)
	return n, err
}

// IsFatal reports whether a Decode error leaves the stream unusable.  Type
// and value mismatches are not fatal: the decoder consumed the whole object
// before rejecting it.  Syntax errors, truncated input and transport errors
// are.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var (
		typeErr  *json.UnmarshalTypeError
		valueErr *ValueError
	)
	return !errors.As(err, &typeErr) && !errors.As(err, &valueErr)
}

// IsMalformed reports whether err means the peer sent bytes that are not
// JSON, as opposed to a transport failure or a clean close.
func IsMalformed(err error) bool {
	var syntaxErr *json.SyntaxError
	return errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF)
}

// Encoder writes newline terminated JSON objects.
type Encoder struct {
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Encoder{enc: enc}
}

// Encode writes v followed by a newline.
func (e *Encoder) Encode(v any) error { return e.enc.Encode(v) }
