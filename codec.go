package vex

import (
	"errors"
	"fmt"
)

// Error taxonomy. Errors returned by the codec wrap one of these
// sentinels; match with errors.Is.
var (
	ErrOutOfRange      = errors.New("value out of range")
	ErrUnsupportedType = errors.New("unsupported type")
	ErrInvalidByte     = errors.New("invalid byte")
	ErrInvalidHeader   = errors.New("invalid header")
	ErrCorrupt         = errors.New("corrupt data")
	ErrTrailingData    = errors.New("trailing data")
	ErrBadArgument     = errors.New("bad argument")
)

// EncodeOptions configure Marshal and EncodeToString. Externals are
// pre-registered in the reference table, in order, before any internal
// value; the decoder must be given the same list. ExternalCount, when
// larger than len(Externals), reserves additional placeholder ids. Key,
// when non-empty, enables the stream cipher for EncodeToString.
type EncodeOptions struct {
	Externals       []Value
	ExternalCount   int
	Key             []byte
	OmitUnsupported bool
}

// DecodeOptions mirror EncodeOptions for Unmarshal and DecodeString.
type DecodeOptions struct {
	Externals     []Value
	ExternalCount int
	Key           []byte
}

func (o *EncodeOptions) externalCount() int {
	if o == nil {
		return 0
	}
	if o.ExternalCount > len(o.Externals) {
		return o.ExternalCount
	}
	return len(o.Externals)
}

func (o *DecodeOptions) externalCount() int {
	if o == nil {
		return 0
	}
	if o.ExternalCount > len(o.Externals) {
		return o.ExternalCount
	}
	return len(o.Externals)
}

// Marshal encodes a value graph into the binary form. The int result is
// the omitted-entry count, nonzero only with OmitUnsupported. A nil
// value encodes to an empty byte sequence.
func Marshal(v Value, opts *EncodeOptions) ([]byte, int, error) {
	e := newEncoder(opts)
	defer e.release()
	if v.Type == TypeNil {
		return nil, 0, nil
	}
	if err := e.encodeValue(v, true); err != nil {
		return nil, 0, err
	}
	out := append([]byte{}, e.buf.Bytes()...)
	return out, e.omitted, nil
}

// Unmarshal decodes a binary byte sequence into a value graph. An empty
// sequence decodes to nil.
func Unmarshal(b []byte, opts *DecodeOptions) (Value, error) {
	if len(b) == 0 {
		return NilValue(), nil
	}
	d := newDecoder(b, opts)
	v, err := d.value()
	if err != nil {
		return Value{}, err
	}
	if d.i != len(d.b) {
		return Value{}, fmt.Errorf("%w: %d of %d bytes consumed", ErrTrailingData, d.i, len(d.b))
	}
	return v, nil
}

// EncodeToString runs the full pipeline: value codec, optional stream
// cipher, radix-85 transport.
func EncodeToString(v Value, opts *EncodeOptions) (string, int, error) {
	b, omitted, err := Marshal(v, opts)
	if err != nil {
		return "", 0, err
	}
	if opts != nil && len(opts.Key) > 0 {
		b, err = Encrypt(b, opts.Key)
		if err != nil {
			return "", 0, err
		}
	}
	return EncodeR85(b), omitted, nil
}

// DecodeString reverses EncodeToString.
func DecodeString(s string, opts *DecodeOptions) (Value, error) {
	b, err := DecodeR85(s)
	if err != nil {
		return Value{}, err
	}
	if opts != nil && len(opts.Key) > 0 {
		b, err = Decrypt(b, opts.Key)
		if err != nil {
			return Value{}, err
		}
	}
	var dopts *DecodeOptions
	if opts != nil {
		dopts = &DecodeOptions{Externals: opts.Externals, ExternalCount: opts.ExternalCount}
	}
	return Unmarshal(b, dopts)
}
