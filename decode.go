package vex

import (
	"fmt"
	"math"
)

type decoder struct {
	b       []byte
	i       int
	entries []Value
}

func newDecoder(b []byte, opts *DecodeOptions) *decoder {
	d := &decoder{b: b}
	if opts == nil {
		return d
	}
	count := opts.externalCount()
	d.entries = make([]Value, 0, count)
	d.entries = append(d.entries, opts.Externals...)
	for len(d.entries) < count {
		d.entries = append(d.entries, NilValue())
	}
	return d
}

func (d *decoder) byteAt() (byte, error) {
	if d.i >= len(d.b) {
		return 0, fmt.Errorf("%w: truncated at byte %d", ErrCorrupt, d.i)
	}
	c := d.b[d.i]
	d.i++
	return c, nil
}

func (d *decoder) take(n int) ([]byte, error) {
	if len(d.b)-d.i < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d", ErrCorrupt, n, d.i)
	}
	out := d.b[d.i : d.i+n]
	d.i += n
	return out, nil
}

func (d *decoder) value() (Value, error) {
	start := d.i
	tag, err := d.byteAt()
	if err != nil {
		return Value{}, err
	}

	if tag >= tagInlineMin {
		// Inline id: an assigned entry is a reference, anything else is
		// the small integer itself (mirroring the encoder's rule).
		n := int(tag) - inlineBias
		if n < len(d.entries) {
			return d.entries[n], nil
		}
		return Int(int64(n)), nil
	}

	switch tag {
	case TagTrue:
		return BoolValue(true), nil
	case TagFalse:
		return BoolValue(false), nil
	case TagNaN:
		return Float64(math.NaN()), nil
	case TagF32:
		p, err := d.take(4)
		if err != nil {
			return Value{}, err
		}
		bits := uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16 | uint32(p[3])<<24
		v := Float32(math.Float32frombits(bits))
		d.economy(start, v)
		return v, nil
	case TagF64:
		p, err := d.take(8)
		if err != nil {
			return Value{}, err
		}
		var bits uint64
		for i, c := range p {
			bits |= uint64(c) << (8 * i)
		}
		v := Float64(math.Float64frombits(bits))
		d.economy(start, v)
		return v, nil
	}

	tid := headerTypeID(tag)
	hv, err := d.headerValue(tag)
	if err != nil {
		return Value{}, err
	}

	switch tid {
	case TypeIDRef:
		id := hv + refHeaderBias
		if id >= uint64(len(d.entries)) {
			return Value{}, fmt.Errorf("%w: reference to unassigned id %d", ErrCorrupt, id)
		}
		return d.entries[id], nil
	case TypeIDInt:
		v := Int(int64(hv))
		d.economy(start, v)
		return v, nil
	case TypeIDNegInt:
		v := Int(-int64(hv))
		d.economy(start, v)
		return v, nil
	case TypeIDString:
		p, err := d.take(int(hv))
		if err != nil {
			return Value{}, err
		}
		v := Bin(append([]byte{}, p...))
		d.economy(start, v)
		return v, nil
	case TypeIDArray:
		t := NewTable()
		d.entries = append(d.entries, TableValue(t))
		for i := uint64(1); i <= hv; i++ {
			elem, err := d.value()
			if err != nil {
				return Value{}, err
			}
			if err := t.Set(Int(int64(i)), elem); err != nil {
				return Value{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
		}
		return TableValue(t), nil
	case TypeIDMap:
		t := NewTable()
		d.entries = append(d.entries, TableValue(t))
		for i := uint64(0); i < hv; i++ {
			key, err := d.value()
			if err != nil {
				return Value{}, err
			}
			val, err := d.value()
			if err != nil {
				return Value{}, err
			}
			if err := t.Set(key, val); err != nil {
				return Value{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
		}
		return TableValue(t), nil
	default:
		return Value{}, fmt.Errorf("%w: tag 0x%02X", ErrCorrupt, tag)
	}
}

// headerValue reads the length bytes of a typed header, applying the
// extended-value offset when the final byte is zero.
func (d *decoder) headerValue(tag byte) (uint64, error) {
	n := headerLenBytes(tag)
	p, err := d.take(n)
	if err != nil {
		return 0, err
	}
	var hv uint64
	for i, c := range p {
		hv |= uint64(c) << (8 * i)
	}
	if n >= 2 && p[n-1] == 0 {
		hv += extendedOffsets[n]
	}
	return hv, nil
}

// economy mirrors the encoder's registration rule: a non-table value
// joins the reference table only when its encoding cost more bytes than
// a reference to it would.
func (d *decoder) economy(start int, v Value) {
	cost, ok := refCost(len(d.entries))
	if !ok || d.i-start <= cost {
		return
	}
	d.entries = append(d.entries, v)
}
