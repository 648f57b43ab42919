package vex

import (
	"fmt"
	"math"
	"sort"

	"github.com/delaneyj/toolbelt/bytebufferpool"
)

type encoder struct {
	buf  *bytebufferpool.ByteBuffer
	refs map[any]int
	n    int // next reference id; equals the decoder's len(entries)

	omitUnsupported bool
	omitted         int
}

func newEncoder(opts *EncodeOptions) *encoder {
	e := &encoder{
		buf:  bytebufferpool.Get(),
		refs: make(map[any]int),
	}
	if opts == nil {
		return e
	}
	e.omitUnsupported = opts.OmitUnsupported
	for i, ext := range opts.Externals {
		if ext.Type == TypeNil {
			continue // placeholder slot
		}
		k, err := identityKey(ext)
		if err != nil {
			continue
		}
		if _, dup := e.refs[k]; !dup {
			e.refs[k] = i
		}
	}
	e.n = opts.externalCount()
	return e
}

func (e *encoder) release() {
	bytebufferpool.Put(e.buf)
	e.buf = nil
}

func (e *encoder) encodeValue(v Value, root bool) error {
	switch v.Type {
	case TypeBool:
		if v.Bool {
			e.buf.WriteByte(TagTrue)
		} else {
			e.buf.WriteByte(TagFalse)
		}
		return nil
	case TypeInt:
		return e.encodeInt(v.I64)
	case TypeF32, TypeF64:
		return e.encodeNumber(v.F64)
	case TypeStr:
		return e.encodeString(v.Bytes)
	case TypeTable:
		if v.Table == nil {
			return fmt.Errorf("%w: nil table", ErrBadArgument)
		}
		if id, ok := e.refs[v.Table]; ok {
			return e.writeRef(id)
		}
		return e.encodeTable(v.Table)
	case TypeOpaque:
		if id, ok := e.refs[opaqueKey{v.Opaque}]; ok {
			return e.writeRef(id)
		}
		if root && e.omitUnsupported {
			e.omitted++
			return nil
		}
		return fmt.Errorf("%w: opaque value %T not in externals", ErrUnsupportedType, v.Opaque)
	case TypeNil:
		return fmt.Errorf("%w: nested nil", ErrUnsupportedType)
	default:
		return fmt.Errorf("%w: value type %d", ErrUnsupportedType, v.Type)
	}
}

func (e *encoder) encodeInt(v int64) error {
	if v > MaxHeaderValue || v < -MaxHeaderValue {
		// Out-of-range integers degrade to the float encodings.
		return e.encodeNumber(float64(v))
	}
	if id, ok := e.refs[intKey{v}]; ok {
		return e.writeRef(id)
	}
	// Small non-negative integers share the inline tag range with
	// references; usable only while the matching id is unassigned.
	if v >= 0 && v <= inlineMax && int(v) >= e.n {
		e.buf.WriteByte(byte(v) + inlineBias)
		return nil
	}
	tid := TypeIDInt
	u := uint64(v)
	if v < 0 {
		tid = TypeIDNegInt
		u = uint64(-v)
	}
	start := e.buf.Len()
	if err := e.writeHeader(tid, u); err != nil {
		return err
	}
	e.maybeRegister(intKey{v}, e.buf.Len()-start)
	return nil
}

func (e *encoder) encodeNumber(f float64) error {
	if math.IsNaN(f) {
		e.buf.WriteByte(TagNaN)
		return nil
	}
	negZero := f == 0 && math.Signbit(f)
	if f == math.Trunc(f) && !negZero && f >= -MaxHeaderValue && f <= MaxHeaderValue {
		return e.encodeInt(int64(f))
	}
	k := floatKey{math.Float64bits(f)}
	if id, ok := e.refs[k]; ok {
		return e.writeRef(id)
	}
	if f32 := float32(f); float64(f32) == f {
		e.buf.WriteByte(TagF32)
		bits := math.Float32bits(float32(f))
		e.buf.Write([]byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)})
		e.maybeRegister(k, 5)
		return nil
	}
	e.buf.WriteByte(TagF64)
	bits := math.Float64bits(f)
	var tmp [8]byte
	for i := range tmp {
		tmp[i] = byte(bits >> (8 * i))
	}
	e.buf.Write(tmp[:])
	e.maybeRegister(k, 9)
	return nil
}

func (e *encoder) encodeString(b []byte) error {
	k := strKey{string(b)}
	if id, ok := e.refs[k]; ok {
		return e.writeRef(id)
	}
	start := e.buf.Len()
	if err := e.writeHeader(TypeIDString, uint64(len(b))); err != nil {
		return err
	}
	e.buf.Write(b)
	e.maybeRegister(k, e.buf.Len()-start)
	return nil
}

func (e *encoder) encodeTable(t *Table) error {
	// Register before descent so cycles resolve to this id.
	e.refs[t] = e.n
	e.n++

	isArray := t.isArray()
	kept := getEntryScratch(len(t.entries))
	defer func() { putEntryScratch(kept) }()
	for _, entry := range t.entries {
		if !e.supported(entry.Key) || !e.supported(entry.Value) {
			if !e.omitUnsupported {
				return fmt.Errorf("%w: table entry", ErrUnsupportedType)
			}
			if isArray {
				e.omitted++
			} else {
				e.omitted += 2
			}
			continue
		}
		kept = append(kept, entry)
	}

	if isArray {
		sort.Slice(kept, func(i, j int) bool { return kept[i].Key.I64 < kept[j].Key.I64 })
		if err := e.writeHeader(TypeIDArray, uint64(len(kept))); err != nil {
			return err
		}
		for _, entry := range kept {
			if err := e.encodeValue(entry.Value, false); err != nil {
				return err
			}
		}
		return nil
	}

	if err := e.writeHeader(TypeIDMap, uint64(len(kept))); err != nil {
		return err
	}
	for _, entry := range kept {
		if err := e.encodeValue(entry.Key, false); err != nil {
			return err
		}
		if err := e.encodeValue(entry.Value, false); err != nil {
			return err
		}
	}
	return nil
}

// supported reports whether v has an encoding in the current call:
// opaques only when pre-registered through the external-values channel.
func (e *encoder) supported(v Value) bool {
	switch v.Type {
	case TypeOpaque:
		_, ok := e.refs[opaqueKey{v.Opaque}]
		return ok
	case TypeNil:
		return false
	default:
		return true
	}
}

func (e *encoder) writeRef(id int) error {
	if id <= inlineMax {
		e.buf.WriteByte(byte(id) + inlineBias)
		return nil
	}
	return e.writeHeader(TypeIDRef, uint64(id)-refHeaderBias)
}

// maybeRegister assigns the next reference id to the value behind k when
// re-encoding it cost more bytes than a reference to it would. The
// decoder applies the identical rule, keeping id assignment in lockstep.
func (e *encoder) maybeRegister(k any, consumed int) {
	cost, ok := refCost(e.n)
	if !ok || consumed <= cost {
		return
	}
	e.refs[k] = e.n
	e.n++
}

func (e *encoder) writeHeader(tid TypeID, v uint64) error {
	if v > MaxHeaderValue {
		return fmt.Errorf("%w: header value %d", ErrOutOfRange, v)
	}
	n, _ := headerLen(v)
	if n >= 2 && v >= extendedOffsets[n] {
		v -= extendedOffsets[n]
	}
	e.buf.WriteByte(byte(tid)<<2 | byte(n-1))
	for i := 0; i < n; i++ {
		e.buf.WriteByte(byte(v >> (8 * i)))
	}
	return nil
}
