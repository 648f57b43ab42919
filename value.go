package vex

import "math"

// ValueType discriminates the Value union.
type ValueType uint8

const (
	TypeNil ValueType = iota
	TypeBool
	TypeInt
	TypeF32
	TypeF64
	TypeStr
	TypeTable
	TypeOpaque
)

func (t ValueType) String() string {
	switch t {
	case TypeNil:
		return "nil"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	case TypeStr:
		return "str"
	case TypeTable:
		return "table"
	case TypeOpaque:
		return "opaque"
	default:
		return "invalid"
	}
}

// Value is a dynamically-typed codec value. F32 values are stored in F64
// (every float32 is exactly representable there). Opaque values carry
// host objects that cross the codec only through the external-values
// channel; they must be comparable.
type Value struct {
	Type   ValueType
	Bool   bool
	I64    int64
	F64    float64
	Bytes  []byte
	Table  *Table
	Opaque any
}

// NilValue returns the nil value.
func NilValue() Value { return Value{Type: TypeNil} }

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Type: TypeBool, Bool: b} }

// Int returns a signed integer value.
func Int(v int64) Value { return Value{Type: TypeInt, I64: v} }

// Float64 returns a double-precision value.
func Float64(v float64) Value { return Value{Type: TypeF64, F64: v} }

// Float32 returns a single-precision value.
func Float32(v float32) Value { return Value{Type: TypeF32, F64: float64(v)} }

// Str returns a string value holding a copy of s's bytes.
func Str(s string) Value { return Value{Type: TypeStr, Bytes: []byte(s)} }

// Bin returns a string value over raw bytes. The slice is not copied.
func Bin(b []byte) Value { return Value{Type: TypeStr, Bytes: b} }

// TableValue wraps a table.
func TableValue(t *Table) Value { return Value{Type: TypeTable, Table: t} }

// OpaqueValue wraps a host object for the external-values channel.
func OpaqueValue(o any) Value { return Value{Type: TypeOpaque, Opaque: o} }

// IsNil reports whether the value is nil.
func (v Value) IsNil() bool { return v.Type == TypeNil }

// Float reports the numeric content of an Int, F32 or F64 value.
func (v Value) Float() (float64, bool) {
	switch v.Type {
	case TypeInt:
		return float64(v.I64), true
	case TypeF32, TypeF64:
		return v.F64, true
	default:
		return 0, false
	}
}

// Equal reports structural equality. Tables compare by shape with cycle
// tolerance: positions already being compared are assumed equal. Floats
// compare by bit pattern, so a NaN equals a NaN with the same bits and
// -0 differs from +0.
// Numeric kinds are distinct: Int(1) does not equal Float64(1).
func Equal(a, b Value) bool {
	return equalValue(a, b, make(map[[2]*Table]bool))
}

func equalValue(a, b Value, seen map[[2]*Table]bool) bool {
	if a.Type != b.Type {
		return false
	}
	switch a.Type {
	case TypeNil:
		return true
	case TypeBool:
		return a.Bool == b.Bool
	case TypeInt:
		return a.I64 == b.I64
	case TypeF32, TypeF64:
		return math.Float64bits(a.F64) == math.Float64bits(b.F64)
	case TypeStr:
		return string(a.Bytes) == string(b.Bytes)
	case TypeTable:
		return equalTable(a.Table, b.Table, seen)
	case TypeOpaque:
		return a.Opaque == b.Opaque
	default:
		return false
	}
}

func equalTable(a, b *Table, seen map[[2]*Table]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Len() != b.Len() {
		return false
	}
	pair := [2]*Table{a, b}
	if seen[pair] {
		return true
	}
	seen[pair] = true
	for _, e := range a.entries {
		other, ok := b.Get(e.Key)
		if !ok || !equalValue(e.Value, other, seen) {
			return false
		}
	}
	return true
}
