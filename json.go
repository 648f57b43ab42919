package vex

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/minio/simdjson-go"
)

// FromJSON parses JSON and returns the corresponding value graph.
// Objects and arrays are parsed with simdjson-go; a top-level scalar goes
// through encoding/json. Strings prefixed "b64:" decode to raw bytes.
// Numbers written without a fraction or exponent become Int values when
// they fit in int64; all other numbers become Float64 values.
func FromJSON(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Value{}, fmt.Errorf("%w: json input is empty", ErrBadArgument)
	}
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return scalarValueFromJSON(trimmed)
	}
	parsed, err := simdjson.Parse(data, nil)
	if err != nil {
		return Value{}, err
	}
	it := parsed.Iter()
	if it.Advance() != simdjson.TypeRoot {
		return Value{}, fmt.Errorf("%w: json root not found", ErrBadArgument)
	}
	typ, root, err := it.Root(nil)
	if err != nil {
		return Value{}, err
	}
	return valueFromJSONIter(typ, root)
}

func scalarValueFromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Value{}, err
	}
	if _, err := dec.Token(); err == nil || err != io.EOF {
		return Value{}, fmt.Errorf("%w: invalid character after top-level value", ErrBadArgument)
	}
	switch val := v.(type) {
	case nil:
		return NilValue(), nil
	case bool:
		return BoolValue(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		if f, err := val.Float64(); err == nil {
			return Float64(f), nil
		}
		return Value{}, fmt.Errorf("%w: invalid json number %s", ErrBadArgument, val)
	case string:
		return stringValueFromJSON([]byte(val)), nil
	default:
		return Value{}, fmt.Errorf("%w: scalar json type %T", ErrBadArgument, v)
	}
}

func stringValueFromJSON(b []byte) Value {
	if len(b) >= 4 && string(b[:4]) == "b64:" {
		if decoded, err := base64.StdEncoding.DecodeString(string(b[4:])); err == nil {
			return Bin(decoded)
		}
	}
	return Bin(append([]byte{}, b...))
}

func valueFromJSONIter(typ simdjson.Type, it *simdjson.Iter) (Value, error) {
	switch typ {
	case simdjson.TypeNull:
		return NilValue(), nil
	case simdjson.TypeBool:
		v, err := it.Bool()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(v), nil
	case simdjson.TypeInt:
		v, err := it.Int()
		if err != nil {
			return Value{}, err
		}
		return Int(v), nil
	case simdjson.TypeUint:
		v, err := it.Uint()
		if err != nil {
			return Value{}, err
		}
		if v > math.MaxInt64 {
			return Float64(float64(v)), nil
		}
		return Int(int64(v)), nil
	case simdjson.TypeFloat:
		v, err := it.Float()
		if err != nil {
			return Value{}, err
		}
		return Float64(v), nil
	case simdjson.TypeString:
		b, err := it.StringBytes()
		if err != nil {
			return Value{}, err
		}
		return stringValueFromJSON(b), nil
	case simdjson.TypeObject:
		obj, err := it.Object(nil)
		if err != nil {
			return Value{}, err
		}
		t := NewTable()
		var walkErr error
		err = obj.ForEach(func(key []byte, elem simdjson.Iter) {
			if walkErr != nil {
				return
			}
			val, err := valueFromJSONIter(elem.Type(), &elem)
			if err != nil {
				walkErr = err
				return
			}
			if val.Type == TypeNil {
				return // tables do not hold nil values
			}
			walkErr = t.Set(Str(string(key)), val)
		}, nil)
		if err != nil {
			return Value{}, err
		}
		if walkErr != nil {
			return Value{}, walkErr
		}
		return TableValue(t), nil
	case simdjson.TypeArray:
		arr, err := it.Array(nil)
		if err != nil {
			return Value{}, err
		}
		t := NewTable()
		iter := arr.Iter()
		idx := int64(0)
		for {
			et := iter.Advance()
			if et == simdjson.TypeNone {
				break
			}
			elem := iter
			val, err := valueFromJSONIter(et, &elem)
			if err != nil {
				return Value{}, err
			}
			idx++
			if val.Type == TypeNil {
				continue
			}
			if err := t.Set(Int(idx), val); err != nil {
				return Value{}, err
			}
		}
		return TableValue(t), nil
	default:
		return Value{}, fmt.Errorf("%w: json type %v", ErrBadArgument, typ)
	}
}

// ToJSON renders a value graph as JSON. Array-shaped tables become
// arrays, other tables become objects keyed by each key's string form.
// Binary strings render with the "b64:" prefix; cyclic graphs and
// non-finite floats are rejected.
func ToJSON(v Value) (string, error) {
	var sb strings.Builder
	if err := writeJSONValue(&sb, v, make(map[*Table]bool)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func writeJSONValue(sb *strings.Builder, v Value, active map[*Table]bool) error {
	switch v.Type {
	case TypeNil:
		sb.WriteString("null")
	case TypeBool:
		if v.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case TypeInt:
		sb.WriteString(strconv.FormatInt(v.I64, 10))
	case TypeF32, TypeF64:
		if math.IsNaN(v.F64) || math.IsInf(v.F64, 0) {
			return fmt.Errorf("%w: non-finite number has no json form", ErrBadArgument)
		}
		sb.WriteString(strconv.FormatFloat(v.F64, 'g', -1, 64))
	case TypeStr:
		writeJSONStringBytes(sb, v.Bytes)
	case TypeTable:
		return writeJSONTable(sb, v.Table, active)
	default:
		return fmt.Errorf("%w: value type %s has no json form", ErrBadArgument, v.Type)
	}
	return nil
}

func writeJSONTable(sb *strings.Builder, t *Table, active map[*Table]bool) error {
	if t == nil {
		return fmt.Errorf("%w: nil table", ErrBadArgument)
	}
	if active[t] {
		return fmt.Errorf("%w: cyclic table has no json form", ErrBadArgument)
	}
	active[t] = true
	defer delete(active, t)

	if t.isArray() {
		vals := make([]Value, t.Len())
		for _, e := range t.Entries() {
			vals[e.Key.I64-1] = e.Value
		}
		sb.WriteByte('[')
		for i, val := range vals {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := writeJSONValue(sb, val, active); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
		return nil
	}

	sb.WriteByte('{')
	first := true
	for _, e := range t.Entries() {
		key, ok := e.Key.AsString()
		if !ok {
			return fmt.Errorf("%w: table key %s has no json form", ErrBadArgument, e.Key.Type)
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		writeJSONStringBytes(sb, []byte(key))
		sb.WriteByte(':')
		if err := writeJSONValue(sb, e.Value, active); err != nil {
			return err
		}
	}
	sb.WriteByte('}')
	return nil
}

func writeJSONStringBytes(sb *strings.Builder, b []byte) {
	if !utf8.Valid(b) {
		sb.WriteByte('"')
		sb.WriteString("b64:")
		sb.WriteString(base64.StdEncoding.EncodeToString(b))
		sb.WriteByte('"')
		return
	}
	sb.WriteByte('"')
	for _, c := range b {
		switch c {
		case '"', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\b':
			sb.WriteString(`\b`)
		case '\f':
			sb.WriteString(`\f`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if c < 0x20 {
				sb.WriteString(`\u00`)
				sb.WriteByte(hexDigit(c >> 4))
				sb.WriteByte(hexDigit(c & 0xF))
			} else {
				sb.WriteByte(c)
			}
		}
	}
	sb.WriteByte('"')
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + (n - 10)
}
