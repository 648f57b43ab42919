package vex

import (
	"fmt"
	"math"
)

// TableEntry is one key/value pair of a table.
type TableEntry struct {
	Key   Value
	Value Value
}

// Table is a heterogeneous key->value container with pointer identity
// and insertion-ordered iteration. Integral float keys canonicalize to
// integer keys, so Set(Float64(2), v) and Get(Int(2)) agree. Tables may
// be shared and may contain cycles.
type Table struct {
	entries []TableEntry
	index   map[any]int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{index: make(map[any]int)}
}

// NewArray returns a table holding vals at keys 1..len(vals).
func NewArray(vals ...Value) *Table {
	t := NewTable()
	for i, v := range vals {
		t.Set(Int(int64(i+1)), v)
	}
	return t
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns the live entry slice in insertion order. Callers must
// not modify it.
func (t *Table) Entries() []TableEntry { return t.entries }

// Set stores v under k. A nil value deletes the key; nil and NaN keys
// are rejected.
func (t *Table) Set(k, v Value) error {
	ik, err := identityKey(canonicalKey(k))
	if err != nil {
		return err
	}
	if v.Type == TypeNil {
		t.deleteKey(ik)
		return nil
	}
	if i, ok := t.index[ik]; ok {
		t.entries[i].Value = v
		return nil
	}
	if t.index == nil {
		t.index = make(map[any]int)
	}
	t.index[ik] = len(t.entries)
	t.entries = append(t.entries, TableEntry{Key: canonicalKey(k), Value: v})
	return nil
}

// Get returns the value stored under k.
func (t *Table) Get(k Value) (Value, bool) {
	ik, err := identityKey(canonicalKey(k))
	if err != nil {
		return Value{}, false
	}
	i, ok := t.index[ik]
	if !ok {
		return Value{}, false
	}
	return t.entries[i].Value, true
}

// Delete removes the entry stored under k.
func (t *Table) Delete(k Value) {
	ik, err := identityKey(canonicalKey(k))
	if err != nil {
		return
	}
	t.deleteKey(ik)
}

func (t *Table) deleteKey(ik any) {
	i, ok := t.index[ik]
	if !ok {
		return
	}
	delete(t.index, ik)
	copy(t.entries[i:], t.entries[i+1:])
	t.entries = t.entries[:len(t.entries)-1]
	for j := i; j < len(t.entries); j++ {
		jk, err := identityKey(t.entries[j].Key)
		if err == nil {
			t.index[jk] = j
		}
	}
}

// isArray reports whether the keys are exactly the integers 1..Len().
// Keys are unique by construction, so membership in [1, n] suffices.
func (t *Table) isArray() bool {
	n := int64(len(t.entries))
	for _, e := range t.entries {
		if e.Key.Type != TypeInt || e.Key.I64 < 1 || e.Key.I64 > n {
			return false
		}
	}
	return true
}

// canonicalKey folds integral float keys into integer keys.
func canonicalKey(k Value) Value {
	if k.Type != TypeF32 && k.Type != TypeF64 {
		return k
	}
	f := k.F64
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return k
	}
	if math.Signbit(f) && f == 0 {
		return k
	}
	if f < math.MinInt64 || f > math.MaxInt64 {
		return k
	}
	return Int(int64(f))
}

type intKey struct{ v int64 }
type floatKey struct{ bits uint64 }
type strKey struct{ s string }
type boolKey struct{ b bool }
type opaqueKey struct{ o any }

// identityKey maps a value to the comparable key under which the table
// index (and the encoder's reference table) identifies it: scalars and
// strings by content, tables by pointer, opaques by host identity.
func identityKey(v Value) (any, error) {
	switch v.Type {
	case TypeBool:
		return boolKey{v.Bool}, nil
	case TypeInt:
		return intKey{v.I64}, nil
	case TypeF32, TypeF64:
		if math.IsNaN(v.F64) {
			return nil, fmt.Errorf("%w: NaN table key", ErrBadArgument)
		}
		return floatKey{math.Float64bits(v.F64)}, nil
	case TypeStr:
		return strKey{string(v.Bytes)}, nil
	case TypeTable:
		if v.Table == nil {
			return nil, fmt.Errorf("%w: nil table", ErrBadArgument)
		}
		return v.Table, nil
	case TypeOpaque:
		return opaqueKey{v.Opaque}, nil
	case TypeNil:
		return nil, fmt.Errorf("%w: nil table key", ErrBadArgument)
	default:
		return nil, fmt.Errorf("%w: invalid value type %d", ErrBadArgument, v.Type)
	}
}
