package vex

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func FuzzMarshalRoundTrip(f *testing.F) {
	seeds := [][]byte{
		{0x00},
		{0x01, 0x01},
		{0x02, 0x2A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xF0, 0x3F},
		{0x04, 'h', 'i'},
		{0x05, 0xFF, 0x00, 0x7F},
	}
	for _, seed := range seeds {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) == 0 {
			return
		}
		v := valueFromFuzzBytes(data)
		enc, _, err := Marshal(v, nil)
		if err != nil {
			t.Fatalf("marshal %#v: %v", v, err)
		}
		dec, err := Unmarshal(enc, nil)
		if err != nil {
			t.Fatalf("unmarshal % X: %v", enc, err)
		}
		if !Equal(v, dec) && !numEqual(v, dec) {
			t.Fatalf("roundtrip mismatch: %#v != %#v", dec, v)
		}

		// The transport leg must be lossless regardless of content.
		s := EncodeR85(enc)
		back, err := DecodeR85(s)
		if err != nil {
			t.Fatalf("transport decode: %v", err)
		}
		if !bytes.Equal(back, enc) {
			t.Fatalf("transport roundtrip mismatch")
		}
	})
}

func FuzzUnmarshal(f *testing.F) {
	seeds := [][]byte{
		{0x47},
		{0x08, 0x03, 0x1E, 0x1F, 0x20},
		{0x04, 0x01, 0x0C, 0x04, 's', 'e', 'l', 'f', 0x1D},
		{0x0C, 0x03, 'a', 'b', 'c'},
		{0x13, 0xFF, 0xFF, 0xFF, 0x00},
	}
	for _, seed := range seeds {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		v, err := Unmarshal(data, nil)
		if err != nil {
			return
		}
		// Whatever decoded must re-encode cleanly.
		if _, _, err := Marshal(v, nil); err != nil {
			t.Fatalf("re-marshal of decoded value failed: %v", err)
		}
	})
}

func FuzzR85RoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x00})
	f.Add([]byte("hello world"))
	f.Add(bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 9))
	f.Fuzz(func(t *testing.T, data []byte) {
		s := EncodeR85(data)
		got, err := DecodeR85(s)
		if err != nil {
			t.Fatalf("decode of own encoding: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("roundtrip mismatch for % X", data)
		}
	})
}

func FuzzDecodeR85(f *testing.F) {
	f.Add("@?")
	f.Add("#0")
	f.Add("}00000,")
	f.Add("not valid \x00 input")
	f.Fuzz(func(t *testing.T, s string) {
		b, err := DecodeR85(s)
		if err != nil {
			return
		}
		// Valid input re-encodes to something that decodes to the same
		// bytes (symbol choice may differ, content may not).
		back, err := DecodeR85(EncodeR85(b))
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if !bytes.Equal(back, b) {
			t.Fatal("re-encode changed content")
		}
	})
}

func FuzzCipherRoundTrip(f *testing.F) {
	f.Add([]byte("hello"), []byte("k"))
	f.Add([]byte{}, []byte{0x01})
	f.Add([]byte{0xFF}, []byte("longer key"))
	f.Fuzz(func(t *testing.T, data, key []byte) {
		if len(key) == 0 || len(key) > 64 || len(data) > 1<<16 {
			return
		}
		cipher, err := Encrypt(data, key)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		plain, err := Decrypt(cipher, key)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if !bytes.Equal(plain, data) {
			t.Fatal("cipher roundtrip mismatch")
		}
	})
}

// valueFromFuzzBytes derives a scalar or small table from fuzz input.
func valueFromFuzzBytes(data []byte) Value {
	kind := data[0] & 0x7
	payload := data[1:]
	switch kind {
	case 0:
		return BoolValue(len(payload) > 0 && payload[0]&1 == 1)
	case 1:
		n := int64(readUint64(payload) % (2 * MaxHeaderValue))
		return Int(n - MaxHeaderValue)
	case 2:
		return Int(int64(readUint64(payload)))
	case 3:
		return Float64(math.Float64frombits(readUint64(payload)))
	case 4:
		return Bin(payload)
	case 5:
		return Float32(math.Float32frombits(uint32(readUint64(payload))))
	case 6:
		t := NewTable()
		for i := 0; i+1 < len(payload); i += 2 {
			t.Set(Int(int64(payload[i])+1), Int(int64(payload[i+1])))
		}
		return TableValue(t)
	default:
		t := NewTable()
		for i := 0; i+3 < len(payload); i += 4 {
			t.Set(Bin(payload[i:i+2]), Bin(payload[i+2:i+4]))
		}
		return TableValue(t)
	}
}

func readUint64(b []byte) uint64 {
	var tmp [8]byte
	copy(tmp[:], b)
	return binary.LittleEndian.Uint64(tmp[:])
}
