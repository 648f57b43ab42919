package vex

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/flate"
)

// benchSample mirrors a typical session payload: a handful of scalar
// fields, a dense array, and a nested table with repeated strings.
func benchSample() Value {
	root := NewTable()
	root.Set(Str("id"), Int(481236))
	root.Set(Str("name"), Str("orbital-relay"))
	root.Set(Str("healthy"), BoolValue(true))
	root.Set(Str("load"), Float64(0.8125))

	points := NewTable()
	for i := int64(1); i <= 64; i++ {
		points.Set(Int(i), Int(i*3%97))
	}
	root.Set(Str("points"), TableValue(points))

	status := Str("status")
	nested := NewTable()
	for i := int64(1); i <= 8; i++ {
		row := NewTable()
		row.Set(status, Str("ok"))
		row.Set(Str("seq"), Int(i))
		nested.Set(Int(i), TableValue(row))
	}
	root.Set(Str("rows"), TableValue(nested))
	return TableValue(root)
}

func benchSampleAny() any {
	points := make([]any, 64)
	for i := range points {
		points[i] = int64((int64(i)+1)*3) % 97
	}
	rows := make([]any, 8)
	for i := range rows {
		rows[i] = map[string]any{"status": "ok", "seq": int64(i + 1)}
	}
	return map[string]any{
		"id":      int64(481236),
		"name":    "orbital-relay",
		"healthy": true,
		"load":    0.8125,
		"points":  points,
		"rows":    rows,
	}
}

func BenchmarkMarshal(b *testing.B) {
	v := benchSample()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := Marshal(v, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkUnmarshal(b *testing.B) {
	enc, _, err := Marshal(benchSample(), nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Unmarshal(enc, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeToString(b *testing.B) {
	v := benchSample()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, _, err := EncodeToString(v, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeString(b *testing.B) {
	s, _, err := EncodeToString(benchSample(), nil)
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeString(s, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCBORMarshal(b *testing.B) {
	obj := benchSampleAny()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := cbor.Marshal(obj); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCBORUnmarshal(b *testing.B) {
	enc, err := cbor.Marshal(benchSampleAny())
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var out any
		if err := cbor.Unmarshal(enc, &out); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncryptDecrypt(b *testing.B) {
	enc, _, err := Marshal(benchSample(), nil)
	if err != nil {
		b.Fatal(err)
	}
	key := []byte("sesame")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		cipher, err := Encrypt(enc, key)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := Decrypt(cipher, key); err != nil {
			b.Fatal(err)
		}
	}
}

// Repetitive payload where the transport's block dictionary earns its
// keep; flate over the same bytes is the baseline.
func benchRepetitive() []byte {
	return bytes.Repeat([]byte{0x10, 0x20, 0x30, 0x40, 0xAA, 0xBB, 0xCC, 0xDD}, 512)
}

func BenchmarkR85Encode(b *testing.B) {
	in := benchRepetitive()
	b.SetBytes(int64(len(in)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		EncodeR85(in)
	}
}

func BenchmarkR85Decode(b *testing.B) {
	s := EncodeR85(benchRepetitive())
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeR85(s); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFlateBaseline(b *testing.B) {
	in := benchRepetitive()
	b.SetBytes(int64(len(in)))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := w.Write(in); err != nil {
			b.Fatal(err)
		}
		if err := w.Close(); err != nil {
			b.Fatal(err)
		}
	}
}

func TestTransportDictionaryBeatsPlainBlocks(t *testing.T) {
	in := benchRepetitive()
	s := EncodeR85(in)
	// Two distinct blocks alternate 512 times each; with both in the
	// dictionary the body is one byte per block.
	plain := 1 + (len(in)/4)*5
	if len(s) >= plain {
		t.Fatalf("dictionary saved nothing: %d vs %d", len(s), plain)
	}
}
