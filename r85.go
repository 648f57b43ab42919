package vex

import (
	"fmt"

	"github.com/delaneyj/toolbelt/bytebufferpool"
)

// r85Alphabet holds the 85 transport symbols in digit order.
const r85Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	".-:+=^!/*?&<>()[]{}@%$#"

// r85Compress holds the six dictionary symbols, in slot order. None of
// them appear in the alphabet.
var r85Compress = [6]byte{',', ';', '_', '`', '|', '~'}

const r85MaxDict = 6

// r85Digit maps a byte to its alphabet digit, -1 for non-alphabet
// bytes, or -2-slot for a compression symbol.
var r85Digit [256]int16

func init() {
	for i := range r85Digit {
		r85Digit[i] = -1
	}
	for i := 0; i < len(r85Alphabet); i++ {
		r85Digit[r85Alphabet[i]] = int16(i)
	}
	for slot, c := range r85Compress {
		r85Digit[c] = int16(-2 - slot)
	}
}

// EncodeR85 converts bytes to the printable transport form: a header
// digit, up to six 5-digit dictionary blocks, then one compression
// symbol or five digits per 32-bit input block. Empty input produces
// the empty string.
func EncodeR85(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	discard := (4 - len(b)%4) % 4
	nblocks := (len(b) + 3) / 4

	blocks := getBlockScratch(nblocks)
	defer func() { putBlockScratch(blocks) }()
	for i := 0; i < nblocks; i++ {
		var w uint32
		for j := 0; j < 4; j++ {
			if p := i*4 + j; p < len(b) {
				w |= uint32(b[p]) << (8 * j)
			}
		}
		blocks = append(blocks, w)
	}

	dict := buildR85Dict(blocks)
	slot := make(map[uint32]int, len(dict))
	for i, w := range dict {
		slot[w] = i
	}

	out := bytebufferpool.Get()
	defer bytebufferpool.Put(out)
	out.WriteByte(r85Alphabet[84-(discard+4*len(dict))])
	for _, w := range dict {
		writeR85Block(out, w)
	}
	for _, w := range blocks {
		if i, ok := slot[w]; ok {
			out.WriteByte(r85Compress[i])
		} else {
			writeR85Block(out, w)
		}
	}

	s := out.Bytes()
	for trimmed := 0; trimmed < 4 && len(s) > 0 && s[len(s)-1] == r85Alphabet[0]; trimmed++ {
		s = s[:len(s)-1]
	}
	return string(s)
}

func writeR85Block(out *bytebufferpool.ByteBuffer, w uint32) {
	v := uint64(w)
	for i := 0; i < 5; i++ {
		out.WriteByte(r85Alphabet[v%85])
		v /= 85
	}
}

// buildR85Dict selects up to six blocks worth a dictionary slot. A block
// qualifies once its running count exceeds the threshold; when a seventh
// qualifies, the current lowest-count holder is evicted and the
// threshold rises to the second-lowest count. Order is deterministic
// (first qualification wins a slot); decoders accept any order.
func buildR85Dict(blocks []uint32) []uint32 {
	type candidate struct {
		block uint32
		count int
	}
	counts := make(map[uint32]int)
	threshold := 1
	var common []candidate
	for _, w := range blocks {
		counts[w]++
		c := counts[w]
		held := false
		for i := range common {
			if common[i].block == w {
				common[i].count = c
				held = true
				break
			}
		}
		if held || c <= threshold {
			continue
		}
		common = append(common, candidate{w, c})
		if len(common) <= r85MaxDict {
			continue
		}
		low := 0
		for i := 1; i < len(common); i++ {
			if common[i].count < common[low].count {
				low = i
			}
		}
		second := -1
		for i := range common {
			if i == low {
				continue
			}
			if second == -1 || common[i].count < common[second].count {
				second = i
			}
		}
		threshold = common[second].count
		common = append(common[:low], common[low+1:]...)
	}
	out := make([]uint32, len(common))
	for i, c := range common {
		out[i] = c.block
	}
	return out
}

// DecodeR85 reverses EncodeR85. The empty string decodes to no bytes.
func DecodeR85(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, nil
	}
	hd := r85Digit[s[0]]
	if hd < 0 {
		return nil, fmt.Errorf("%w: header 0x%02X", ErrInvalidByte, s[0])
	}
	x := 84 - int(hd)
	discard := x % 4
	ndict := x / 4
	if ndict > r85MaxDict {
		return nil, fmt.Errorf("%w: %d compression blocks", ErrInvalidHeader, ndict)
	}

	i := 1
	var dict [r85MaxDict]uint32
	for slot := 0; slot < ndict; slot++ {
		w, n, err := readR85Block(s, i)
		if err != nil {
			return nil, err
		}
		if n < 5 {
			return nil, fmt.Errorf("%w: truncated dictionary block", ErrInvalidHeader)
		}
		dict[slot] = w
		i += n
	}

	out := bytebufferpool.Get()
	defer bytebufferpool.Put(out)
	for i < len(s) {
		d := r85Digit[s[i]]
		if d <= -2 {
			slot := int(-2 - d)
			if slot >= ndict {
				return nil, fmt.Errorf("%w: compression symbol 0x%02X without dictionary entry", ErrInvalidByte, s[i])
			}
			writeBlockBytes(out, dict[slot])
			i++
			continue
		}
		w, n, err := readR85Block(s, i)
		if err != nil {
			return nil, err
		}
		writeBlockBytes(out, w)
		i += n
	}

	b := out.Bytes()
	if len(b) < discard {
		return nil, fmt.Errorf("%w: %d bytes to discard from %d", ErrInvalidHeader, discard, len(b))
	}
	return append([]byte{}, b[:len(b)-discard]...), nil
}

// readR85Block reads up to five digits starting at i. Digits missing at
// the end of the string read as zero: the encoder trims up to four
// trailing zero digits. Callers that require a full block check the
// returned digit count.
func readR85Block(s string, i int) (uint32, int, error) {
	var w uint64
	mul := uint64(1)
	n := 0
	for ; n < 5 && i+n < len(s); n++ {
		d := r85Digit[s[i+n]]
		if d < 0 {
			return 0, 0, fmt.Errorf("%w: 0x%02X inside block", ErrInvalidByte, s[i+n])
		}
		w += uint64(d) * mul
		mul *= 85
	}
	if w > 0xFFFFFFFF {
		return 0, 0, fmt.Errorf("%w: block value overflow", ErrCorrupt)
	}
	return uint32(w), n, nil
}

func writeBlockBytes(out *bytebufferpool.ByteBuffer, w uint32) {
	out.Write([]byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)})
}
