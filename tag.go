package vex

// TypeID is the type class in the high 6 bits of a typed header tag
// (0x00..0x17).
type TypeID uint8

const (
	TypeIDRef TypeID = iota
	TypeIDMap
	TypeIDArray
	TypeIDString
	TypeIDInt
	TypeIDNegInt
)

const (
	// Typed headers: type_id = tag >> 2, len_bytes = (tag & 3) + 1.
	tagTypedMax byte = 0x17

	TagF32   byte = 0x18 // followed by 4 little-endian IEEE-754 bytes
	TagF64   byte = 0x19 // followed by 8 little-endian IEEE-754 bytes
	TagTrue  byte = 0x1A
	TagFalse byte = 0x1B
	TagNaN   byte = 0x1C

	// 0x1D..0xFF carry an inline id in 0..226 (reference or small integer).
	tagInlineMin byte = 0x1D
)

const (
	inlineBias = 29  // inline id = tag - inlineBias
	inlineMax  = 226 // largest id expressible in a single tag byte

	// Typed reference headers carry id - refHeaderBias; ids below it use
	// the inline tag range.
	refHeaderBias = 227

	// MaxHeaderValue is the largest value a typed header can carry, and
	// with it the integer magnitude bound of the format.
	MaxHeaderValue = 0x100FFFFFF
)

// bytecountThresholds[n] is the largest header value encodable in n bytes.
// The headroom over 2^(8n)-1 comes from the extended-value trick: a zero
// final length byte adds extendedOffsets[n] on decode.
var bytecountThresholds = [5]uint64{0, 0xFF, 0x100FF, 0x100FFFF, 0x100FFFFFF}

var extendedOffsets = [5]uint64{0, 0, 0x10000, 0x1000000, 0x100000000}

func headerTypeID(tag byte) TypeID { return TypeID(tag >> 2) }

func headerLenBytes(tag byte) int { return int(tag&3) + 1 }

// headerLen returns the smallest byte count able to carry v.
func headerLen(v uint64) (int, bool) {
	for n := 1; n <= 4; n++ {
		if v <= bytecountThresholds[n] {
			return n, true
		}
	}
	return 0, false
}

// refCost returns the number of bytes a reference to id k occupies: one
// tag byte for inline ids, otherwise a typed header. Ids beyond the
// header range are unreferenceable and report ok=false.
func refCost(k int) (int, bool) {
	if k < 0 {
		return 0, false
	}
	if k <= inlineMax {
		return 1, true
	}
	n, ok := headerLen(uint64(k) - refHeaderBias)
	if !ok {
		return 0, false
	}
	return 1 + n, true
}
