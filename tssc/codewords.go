package tssc

// code is one of the 32 symbols PointMetadata's adaptive table assigns a
// variable-length prefix to. Every measurement field (point ID delta,
// timestamp delta, state flags, value) is encoded as one of these codes
// followed by whatever payload bits that code implies.
type code byte

const (
	codeEndOfStream code = 0

	codePointIDXor4  code = 1
	codePointIDXor8  code = 2
	codePointIDXor12 code = 3
	codePointIDXor16 code = 4
	codePointIDXor20 code = 5
	codePointIDXor24 code = 6
	codePointIDXor32 code = 7

	codeTimeDelta1Forward code = 8
	codeTimeDelta2Forward code = 9
	codeTimeDelta3Forward code = 10
	codeTimeDelta4Forward code = 11
	codeTimeDelta1Reverse code = 12
	codeTimeDelta2Reverse code = 13
	codeTimeDelta3Reverse code = 14
	codeTimeDelta4Reverse code = 15
	codeTimestamp2        code = 16
	codeTimeXor7Bit       code = 17

	codeStateFlags2      code = 18
	codeStateFlags7Bit32 code = 19

	codeValue1     code = 20
	codeValue2     code = 21
	codeValue3     code = 22
	codeValueZero  code = 23
	codeValueXor8  code = 24
	codeValueXor16 code = 25
	codeValueXor24 code = 26
	codeValueXor32 code = 27
	codeValueXor40 code = 28
	codeValueXor48 code = 29
	codeValueXor56 code = 30
	codeValueXor64 code = 31
)

// pointIDXorWidths maps a PointIDXor code to the number of payload bits
// that follow it.
var pointIDXorWidths = map[code]int{
	codePointIDXor4:  4,
	codePointIDXor8:  8,
	codePointIDXor12: 12,
	codePointIDXor16: 16,
	codePointIDXor20: 20,
	codePointIDXor24: 24,
	codePointIDXor32: 32,
}

// pointIDXorCodes is pointIDXorWidths' keys, ordered smallest width first.
var pointIDXorCodes = []code{
	codePointIDXor4, codePointIDXor8, codePointIDXor12, codePointIDXor16,
	codePointIDXor20, codePointIDXor24, codePointIDXor32,
}

// valueXorWidths maps a ValueXor code to the number of payload bits that
// follow it. Eight levels span a full float64 XOR.
var valueXorWidths = map[code]int{
	codeValueXor8:  8,
	codeValueXor16: 16,
	codeValueXor24: 24,
	codeValueXor32: 32,
	codeValueXor40: 40,
	codeValueXor48: 48,
	codeValueXor56: 56,
	codeValueXor64: 64,
}

var valueXorCodes = []code{
	codeValueXor8, codeValueXor16, codeValueXor24, codeValueXor32,
	codeValueXor40, codeValueXor48, codeValueXor56, codeValueXor64,
}

func widthFor(xor uint64, widths []code, table map[code]int) code {
	for _, c := range widths {
		if bits := table[c]; xor>>uint(bits) == 0 {
			return c
		}
	}
	return widths[len(widths)-1]
}
