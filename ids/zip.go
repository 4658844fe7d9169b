package ids

import "encoding/binary"

// Zip-coding: little-endian integers with trailing zero bytes dropped
// to one of the widths 0, 1, 2, 4, 8. Pairs pack the two widths into
// one string; the split is recovered from the total length alone.

func zipByteLen(n uint64) int {
	switch {
	case n == 0:
		return 0
	case n <= 0xff:
		return 1
	case n <= 0xffff:
		return 2
	case n <= 0xffffffff:
		return 4
	default:
		return 8
	}
}

func zipPut(into []byte, n uint64, width int) []byte {
	switch width {
	case 0:
	case 1:
		into = append(into, byte(n))
	case 2:
		into = binary.LittleEndian.AppendUint16(into, uint16(n))
	case 4:
		into = binary.LittleEndian.AppendUint32(into, uint32(n))
	default:
		into = binary.LittleEndian.AppendUint64(into, n)
	}
	return into
}

// zipGet tolerates any length up to 8, not just the canonical widths;
// decoders see untrusted transport bytes.
func zipGet(from []byte) (n uint64) {
	if len(from) > 8 {
		from = from[:8]
	}
	for i := len(from) - 1; i >= 0; i-- {
		n = n<<8 | uint64(from[i])
	}
	return
}

func ZipUint64(n uint64) []byte {
	return zipPut(nil, n, zipByteLen(n))
}

func UnzipUint64(zip []byte) uint64 {
	return zipGet(zip)
}

// widths per total pair length; every canonical width combo yields a
// distinct total, so the split is recoverable from the length alone
var pairSplit = [17][2]int{
	0:  {0, 0},
	1:  {1, 0},
	2:  {1, 1},
	3:  {2, 1},
	4:  {2, 2},
	5:  {4, 1},
	6:  {4, 2},
	8:  {4, 4},
	9:  {8, 1},
	10: {8, 2},
	12: {8, 4},
	16: {8, 8},
}

// ZipUint64Pair packs a pair of uint64 into one byte string.
// The smaller the ints, the shorter the string.
func ZipUint64Pair(big, lil uint64) []byte {
	bw, lw := zipByteLen(big), zipByteLen(lil)
	// canonicalize so the total length decodes unambiguously
	if bw < lw {
		bw = lw
	}
	if lw == 0 && bw > 1 {
		lw = 1
	}
	ret := make([]byte, 0, bw+lw)
	ret = zipPut(ret, big, bw)
	ret = zipPut(ret, lil, lw)
	return ret
}

// UnzipUint64Pair degrades to zeros on a non-canonical length rather
// than guessing a split.
func UnzipUint64Pair(zip []byte) (big, lil uint64) {
	if len(zip) > 16 {
		return 0, 0
	}
	split := pairSplit[len(zip)]
	if split[0]+split[1] != len(zip) {
		return 0, 0
	}
	big = zipGet(zip[:split[0]])
	lil = zipGet(zip[split[0]:])
	return
}

// ZipZagInt64 zig-zag codes a signed int so small absolute values
// stay short.
func ZipZagInt64(i int64) []byte {
	return ZipUint64(uint64(i<<1) ^ uint64(i>>63))
}

func UnzipZagInt64(zip []byte) int64 {
	z := UnzipUint64(zip)
	return int64(z>>1) ^ -int64(z&1)
}
