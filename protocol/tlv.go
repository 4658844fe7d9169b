// Record format is based on ToyTLV (MIT licence) written by Victor Grishchenko in 2024
// Original project: https://github.com/learn-decentralized-systems/toytlv

/*
Package protocol frames synchronization messages as compact TLV
(type-length-value) records.

Record types are uppercase letters. Three header formats are selected
by body size: tiny (1 byte, bodies 0-9, type collapses to '0'), short
(2 bytes, lowercase type + 1-byte length) and long (5 bytes, uppercase
type + 4-byte little-endian length). Passing a lowercase type enables
the tiny format for small bodies; an uppercase type forces an explicit
header.

The delta payload format inside update records is not fixed here: a
Codec supplied per concrete model reads and writes delta and model
bodies, so the shape of a delta stays a concern of the model layer.
*/
package protocol

import (
	"encoding/binary"
	"errors"
)

const caseBit byte = 'a' - 'A'

var (
	ErrIncomplete = errors.New("treesync: incomplete record")
	ErrBadRecord  = errors.New("treesync: bad TLV record")
)

// ProbeHeader reads a record header. lit is the canonical type
// ('A'-'Z', '0' for tiny, '-' for garbage, 0 for incomplete input).
func ProbeHeader(data []byte) (lit byte, hdrlen, bodylen int) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	first := data[0]
	switch {
	case first >= '0' && first <= '9': // tiny
		return '0', 1, int(first - '0')
	case first >= 'a' && first <= 'z': // short
		if len(data) < 2 {
			return 0, 0, 0
		}
		return first - caseBit, 2, int(data[1])
	case first >= 'A' && first <= 'Z': // long
		if len(data) < 5 {
			return 0, 0, 0
		}
		bl := binary.LittleEndian.Uint32(data[1:5])
		if bl > 0x7fffffff {
			return '-', 0, 0
		}
		return first, 5, int(bl)
	default:
		return '-', 0, 0
	}
}

// AppendHeader appends a record header, picking the shortest format
// the type case allows.
func AppendHeader(into []byte, lit byte, bodylen int) []byte {
	biglit := lit &^ caseBit
	if biglit < 'A' || biglit > 'Z' {
		panic("treesync: TLV record types are A..Z")
	}
	if bodylen < 10 && (lit&caseBit) != 0 {
		return append(into, byte('0'+bodylen))
	}
	if bodylen > 0xff {
		if bodylen > 0x7fffffff {
			panic("treesync: oversized TLV record")
		}
		into = append(into, biglit)
		return binary.LittleEndian.AppendUint32(into, uint32(bodylen))
	}
	return append(into, lit|caseBit, byte(bodylen))
}

// Append appends a whole record.
func Append(into []byte, lit byte, body ...[]byte) []byte {
	total := 0
	for _, b := range body {
		total += len(b)
	}
	into = AppendHeader(into, lit, total)
	for _, b := range body {
		into = append(into, b...)
	}
	return into
}

// Record builds a whole record.
func Record(lit byte, body ...[]byte) []byte {
	return Append(make([]byte, 0, 5), lit, body...)
}

// Take splits off one record of the given type. Returns a nil body
// when the type differs or the data is bad; returns the input
// untouched as rest when it is merely incomplete.
func Take(lit byte, data []byte) (body, rest []byte) {
	flit, hdrlen, bodylen := ProbeHeader(data)
	if flit == 0 || hdrlen+bodylen > len(data) {
		return nil, data
	}
	if flit != lit && flit != '0' {
		return nil, nil
	}
	return data[hdrlen : hdrlen+bodylen], data[hdrlen+bodylen:]
}

// TakeAny splits off one record of whatever type comes first.
func TakeAny(data []byte) (lit byte, body, rest []byte) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	lit = data[0] &^ caseBit
	body, rest = Take(lit, data)
	return
}

// TakeWary is Take for untrusted input, with explicit errors.
func TakeWary(lit byte, data []byte) (body, rest []byte, err error) {
	flit, hdrlen, bodylen := ProbeHeader(data)
	if flit == 0 || hdrlen+bodylen > len(data) {
		return nil, data, ErrIncomplete
	}
	if flit != lit && flit != '0' {
		return nil, nil, ErrBadRecord
	}
	return data[hdrlen : hdrlen+bodylen], data[hdrlen+bodylen:], nil
}
