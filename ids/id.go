package ids

import (
	"encoding/binary"
	"errors"
)

/*
Guid is a 64-bit globally unique identifier that contains:
  - the originating client id (20 bits),
  - the delta sequence number within that client (32 bits), and
  - the allocation sequence number within that delta (12 bits).

0...............16..............32..............48.............64
+-------+-------+-------+-------+-------+-------+-------+-------
|..client.(20).....|.......client.delta.(32.bits).|.within.(12)|

The triple is unique by construction: every client numbers its own
deltas, and every delta numbers its own allocations. No coordination
is needed, online or offline.
*/
type Guid uint64

// DeltaId identifies one delta instance: a Guid with a zero within
// part. It correlates a locally applied delta with its later server
// confirmation.
type DeltaId uint64

// ClientId is the stable per-client identity, assigned once per
// client session or install.
type ClientId uint32

// ClientDeltaId numbers the deltas a client originates, starting at 0.
type ClientDeltaId uint32

// WithinDeltaId numbers the identifiers allocated during one delta's
// interpretation, starting at 0.
type WithinDeltaId uint16

const WithinBits = 12
const DeltaBits = 32
const ClientBits = 20
const deltaWithinBits = DeltaBits + WithinBits

const WithinMask = uint64(1<<WithinBits) - 1
const deltaWithinMask = uint64(1<<deltaWithinBits) - 1

const MaxClient = ClientId(1<<ClientBits) - 1
const MaxWithin = WithinDeltaId(1<<WithinBits) - 1

var ErrBadGuid = errors.New("treesync: not a valid guid")
var ErrBadDeltaId = errors.New("treesync: not a valid delta id")

// MakeGuid packs the triple, truncating client and within to their
// field widths.
func MakeGuid(client ClientId, delta ClientDeltaId, within WithinDeltaId) Guid {
	ret := uint64(client) & uint64(MaxClient)
	ret <<= DeltaBits
	ret |= uint64(delta)
	ret <<= WithinBits
	ret |= uint64(within) & WithinMask
	return Guid(ret)
}

func MakeDeltaId(client ClientId, delta ClientDeltaId) DeltaId {
	return DeltaId(MakeGuid(client, delta, 0))
}

func (g Guid) Client() ClientId {
	return ClientId(uint64(g) >> deltaWithinBits)
}

func (g Guid) Delta() ClientDeltaId {
	return ClientDeltaId((uint64(g) & deltaWithinMask) >> WithinBits)
}

func (g Guid) Within() WithinDeltaId {
	return WithinDeltaId(uint64(g) & WithinMask)
}

// DeltaId is the delta this guid was allocated in.
func (g Guid) DeltaId() DeltaId {
	return DeltaId(uint64(g) & ^WithinMask)
}

func (g Guid) Less(other Guid) bool {
	return g < other
}

func (d DeltaId) Client() ClientId {
	return Guid(d).Client()
}

func (d DeltaId) Delta() ClientDeltaId {
	return Guid(d).Delta()
}

// Fresh allocates the n-th guid of this delta.
func (d DeltaId) Fresh(within WithinDeltaId) Guid {
	return Guid(uint64(d) | uint64(within)&WithinMask)
}

func (d DeltaId) Less(other DeltaId) bool {
	return d < other
}

const hexDigits = "0123456789abcdef"

const GuidStrLen = 5 + 1 + 8 + 1 + 3
const DeltaIdStrLen = 5 + 1 + 8

func appendHex(ret []byte, u uint64, width int) []byte {
	for i := width - 1; i >= 0; i-- {
		ret = append(ret, hexDigits[(u>>(4*i))&0xf])
	}
	return ret
}

// String is the canonical fixed-width encoding, ccccc-dddddddd-www.
func (g Guid) String() string {
	var buf [GuidStrLen]byte
	b := buf[:0]
	b = appendHex(b, uint64(g.Client()), 5)
	b = append(b, '-')
	b = appendHex(b, uint64(g.Delta()), 8)
	b = append(b, '-')
	b = appendHex(b, uint64(g.Within()), 3)
	return string(b)
}

// String is the canonical fixed-width encoding, ccccc-dddddddd.
func (d DeltaId) String() string {
	var buf [DeltaIdStrLen]byte
	b := buf[:0]
	b = appendHex(b, uint64(d.Client()), 5)
	b = append(b, '-')
	b = appendHex(b, uint64(d.Delta()), 8)
	return string(b)
}

func parseHex(str string) (num uint64, ok bool) {
	for i := 0; i < len(str); i++ {
		c := str[i]
		if c >= '0' && c <= '9' {
			num = (num << 4) | uint64(c-'0')
		} else if c >= 'a' && c <= 'f' {
			num = (num << 4) | uint64(10+c-'a')
		} else if c >= 'A' && c <= 'F' {
			num = (num << 4) | uint64(10+c-'A')
		} else {
			return 0, false
		}
	}
	return num, true
}

// ParseGuid is the exact inverse of Guid.String.
func ParseGuid(str string) (Guid, error) {
	if len(str) != GuidStrLen || str[5] != '-' || str[14] != '-' {
		return 0, ErrBadGuid
	}
	client, ok1 := parseHex(str[0:5])
	delta, ok2 := parseHex(str[6:14])
	within, ok3 := parseHex(str[15:18])
	if !ok1 || !ok2 || !ok3 {
		return 0, ErrBadGuid
	}
	return MakeGuid(ClientId(client), ClientDeltaId(delta), WithinDeltaId(within)), nil
}

// ParseDeltaId is the exact inverse of DeltaId.String.
func ParseDeltaId(str string) (DeltaId, error) {
	if len(str) != DeltaIdStrLen || str[5] != '-' {
		return 0, ErrBadDeltaId
	}
	client, ok1 := parseHex(str[0:5])
	delta, ok2 := parseHex(str[6:14])
	if !ok1 || !ok2 {
		return 0, ErrBadDeltaId
	}
	return MakeDeltaId(ClientId(client), ClientDeltaId(delta)), nil
}

func (g Guid) Bytes() []byte {
	var ret [8]byte
	binary.BigEndian.PutUint64(ret[:], uint64(g))
	return ret[:]
}

func GuidFromBytes(by []byte) Guid {
	return Guid(binary.BigEndian.Uint64(by))
}

// ZipBytes is the variable-length wire form, a zipped
// (client, delta<<12|within) pair.
func (g Guid) ZipBytes() []byte {
	return ZipUint64Pair(uint64(g.Client()), uint64(g)&deltaWithinMask)
}

func GuidFromZipBytes(zip []byte) Guid {
	client, rest := UnzipUint64Pair(zip)
	return Guid(client<<deltaWithinBits | rest)
}

func (d DeltaId) ZipBytes() []byte {
	return Guid(d).ZipBytes()
}

func DeltaIdFromZipBytes(zip []byte) DeltaId {
	return Guid(GuidFromZipBytes(zip)).DeltaId()
}

// ModelId is a content-derived fingerprint of a model value. It is
// used purely to detect drift between client and server, never to
// merge. The zero value is the id of "no model known".
type ModelId uint64

const ModelIdStrLen = 16

var ErrBadModelId = errors.New("treesync: not a valid model id")

func (m ModelId) String() string {
	var buf [ModelIdStrLen]byte
	return string(appendHex(buf[:0], uint64(m), 16))
}

// ParseModelId is the exact inverse of ModelId.String.
func ParseModelId(str string) (ModelId, error) {
	if len(str) != ModelIdStrLen {
		return 0, ErrBadModelId
	}
	num, ok := parseHex(str)
	if !ok {
		return 0, ErrBadModelId
	}
	return ModelId(num), nil
}

func (m ModelId) ZipBytes() []byte {
	return ZipUint64(uint64(m))
}

func ModelIdFromZipBytes(zip []byte) ModelId {
	return ModelId(UnzipUint64(zip))
}
