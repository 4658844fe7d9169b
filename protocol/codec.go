package protocol

import (
	"errors"

	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/effect"
	"github.com/trepidacious/treesync/ids"
)

// Update packets:
//
//	F ( C client, M model-id, V model )            full update
//	U ( B base-id, (L|R)*, M updated-id )          incremental update
//	L ( I delta-id, T context )                    own-delta confirmation
//	R ( I delta-id, T context, V delta )           remote delta
//
// Ids and model ids travel zip-coded and round-trip exactly. Model and
// delta bodies ('V') are opaque here and owned by the Codec.

var (
	ErrBadFPacket = errors.New("treesync: bad F packet")
	ErrBadUPacket = errors.New("treesync: bad U packet")
	ErrBadLRecord = errors.New("treesync: bad L record")
	ErrBadRRecord = errors.New("treesync: bad R record")
)

// Codec reads and writes the model-specific bodies of update packets:
// whole model values and single deltas. Everything else about the wire
// format is fixed by this package.
type Codec[R any] interface {
	AppendModel(into []byte, model R) []byte
	TakeModel(body []byte) (R, error)
	AppendDelta(into []byte, delta treesync.Delta[R]) []byte
	TakeDelta(body []byte) (treesync.Delta[R], error)
}

func appendContext(into []byte, io effect.IOContext) []byte {
	return Append(into, 'T', ids.ZipZagInt64(io.UnixMilli))
}

func takeContext(data []byte) (io effect.IOContext, rest []byte, err error) {
	body, rest, err := TakeWary('T', data)
	if err != nil {
		return
	}
	io = effect.IOContext{UnixMilli: ids.UnzipZagInt64(body)}
	return
}

// AppendUpdate encodes a full or incremental update as one packet.
func AppendUpdate[R any](into []byte, c Codec[R], u treesync.Update[R]) []byte {
	switch v := u.(type) {
	case treesync.ModelFullUpdate[R]:
		body := Record('C', ids.ZipUint64(uint64(v.ForClient)))
		body = Append(body, 'M', v.Server.Id.ZipBytes())
		body = Append(body, 'V', c.AppendModel(nil, v.Server.Model))
		return Append(into, 'F', body)
	case treesync.ModelIncrementalUpdate[R]:
		body := Record('B', v.BaseId.ZipBytes())
		for _, entry := range v.Deltas {
			switch d := entry.(type) {
			case treesync.LocalDelta[R]:
				inner := Record('I', d.Id.ZipBytes())
				inner = appendContext(inner, d.IO)
				body = Append(body, 'L', inner)
			case treesync.RemoteDelta[R]:
				inner := Record('I', d.Id.ZipBytes())
				inner = appendContext(inner, d.IO)
				inner = Append(inner, 'V', c.AppendDelta(nil, d.Delta))
				body = Append(body, 'R', inner)
			}
		}
		body = Append(body, 'M', v.UpdatedId.ZipBytes())
		return Append(into, 'U', body)
	default:
		panic("treesync: update variant outside the sealed set")
	}
}

// ParseUpdate decodes one update packet, returning the remaining
// input.
func ParseUpdate[R any](c Codec[R], pack []byte) (u treesync.Update[R], rest []byte, err error) {
	lit, body, rest := TakeAny(pack)
	switch lit {
	case 'F':
		u, err = parseFull(c, body)
	case 'U':
		u, err = parseIncremental(c, body)
	default:
		err = ErrBadRecord
	}
	return
}

func parseFull[R any](c Codec[R], body []byte) (treesync.Update[R], error) {
	cbody, body, err := TakeWary('C', body)
	if err != nil {
		return nil, errors.Join(ErrBadFPacket, err)
	}
	mbody, body, err := TakeWary('M', body)
	if err != nil {
		return nil, errors.Join(ErrBadFPacket, err)
	}
	vbody, _, err := TakeWary('V', body)
	if err != nil {
		return nil, errors.Join(ErrBadFPacket, err)
	}
	model, err := c.TakeModel(vbody)
	if err != nil {
		return nil, err
	}
	return treesync.ModelFullUpdate[R]{
		ForClient: ids.ClientId(ids.UnzipUint64(cbody)),
		Server: treesync.ModelAndId[R]{
			Model: model,
			Id:    ids.ModelIdFromZipBytes(mbody),
		},
	}, nil
}

func parseIncremental[R any](c Codec[R], body []byte) (treesync.Update[R], error) {
	bbody, body, err := TakeWary('B', body)
	if err != nil {
		return nil, errors.Join(ErrBadUPacket, err)
	}
	update := treesync.ModelIncrementalUpdate[R]{
		BaseId: ids.ModelIdFromZipBytes(bbody),
	}
	for {
		lit, entry, rest := TakeAny(body)
		switch lit {
		case 'L':
			local, err := parseLocal[R](entry)
			if err != nil {
				return nil, err
			}
			update.Deltas = append(update.Deltas, local)
		case 'R':
			remote, err := parseRemote(c, entry)
			if err != nil {
				return nil, err
			}
			update.Deltas = append(update.Deltas, remote)
		case 'M':
			update.UpdatedId = ids.ModelIdFromZipBytes(entry)
			return update, nil
		default:
			return nil, ErrBadUPacket
		}
		body = rest
	}
}

func parseLocal[R any](entry []byte) (treesync.LocalDelta[R], error) {
	ibody, entry, err := TakeWary('I', entry)
	if err != nil {
		return treesync.LocalDelta[R]{}, errors.Join(ErrBadLRecord, err)
	}
	io, _, err := takeContext(entry)
	if err != nil {
		return treesync.LocalDelta[R]{}, errors.Join(ErrBadLRecord, err)
	}
	return treesync.LocalDelta[R]{
		Id: ids.DeltaIdFromZipBytes(ibody),
		IO: io,
	}, nil
}

func parseRemote[R any](c Codec[R], entry []byte) (treesync.RemoteDelta[R], error) {
	var none treesync.RemoteDelta[R]
	ibody, entry, err := TakeWary('I', entry)
	if err != nil {
		return none, errors.Join(ErrBadRRecord, err)
	}
	io, entry, err := takeContext(entry)
	if err != nil {
		return none, errors.Join(ErrBadRRecord, err)
	}
	vbody, _, err := TakeWary('V', entry)
	if err != nil {
		return none, errors.Join(ErrBadRRecord, err)
	}
	delta, err := c.TakeDelta(vbody)
	if err != nil {
		return none, err
	}
	return treesync.RemoteDelta[R]{
		Delta: delta,
		Id:    ids.DeltaIdFromZipBytes(ibody),
		IO:    io,
	}, nil
}
