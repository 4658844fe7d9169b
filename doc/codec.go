package doc

import (
	"errors"

	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/ids"
	"github.com/trepidacious/treesync/protocol"
)

// Node encoding (canonical: fields sorted by name, so the encoding
// doubles as the fingerprint input):
//
//	S value, T stamp, F ( N name, O node )*, E ( I guid, O node )*
//
// Delta encoding, one record per variant:
//
//	P value | F ( N name, X delta ) | E ( I guid, X delta )
//	J value | S (stamp) | A name | Q guid-ref

var ErrBadNode = errors.New("treesync: bad node encoding")
var ErrBadDelta = errors.New("treesync: bad delta encoding")

// AppendNode writes the canonical encoding of a node.
func AppendNode(into []byte, n Node) []byte {
	into = protocol.Append(into, 'S', []byte(n.Value))
	into = protocol.Append(into, 'T', ids.ZipZagInt64(n.Stamp))
	for _, name := range n.fieldNames() {
		body := protocol.Record('N', []byte(name))
		body = protocol.Append(body, 'O', AppendNode(nil, n.Fields[name]))
		into = protocol.Append(into, 'F', body)
	}
	for _, it := range n.Items {
		body := protocol.Record('I', it.Id.ZipBytes())
		body = protocol.Append(body, 'O', AppendNode(nil, it.Node))
		into = protocol.Append(into, 'E', body)
	}
	return into
}

// TakeNode is the inverse of AppendNode.
func TakeNode(body []byte) (Node, error) {
	var n Node
	sbody, body, err := protocol.TakeWary('S', body)
	if err != nil {
		return n, errors.Join(ErrBadNode, err)
	}
	n.Value = string(sbody)
	tbody, body, err := protocol.TakeWary('T', body)
	if err != nil {
		return n, errors.Join(ErrBadNode, err)
	}
	n.Stamp = ids.UnzipZagInt64(tbody)
	for len(body) > 0 {
		lit, entry, rest := protocol.TakeAny(body)
		switch lit {
		case 'F':
			name, entry, err := protocol.TakeWary('N', entry)
			if err != nil {
				return n, errors.Join(ErrBadNode, err)
			}
			obody, _, err := protocol.TakeWary('O', entry)
			if err != nil {
				return n, errors.Join(ErrBadNode, err)
			}
			child, err := TakeNode(obody)
			if err != nil {
				return n, err
			}
			if n.Fields == nil {
				n.Fields = make(map[string]Node)
			}
			n.Fields[string(name)] = child
		case 'E':
			ibody, entry, err := protocol.TakeWary('I', entry)
			if err != nil {
				return n, errors.Join(ErrBadNode, err)
			}
			obody, _, err := protocol.TakeWary('O', entry)
			if err != nil {
				return n, errors.Join(ErrBadNode, err)
			}
			child, err := TakeNode(obody)
			if err != nil {
				return n, err
			}
			n.Items = append(n.Items, Item{
				Id:   ids.GuidFromZipBytes(ibody),
				Node: child,
			})
		default:
			return n, ErrBadNode
		}
		body = rest
	}
	return n, nil
}

// Codec implements the protocol codec for document models. The
// resolver is injected so Deref deltas decoded from the wire resolve
// against the receiver's own reference store.
type Codec struct {
	Resolver Resolver
}

func (c Codec) AppendModel(into []byte, model Node) []byte {
	return AppendNode(into, model)
}

func (c Codec) TakeModel(body []byte) (Node, error) {
	return TakeNode(body)
}

func (c Codec) AppendDelta(into []byte, delta treesync.Delta[Node]) []byte {
	switch d := delta.(type) {
	case Put:
		return protocol.Append(into, 'P', []byte(d.Value))
	case AtField:
		body := protocol.Record('N', []byte(d.Name))
		body = protocol.Append(body, 'X', c.AppendDelta(nil, d.Delta))
		return protocol.Append(into, 'F', body)
	case AtItem:
		body := protocol.Record('I', d.Id.ZipBytes())
		body = protocol.Append(body, 'X', c.AppendDelta(nil, d.Delta))
		return protocol.Append(into, 'E', body)
	case Insert:
		return protocol.Append(into, 'J', []byte(d.Value))
	case Stamp:
		return protocol.Append(into, 'S')
	case Action:
		return protocol.Append(into, 'A', []byte(d.Name))
	case Deref:
		return protocol.Append(into, 'Q', d.To.Id.ZipBytes())
	default:
		panic("treesync: unknown document delta variant")
	}
}

func (c Codec) TakeDelta(body []byte) (treesync.Delta[Node], error) {
	lit, entry, _ := protocol.TakeAny(body)
	switch lit {
	case 'P':
		return Put{Value: string(entry)}, nil
	case 'F':
		name, entry, err := protocol.TakeWary('N', entry)
		if err != nil {
			return nil, errors.Join(ErrBadDelta, err)
		}
		xbody, _, err := protocol.TakeWary('X', entry)
		if err != nil {
			return nil, errors.Join(ErrBadDelta, err)
		}
		sub, err := c.TakeDelta(xbody)
		if err != nil {
			return nil, err
		}
		return AtField{Name: string(name), Delta: sub}, nil
	case 'E':
		ibody, entry, err := protocol.TakeWary('I', entry)
		if err != nil {
			return nil, errors.Join(ErrBadDelta, err)
		}
		xbody, _, err := protocol.TakeWary('X', entry)
		if err != nil {
			return nil, errors.Join(ErrBadDelta, err)
		}
		sub, err := c.TakeDelta(xbody)
		if err != nil {
			return nil, err
		}
		return AtItem{Id: ids.GuidFromZipBytes(ibody), Delta: sub}, nil
	case 'J':
		return Insert{Value: string(entry)}, nil
	case 'S':
		return Stamp{}, nil
	case 'A':
		return Action{Name: string(entry)}, nil
	case 'Q':
		return Deref{To: Ref{Id: ids.GuidFromZipBytes(entry)}, In: c.Resolver}, nil
	default:
		return nil, ErrBadDelta
	}
}
