/*
Package doc is a concrete tree document model for treesync.

A document is a tree of nodes: a leaf value, an optional time stamp,
named child fields and an ordered list of items. Items are keyed by
guid, allocated through the delta effect when they are created, so an
item keeps its identity across clients and across the optimistic and
authoritative executions of the same delta.
*/
package doc

import (
	"sort"

	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/ids"
)

// Node is a document tree node. Nodes are values: edits copy on write,
// so an old model stays valid after a new one is derived.
type Node struct {
	Value  string
	Stamp  int64 // unix millis of the last stamp action, 0 for never
	Fields map[string]Node
	Items  []Item
}

// Item is a list element with a stable guid identity.
type Item struct {
	Id   ids.Guid
	Node Node
}

// Ref points at a sub-object held elsewhere, to be resolved to its
// current revision by an injected Resolver.
type Ref struct {
	Id ids.Guid
}

// Resolver is the narrow reference-resolution capability delta
// application may consult. Its internals are not this package's
// business.
type Resolver interface {
	Resolve(ref Ref) (Node, bool)
}

func (n Node) withValue(v string) Node {
	n.Value = v
	return n
}

func (n Node) withStamp(millis int64) Node {
	n.Stamp = millis
	return n
}

func (n Node) withField(name string, child Node) Node {
	fields := make(map[string]Node, len(n.Fields)+1)
	for k, v := range n.Fields {
		fields[k] = v
	}
	fields[name] = child
	n.Fields = fields
	return n
}

func (n Node) withItem(at int, child Node) Node {
	items := make([]Item, len(n.Items))
	copy(items, n.Items)
	items[at].Node = child
	n.Items = items
	return n
}

func (n Node) withAppended(id ids.Guid, child Node) Node {
	items := make([]Item, len(n.Items), len(n.Items)+1)
	copy(items, n.Items)
	n.Items = append(items, Item{Id: id, Node: child})
	return n
}

func (n Node) withoutItems() Node {
	n.Items = nil
	return n
}

// Field returns the named child, or a zero node.
func (n Node) Field(name string) Node {
	return n.Fields[name]
}

// Item returns the element with the given guid.
func (n Node) Item(id ids.Guid) (Node, bool) {
	for _, it := range n.Items {
		if it.Id == id {
			return it.Node, true
		}
	}
	return Node{}, false
}

func (n Node) fieldNames() []string {
	names := make([]string, 0, len(n.Fields))
	for k := range n.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// IdGen is the document fingerprint generator: an xxhash of the
// canonical node encoding.
var IdGen = treesync.HashIdGen[Node](func(n Node) []byte {
	return AppendNode(nil, n)
})
