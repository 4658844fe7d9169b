package doc

import (
	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/effect"
	"github.com/trepidacious/treesync/ids"
)

// The delta variants of the document model. Each is a value; applying
// one yields an effect that the reconciliation core interprets under
// whichever context and delta identity is current.

// Put replaces the node's leaf value.
type Put struct {
	Value string
}

func (d Put) Apply(model Node) effect.Effect[Node] {
	return effect.Ret(model.withValue(d.Value))
}

// AtField descends into a named field and applies a sub-delta there.
// A missing field is created from the zero node.
type AtField struct {
	Name  string
	Delta treesync.Delta[Node]
}

func (d AtField) Apply(model Node) effect.Effect[Node] {
	sub := d.Delta.Apply(model.Field(d.Name))
	return effect.Map(sub, func(child Node) Node {
		return model.withField(d.Name, child)
	})
}

// AtItem descends into the list element with the given guid and
// applies a sub-delta there. A missing element makes the whole delta a
// no-op, which is what happens when an edit races a concurrent remove.
type AtItem struct {
	Id    ids.Guid
	Delta treesync.Delta[Node]
}

func (d AtItem) Apply(model Node) effect.Effect[Node] {
	at := -1
	for i := range model.Items {
		if model.Items[i].Id == d.Id {
			at = i
			break
		}
	}
	if at < 0 {
		return effect.Ret(model)
	}
	sub := d.Delta.Apply(model.Items[at].Node)
	return effect.Map(sub, func(child Node) Node {
		return model.withItem(at, child)
	})
}

// Insert appends a new item, asking the effect for its guid. The guid
// comes out identical on every execution of this delta, optimistic or
// authoritative.
type Insert struct {
	Value string
}

func (d Insert) Apply(model Node) effect.Effect[Node] {
	return effect.NewGuid(func(g ids.Guid) effect.Effect[Node] {
		return effect.Ret(model.withAppended(g, Node{Value: d.Value}))
	})
}

// Stamp writes the execution moment into the node. Under an
// incremental update the server's authoritative context wins over the
// client's provisional one.
type Stamp struct{}

func (d Stamp) Apply(model Node) effect.Effect[Node] {
	return effect.Context(func(io effect.IOContext) effect.Effect[Node] {
		return effect.Ret(model.withStamp(io.UnixMilli))
	})
}

// Action names

const (
	ActionClear = "clear" // drop all items
	ActionTouch = "touch" // stamp the node and every item
)

// Action runs a domain-specific named operation. Unknown names no-op
// so an old replica can skip actions a newer peer sent.
type Action struct {
	Name string
}

func (d Action) Apply(model Node) effect.Effect[Node] {
	switch d.Name {
	case ActionClear:
		return effect.Ret(model.withoutItems())
	case ActionTouch:
		return effect.Context(func(io effect.IOContext) effect.Effect[Node] {
			next := model.withStamp(io.UnixMilli)
			items := make([]Item, len(next.Items))
			copy(items, next.Items)
			for i := range items {
				items[i].Node = items[i].Node.withStamp(io.UnixMilli)
			}
			next.Items = items
			return effect.Ret(next)
		})
	default:
		return effect.Ret(model)
	}
}

// Deref replaces the node with the current revision of a referenced
// sub-object. An unresolvable reference no-ops.
type Deref struct {
	To Ref
	In Resolver
}

func (d Deref) Apply(model Node) effect.Effect[Node] {
	if d.In == nil {
		return effect.Ret(model)
	}
	resolved, ok := d.In.Resolve(d.To)
	if !ok {
		return effect.Ret(model)
	}
	return effect.Ret(resolved)
}
