package doc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/ids"
)

func TestNodeRoundTrip(t *testing.T) {
	nodes := []Node{
		{},
		{Value: "leaf", Stamp: 42},
		{
			Value: "root",
			Fields: map[string]Node{
				"title": {Value: "plan"},
				"meta":  {Stamp: 7, Fields: map[string]Node{"author": {Value: "a"}}},
			},
			Items: []Item{
				{Id: ids.MakeGuid(0xc, 1, 0), Node: Node{Value: "first"}},
				{Id: ids.MakeGuid(0xe, 2, 1), Node: Node{Value: "second"}},
			},
		},
	}
	for _, n := range nodes {
		out, err := TakeNode(AppendNode(nil, n))
		assert.NoError(t, err)
		// nil and empty field maps are the same document
		assert.Equal(t, AppendNode(nil, n), AppendNode(nil, out))
	}
}

func TestDeltaRoundTrip(t *testing.T) {
	res := mapResolver{}
	c := Codec{Resolver: res}
	deltas := []treesync.Delta[Node]{
		Put{Value: "v"},
		AtField{Name: "title", Delta: Put{Value: "x"}},
		AtItem{Id: ids.MakeGuid(1, 2, 0), Delta: Stamp{}},
		AtField{Name: "list", Delta: AtItem{Id: ids.MakeGuid(3, 4, 0), Delta: Put{Value: "deep"}}},
		Insert{Value: "new"},
		Stamp{},
		Action{Name: ActionClear},
		Deref{To: Ref{Id: ids.MakeGuid(9, 9, 0)}, In: res},
	}
	for _, in := range deltas {
		out, err := c.TakeDelta(c.AppendDelta(nil, in))
		assert.NoError(t, err)
		assert.Equal(t, in, out)
	}
}

func TestTakeNodeRejectsGarbage(t *testing.T) {
	_, err := TakeNode([]byte("garbage"))
	assert.ErrorIs(t, err, ErrBadNode)

	c := Codec{}
	_, err = c.TakeDelta([]byte{})
	assert.ErrorIs(t, err, ErrBadDelta)
}
