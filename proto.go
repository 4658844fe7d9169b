package treesync

import (
	"github.com/trepidacious/treesync/effect"
	"github.com/trepidacious/treesync/ids"
)

// ModelAndId pairs a model value with its fingerprint. The id must
// equal the generator's output for the model.
type ModelAndId[R any] struct {
	Model R
	Id    ids.ModelId
}

// DeltaWithIC is a pending local delta plus the identity and context
// it was executed under. Immutable once enqueued, until consumed by a
// server confirmation.
type DeltaWithIC[R any] struct {
	Delta Delta[R]
	Id    ids.DeltaId
	IO    effect.IOContext
}

// UpdateDelta is one entry of an incremental update. The order of
// entries in the containing list is the authoritative application
// order.
type UpdateDelta[R any] interface {
	isUpdateDelta()
}

// LocalDelta confirms one of the receiving client's own pending
// deltas. IO is the server's authoritative context for it, which may
// differ from the context the client originally applied it under.
type LocalDelta[R any] struct {
	Id ids.DeltaId
	IO effect.IOContext
}

// RemoteDelta delivers, in full, a delta that originated on another
// client.
type RemoteDelta[R any] struct {
	Delta Delta[R]
	Id    ids.DeltaId
	IO    effect.IOContext
}

func (LocalDelta[R]) isUpdateDelta()  {}
func (RemoteDelta[R]) isUpdateDelta() {}

// Update is a server-sent update message, full or incremental.
type Update[R any] interface {
	isUpdate()
}

// ModelFullUpdate replaces the addressed client's entire known model.
type ModelFullUpdate[R any] struct {
	ForClient ids.ClientId
	Server    ModelAndId[R]
}

// ModelIncrementalUpdate advances the model from BaseId to UpdatedId
// through the listed deltas, in order.
type ModelIncrementalUpdate[R any] struct {
	BaseId    ids.ModelId
	Deltas    []UpdateDelta[R]
	UpdatedId ids.ModelId
}

func (ModelFullUpdate[R]) isUpdate()        {}
func (ModelIncrementalUpdate[R]) isUpdate() {}
