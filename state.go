package treesync

import (
	"github.com/trepidacious/treesync/effect"
	"github.com/trepidacious/treesync/ids"
)

// ClientState is one client's view of synchronization: the last
// confirmed server model, the ordered queue of not-yet-confirmed local
// deltas, and the optimistic model derived from the two.
//
// The invariant maintained by every transition: Model() equals the
// confirmed server model with every pending delta replayed in order,
// each under its own stored context.
//
// ClientState is an immutable value; Apply, FullUpdate and Update
// return a new state and never touch the receiver. A failed transition
// leaves the caller holding the old state unchanged. None of the
// transitions perform I/O or block; concurrency belongs to the layers
// around this one.
type ClientState[R any] struct {
	id      ids.ClientId
	next    ids.ClientDeltaId
	gen     ModelIdGen[R]
	server  ModelAndId[R]
	pending []DeltaWithIC[R]
	model   R
}

// FromFirstUpdate seeds a ClientState from the first server message,
// which must be a full update. An incremental update first is a
// protocol error: there is nothing yet to apply it to.
func FromFirstUpdate[R any](gen ModelIdGen[R], first Update[R]) (ClientState[R], error) {
	full, ok := first.(ModelFullUpdate[R])
	if !ok {
		return ClientState[R]{}, ErrUnexpectedIncrementalAsFirst
	}
	return ClientState[R]{
		id:     full.ForClient,
		gen:    gen,
		server: full.Server,
		model:  full.Server.Model,
	}, nil
}

func (cs ClientState[R]) Id() ids.ClientId {
	return cs.id
}

// Model is the optimistic model: confirmed history plus pending edits.
func (cs ClientState[R]) Model() R {
	return cs.model
}

// ServerModel is the last confirmed server model and its id.
func (cs ClientState[R]) ServerModel() ModelAndId[R] {
	return cs.server
}

// Pending is a copy of the not-yet-confirmed local deltas, in
// application order.
func (cs ClientState[R]) Pending() []DeltaWithIC[R] {
	out := make([]DeltaWithIC[R], len(cs.pending))
	copy(out, cs.pending)
	return out
}

func (cs ClientState[R]) NextClientDeltaId() ids.ClientDeltaId {
	return cs.next
}

// Apply executes a local edit optimistically and enqueues it as
// pending. The returned DeltaId must travel to the server with the
// delta and context, in Apply call order. Apply has no failure mode:
// the interpreter is total for a valid delta.
func (cs ClientState[R]) Apply(delta Delta[R], io effect.IOContext) (ClientState[R], ids.DeltaId) {
	deltaId := ids.MakeDeltaId(cs.id, cs.next)
	model := effect.Interpret(delta.Apply(cs.model), io, deltaId)

	pending := make([]DeltaWithIC[R], len(cs.pending), len(cs.pending)+1)
	copy(pending, cs.pending)
	pending = append(pending, DeltaWithIC[R]{Delta: delta, Id: deltaId, IO: io})

	next := cs
	next.next = cs.next + 1
	next.pending = pending
	next.model = model
	return next, deltaId
}

// FullUpdate resets to an authoritative server model, discarding all
// pending local edits. A full update always wins outright, e.g. on
// reconnect after an unknown gap in history.
func (cs ClientState[R]) FullUpdate(u ModelFullUpdate[R]) (ClientState[R], error) {
	if u.ForClient != cs.id {
		return cs, ErrWrongClient
	}
	next := cs
	next.server = u.Server
	next.pending = nil
	next.model = u.Server.Model
	return next, nil
}

// Update reconciles the pending queue against newly confirmed history.
//
// The update must chain directly onto the confirmed model; a gap means
// the caller needs a full update instead. Each LocalDelta entry
// consumes at most one matching pending delta, re-executed under the
// server's authoritative context; an unmatched confirmation is
// tolerated as a no-op. Every RemoteDelta is folded in regardless of
// the pending queue. The optimistic model is then re-derived by
// replaying the remaining pending deltas, each under its own original
// context, on top of the new confirmed model.
func (cs ClientState[R]) Update(u ModelIncrementalUpdate[R]) (ClientState[R], error) {
	if u.BaseId != cs.server.Id {
		return cs, ErrStaleBase
	}

	model := cs.server.Model
	remaining := make([]DeltaWithIC[R], len(cs.pending))
	copy(remaining, cs.pending)

	for _, entry := range u.Deltas {
		switch d := entry.(type) {
		case LocalDelta[R]:
			at := -1
			for i := range remaining {
				if remaining[i].Id == d.Id {
					at = i
					break
				}
			}
			if at < 0 {
				// duplicate or late confirmation; nothing left to
				// confirm, nothing to apply
				continue
			}
			model = effect.Interpret(remaining[at].Delta.Apply(model), d.IO, d.Id)
			remaining = append(remaining[:at:at], remaining[at+1:]...)
		case RemoteDelta[R]:
			model = effect.Interpret(d.Delta.Apply(model), d.IO, d.Id)
		}
	}

	updatedId := cs.gen(model)
	if updatedId != u.UpdatedId {
		return cs, ErrModelIdMismatch
	}

	derived := model
	for _, p := range remaining {
		derived = effect.Interpret(p.Delta.Apply(derived), p.IO, p.Id)
	}

	next := cs
	next.server = ModelAndId[R]{Model: model, Id: updatedId}
	next.pending = remaining
	next.model = derived
	return next, nil
}
