/*
Package treesync keeps many optimistic clients consistent with one
authoritative server history, without a central lock.

A client edits its model through deltas, applied locally the moment the
user acts. Each delta is also sent to the server, which serializes all
deltas into one total order and confirms them back through incremental
updates. The ClientState machine tracks the last confirmed server
model, the queue of not-yet-confirmed local deltas, and the derived
optimistic model.
*/
package treesync

import (
	"github.com/trepidacious/treesync/effect"
)

// Delta is a self-contained edit of a model of type R. Applying it to
// a model yields an effect value: the description of the computation,
// including any fresh-guid or context requests, still to be
// interpreted. The reconciliation core treats deltas as opaque; the
// concrete variants live with the concrete model.
type Delta[R any] interface {
	Apply(model R) effect.Effect[R]
}
