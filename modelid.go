package treesync

import (
	"github.com/cespare/xxhash"
	"github.com/trepidacious/treesync/ids"
)

// ModelIdGen fingerprints a model value. It must be deterministic and
// stable: models the application considers equal must produce equal
// ids. The protocol never merges by id, it only detects divergence.
type ModelIdGen[R any] func(model R) ids.ModelId

// HashIdGen fingerprints through a canonical byte encoding of the
// model.
func HashIdGen[R any](encode func(R) []byte) ModelIdGen[R] {
	return func(model R) ids.ModelId {
		return ids.ModelId(xxhash.Sum64(encode(model)))
	}
}
