package treesync

import "errors"

var (
	// ErrWrongClient rejects a full update addressed to a different
	// client. The caller should discard the message.
	ErrWrongClient = errors.New("treesync: full update addressed to another client")

	// ErrStaleBase rejects an incremental update that does not chain
	// directly onto the client's confirmed model. The caller should
	// request a full update; retrying the incremental one cannot help.
	ErrStaleBase = errors.New("treesync: incremental update base does not match the confirmed model")

	// ErrModelIdMismatch reports drift: the folded model's fingerprint
	// disagrees with the server-declared one. The caller should fall
	// back to a full resync.
	ErrModelIdMismatch = errors.New("treesync: updated model id mismatch, client and server have diverged")

	// ErrUnexpectedIncrementalAsFirst rejects an incremental update as
	// the very first message - there is nothing yet to apply it to.
	ErrUnexpectedIncrementalAsFirst = errors.New("treesync: first update must be a full update")
)
