package server

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Journal persists the confirmed update log: one wire packet per
// confirmed delta, keyed by server sequence number. It is not the
// canonical model store - a reopened hub refolds the packets to get
// the model back.
type Journal struct {
	db *pebble.DB
}

var ErrJournalClosed = errors.New("treesync: journal is closed")

func ukey(seq uint64) []byte {
	var ret = [9]byte{'U'}
	binary.BigEndian.PutUint64(ret[1:], seq)
	return ret[:]
}

func OpenJournal(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("treesync: opening journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Append(seq uint64, packet []byte) error {
	if j.db == nil {
		return ErrJournalClosed
	}
	return j.db.Set(ukey(seq), packet, pebble.Sync)
}

// Replay feeds every journaled packet, in sequence order, to fn.
func (j *Journal) Replay(fn func(seq uint64, packet []byte) error) error {
	if j.db == nil {
		return ErrJournalClosed
	}
	it, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{'U'},
		UpperBound: []byte{'V'},
	})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		seq := binary.BigEndian.Uint64(it.Key()[1:])
		packet := append([]byte{}, it.Value()...)
		if err := fn(seq, packet); err != nil {
			return err
		}
	}
	return it.Error()
}

func (j *Journal) Close() error {
	if j.db == nil {
		return ErrJournalClosed
	}
	err := j.db.Close()
	j.db = nil
	return err
}
