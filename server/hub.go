/*
Package server is the serial log the synchronization protocol assumes:
one authority that orders all deltas for a model, restamps them with
its own clock, and tells every client - originator included - what
advanced the model between two revisions.

The hub keeps the whole confirmed history folded into a single current
model. Per client it keeps a session queue of outgoing updates, plus a
bounded window of recent incremental updates so a briefly disconnected
client can catch up without a full resync.
*/
package server

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/effect"
	"github.com/trepidacious/treesync/ids"
	"github.com/trepidacious/treesync/protocol"
	"github.com/trepidacious/treesync/utils"
)

var ErrNoIdGen = errors.New("treesync: hub needs a model id generator")
var ErrNoCodec = errors.New("treesync: journaling needs a wire codec")
var ErrJournalCorrupt = errors.New("treesync: journal does not refold to a consistent model")

type Options[R any] struct {
	Gen        treesync.ModelIdGen[R]
	Codec      protocol.Codec[R] // required when JournalDir is set
	JournalDir string            // empty for an in-memory hub
	WindowSize int               // incremental catch-up window, in updates
	QueueLimit int               // per-session outgoing queue bound
	Logger     utils.Logger
	Clock      effect.Clock
	Metrics    *Metrics
}

func (o *Options[R]) SetDefaults() {
	if o.WindowSize == 0 {
		o.WindowSize = 128
	}
	if o.QueueLimit == 0 {
		o.QueueLimit = 1 << 10
	}
	if o.Logger == nil {
		o.Logger = utils.NewDefaultLogger(slog.LevelInfo)
	}
	if o.Clock == nil {
		o.Clock = effect.SystemClock{}
	}
}

// Session is one client's registration with the hub. Updates
// accumulate in its queue until the transport drains them.
type Session[R any] struct {
	Token  uuid.UUID
	client ids.ClientId
	queue  *utils.Queue[treesync.Update[R]]
	log    utils.Logger
}

func (s *Session[R]) Client() ids.ClientId {
	return s.client
}

// Updates drains everything queued for this session, in order.
func (s *Session[R]) Updates() ([]treesync.Update[R], error) {
	return s.queue.Drain()
}

type Hub[R any] struct {
	log     utils.Logger
	clock   effect.Clock
	gen     treesync.ModelIdGen[R]
	codec   protocol.Codec[R]
	metrics *Metrics
	qlimit  int

	// lock serializes submissions; it is what makes the log serial
	lock    sync.Mutex
	model   treesync.ModelAndId[R]
	seq     uint64
	journal *Journal

	sessions *xsync.MapOf[ids.ClientId, *Session[R]]
	window   *lru.Cache[ids.ModelId, treesync.ModelIncrementalUpdate[R]]
}

func NewHub[R any](initial R, opts Options[R]) (*Hub[R], error) {
	opts.SetDefaults()
	if opts.Gen == nil {
		return nil, ErrNoIdGen
	}
	window, err := lru.New[ids.ModelId, treesync.ModelIncrementalUpdate[R]](opts.WindowSize)
	if err != nil {
		return nil, err
	}
	h := &Hub[R]{
		log:      opts.Logger,
		clock:    opts.Clock,
		gen:      opts.Gen,
		codec:    opts.Codec,
		metrics:  opts.Metrics,
		qlimit:   opts.QueueLimit,
		model:    treesync.ModelAndId[R]{Model: initial, Id: opts.Gen(initial)},
		sessions: xsync.NewMapOf[ids.ClientId, *Session[R]](),
		window:   window,
	}
	if opts.JournalDir != "" {
		if opts.Codec == nil {
			return nil, ErrNoCodec
		}
		h.journal, err = OpenJournal(opts.JournalDir)
		if err != nil {
			return nil, err
		}
		if err = h.refold(); err != nil {
			_ = h.journal.Close()
			return nil, err
		}
	}
	return h, nil
}

// refold replays the journal over the initial model to recover the
// confirmed state.
func (h *Hub[R]) refold() error {
	return h.journal.Replay(func(seq uint64, packet []byte) error {
		u, _, err := protocol.ParseUpdate(h.codec, packet)
		if err != nil {
			return errors.Join(ErrJournalCorrupt, err)
		}
		inc, ok := u.(treesync.ModelIncrementalUpdate[R])
		if !ok || inc.BaseId != h.model.Id {
			return ErrJournalCorrupt
		}
		model := h.model.Model
		for _, entry := range inc.Deltas {
			remote, ok := entry.(treesync.RemoteDelta[R])
			if !ok {
				return ErrJournalCorrupt
			}
			model = effect.Interpret(remote.Delta.Apply(model), remote.IO, remote.Id)
		}
		if h.gen(model) != inc.UpdatedId {
			return ErrJournalCorrupt
		}
		h.model = treesync.ModelAndId[R]{Model: model, Id: inc.UpdatedId}
		h.window.Add(inc.BaseId, inc)
		h.seq = seq + 1
		h.log.Debug("refolded journal entry", "seq", seq, "model", inc.UpdatedId.String())
		return nil
	})
}

// Model is the current confirmed model and its id.
func (h *Hub[R]) Model() treesync.ModelAndId[R] {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.model
}

// Connect registers a client and returns its session together with the
// seeding full update. A second connect for the same client replaces
// the first session. The session store and the model snapshot happen
// under the submission lock, so every incremental queued after the
// snapshot chains onto it.
func (h *Hub[R]) Connect(client ids.ClientId) (*Session[R], treesync.ModelFullUpdate[R]) {
	s := &Session[R]{
		Token:  uuid.New(),
		client: client,
		queue:  utils.NewQueue[treesync.Update[R]](h.qlimit),
	}
	s.log = h.log.With("client", uint32(client), "session", s.Token.String())

	h.lock.Lock()
	if prev, ok := h.sessions.Load(client); ok {
		prev.queue.Close()
	}
	h.sessions.Store(client, s)
	model := h.model
	h.lock.Unlock()

	if h.metrics != nil {
		h.metrics.ActiveSessions.Set(float64(h.sessions.Size()))
		h.metrics.FullUpdatesTotal.Inc()
	}
	s.log.Info("client connected")
	return s, treesync.ModelFullUpdate[R]{ForClient: client, Server: model}
}

func (h *Hub[R]) Disconnect(s *Session[R]) {
	if cur, ok := h.sessions.Load(s.client); ok && cur == s {
		h.sessions.Delete(s.client)
	}
	s.queue.Close()
	if h.metrics != nil {
		h.metrics.ActiveSessions.Set(float64(h.sessions.Size()))
	}
}

// FullUpdate builds an authoritative reset for the client.
func (h *Hub[R]) FullUpdate(client ids.ClientId) treesync.ModelFullUpdate[R] {
	h.lock.Lock()
	model := h.model
	h.lock.Unlock()
	if h.metrics != nil {
		h.metrics.FullUpdatesTotal.Inc()
	}
	return treesync.ModelFullUpdate[R]{ForClient: client, Server: model}
}

// Submit confirms one client delta into the serial log. The hub
// re-executes the delta under its own clock - the authoritative
// context - so the client's provisional context is deliberately not
// trusted. Every connected session is then told, the originator with a
// LocalDelta confirmation, everyone else with the delta in full.
func (h *Hub[R]) Submit(from ids.ClientId, delta treesync.Delta[R], deltaId ids.DeltaId, clientIO effect.IOContext) error {
	h.lock.Lock()
	defer h.lock.Unlock()

	serverIO := h.clock.Now()
	base := h.model
	next := effect.Interpret(delta.Apply(base.Model), serverIO, deltaId)
	updatedId := h.gen(next)

	remoteForm := treesync.ModelIncrementalUpdate[R]{
		BaseId:    base.Id,
		Deltas:    []treesync.UpdateDelta[R]{treesync.RemoteDelta[R]{Delta: delta, Id: deltaId, IO: serverIO}},
		UpdatedId: updatedId,
	}
	if h.journal != nil {
		packet := protocol.AppendUpdate(nil, h.codec, remoteForm)
		if err := h.journal.Append(h.seq, packet); err != nil {
			return err
		}
	}
	h.window.Add(base.Id, remoteForm)
	h.seq++
	h.model = treesync.ModelAndId[R]{Model: next, Id: updatedId}
	if h.metrics != nil {
		h.metrics.DeltasTotal.Inc()
	}
	h.log.Debug("delta confirmed",
		"delta", deltaId.String(),
		"client_ms", clientIO.UnixMilli,
		"server_ms", serverIO.UnixMilli,
		"model", updatedId.String())

	h.sessions.Range(func(client ids.ClientId, s *Session[R]) bool {
		var u treesync.Update[R]
		if client == from {
			u = treesync.ModelIncrementalUpdate[R]{
				BaseId:    base.Id,
				Deltas:    []treesync.UpdateDelta[R]{treesync.LocalDelta[R]{Id: deltaId, IO: serverIO}},
				UpdatedId: updatedId,
			}
		} else {
			u = remoteForm
		}
		if err := s.queue.Push(u); err != nil {
			h.sessions.Delete(client)
			s.queue.Close()
			if h.metrics != nil {
				h.metrics.SessionDropsTotal.Inc()
				h.metrics.ActiveSessions.Set(float64(h.sessions.Size()))
			}
			s.log.Warn("session dropped", "reason", err.Error())
		}
		return true
	})
	return nil
}

// CatchUp rebuilds the incremental chain from the given base to the
// current model, rewriting entries for the requesting client's own
// deltas into LocalDelta form. ok is false when the base has fallen
// out of the window; the client then needs a full update.
func (h *Hub[R]) CatchUp(client ids.ClientId, base ids.ModelId) (updates []treesync.ModelIncrementalUpdate[R], ok bool) {
	h.lock.Lock()
	tip := h.model.Id
	h.lock.Unlock()

	for base != tip {
		u, found := h.window.Get(base)
		if !found {
			if h.metrics != nil {
				h.metrics.CatchUpMissesTotal.Inc()
			}
			return nil, false
		}
		updates = append(updates, h.addressTo(client, u))
		base = u.UpdatedId
	}
	return updates, true
}

// addressTo converts remote-form entries about the client's own deltas
// into confirmations.
func (h *Hub[R]) addressTo(client ids.ClientId, u treesync.ModelIncrementalUpdate[R]) treesync.ModelIncrementalUpdate[R] {
	deltas := make([]treesync.UpdateDelta[R], len(u.Deltas))
	for i, entry := range u.Deltas {
		if remote, ok := entry.(treesync.RemoteDelta[R]); ok && remote.Id.Client() == client {
			deltas[i] = treesync.LocalDelta[R]{Id: remote.Id, IO: remote.IO}
		} else {
			deltas[i] = entry
		}
	}
	u.Deltas = deltas
	return u
}

func (h *Hub[R]) Close() error {
	h.sessions.Range(func(client ids.ClientId, s *Session[R]) bool {
		s.queue.Close()
		h.sessions.Delete(client)
		return true
	})
	if h.journal != nil {
		return h.journal.Close()
	}
	return nil
}
