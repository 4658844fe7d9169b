package server

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/doc"
	"github.com/trepidacious/treesync/effect"
	"github.com/trepidacious/treesync/ids"
)

const alice = ids.ClientId(0xa)
const bob = ids.ClientId(0xb)

func newTestHub(t *testing.T, opts Options[doc.Node]) *Hub[doc.Node] {
	t.Helper()
	if opts.Gen == nil {
		opts.Gen = doc.IdGen
	}
	opts.Clock = &effect.LogicalClock{}
	hub, err := NewHub(doc.Node{Value: "root"}, opts)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close() })
	return hub
}

// a connected client: reconciliation state plus its hub session
type peer struct {
	state   treesync.ClientState[doc.Node]
	session *Session[doc.Node]
	clock   *effect.LogicalClock
}

func connect(t *testing.T, hub *Hub[doc.Node], id ids.ClientId) *peer {
	t.Helper()
	session, full := hub.Connect(id)
	state, err := treesync.FromFirstUpdate(doc.IdGen, full)
	assert.NoError(t, err)
	return &peer{state: state, session: session, clock: &effect.LogicalClock{}}
}

func (p *peer) edit(t *testing.T, hub *Hub[doc.Node], delta treesync.Delta[doc.Node]) {
	t.Helper()
	io := p.clock.Now()
	next, deltaId := p.state.Apply(delta, io)
	p.state = next
	assert.NoError(t, hub.Submit(p.state.Id(), delta, deltaId, io))
}

func (p *peer) drain(t *testing.T) {
	t.Helper()
	updates, err := p.session.Updates()
	assert.NoError(t, err)
	for _, u := range updates {
		switch v := u.(type) {
		case treesync.ModelFullUpdate[doc.Node]:
			p.state, err = p.state.FullUpdate(v)
		case treesync.ModelIncrementalUpdate[doc.Node]:
			p.state, err = p.state.Update(v)
		}
		assert.NoError(t, err)
	}
}

func TestTwoClientsConverge(t *testing.T) {
	hub := newTestHub(t, Options[doc.Node]{})
	a := connect(t, hub, alice)
	b := connect(t, hub, bob)

	a.edit(t, hub, doc.AtField{Name: "title", Delta: doc.Put{Value: "plan"}})
	a.edit(t, hub, doc.Insert{Value: "milk"})
	b.edit(t, hub, doc.Stamp{})
	a.edit(t, hub, doc.Insert{Value: "bread"})

	a.drain(t)
	b.drain(t)

	assert.Empty(t, a.state.Pending())
	assert.Empty(t, b.state.Pending())
	assert.Equal(t, hub.Model().Id, a.state.ServerModel().Id)
	assert.Equal(t, doc.IdGen(a.state.Model()), doc.IdGen(b.state.Model()))

	m := a.state.Model()
	assert.Equal(t, "plan", m.Field("title").Value)
	assert.Len(t, m.Items, 2)
	// item guids carry the originating delta identity
	assert.Equal(t, ids.MakeDeltaId(alice, 1).Fresh(0), m.Items[0].Id)
	assert.Equal(t, ids.MakeDeltaId(alice, 2).Fresh(0), m.Items[1].Id)
}

func TestOriginatorGetsConfirmation(t *testing.T) {
	hub := newTestHub(t, Options[doc.Node]{})
	a := connect(t, hub, alice)

	a.edit(t, hub, doc.Put{Value: "v1"})
	assert.Len(t, a.state.Pending(), 1)

	updates, err := a.session.Updates()
	assert.NoError(t, err)
	assert.Len(t, updates, 1)
	inc, ok := updates[0].(treesync.ModelIncrementalUpdate[doc.Node])
	assert.True(t, ok)
	assert.Len(t, inc.Deltas, 1)
	_, isLocal := inc.Deltas[0].(treesync.LocalDelta[doc.Node])
	assert.True(t, isLocal)

	a.state, err = a.state.Update(inc)
	assert.NoError(t, err)
	assert.Empty(t, a.state.Pending())
}

func TestCatchUpWindow(t *testing.T) {
	hub := newTestHub(t, Options[doc.Node]{})
	a := connect(t, hub, alice)
	base := a.state.ServerModel().Id

	a.edit(t, hub, doc.Put{Value: "v1"})
	a.edit(t, hub, doc.Put{Value: "v2"})

	// the chain from the old base replays to the tip, own deltas
	// rewritten as confirmations
	updates, ok := hub.CatchUp(alice, base)
	assert.True(t, ok)
	assert.Len(t, updates, 2)
	for _, u := range updates {
		assert.Len(t, u.Deltas, 1)
		_, isLocal := u.Deltas[0].(treesync.LocalDelta[doc.Node])
		assert.True(t, isLocal)
	}

	// a stranger sees the same chain as remote deltas
	updates, ok = hub.CatchUp(bob, base)
	assert.True(t, ok)
	_, isRemote := updates[0].Deltas[0].(treesync.RemoteDelta[doc.Node])
	assert.True(t, isRemote)

	// an unknown base misses the window; a full update recovers
	_, ok = hub.CatchUp(alice, ids.ModelId(0xbad))
	assert.False(t, ok)
	state, err := a.state.FullUpdate(hub.FullUpdate(alice))
	assert.NoError(t, err)
	assert.Equal(t, hub.Model().Id, state.ServerModel().Id)
	assert.Empty(t, state.Pending())
}

func TestCatchUpFeedsClientState(t *testing.T) {
	hub := newTestHub(t, Options[doc.Node]{})
	a := connect(t, hub, alice)
	b := connect(t, hub, bob)
	base := b.state.ServerModel().Id

	a.edit(t, hub, doc.AtField{Name: "x", Delta: doc.Put{Value: "1"}})
	a.edit(t, hub, doc.Insert{Value: "y"})

	updates, ok := hub.CatchUp(bob, base)
	assert.True(t, ok)
	var err error
	for _, u := range updates {
		b.state, err = b.state.Update(u)
		assert.NoError(t, err)
	}
	assert.Equal(t, hub.Model().Id, b.state.ServerModel().Id)
}

func TestSlowSessionIsDropped(t *testing.T) {
	metrics := NewMetrics()
	assert.NoError(t, metrics.Register(prometheus.NewRegistry()))
	hub := newTestHub(t, Options[doc.Node]{QueueLimit: 1, Metrics: metrics})
	a := connect(t, hub, alice)
	connect(t, hub, bob)

	// bob never drains; the second delta overflows his queue
	a.edit(t, hub, doc.Put{Value: "v1"})
	a.drain(t)
	a.edit(t, hub, doc.Put{Value: "v2"})

	_, ok := hub.sessions.Load(bob)
	assert.False(t, ok)
	_, ok = hub.sessions.Load(alice)
	assert.True(t, ok)
}

// connecting while another client streams edits: the seeding full
// update and everything queued after it must chain without gaps
func TestConnectDuringSubmits(t *testing.T) {
	hub := newTestHub(t, Options[doc.Node]{})
	a := connect(t, hub, alice)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			a.edit(t, hub, doc.Insert{Value: "x"})
		}
	}()

	b := connect(t, hub, bob)
	<-done
	b.drain(t)
	assert.Equal(t, hub.Model().Id, b.state.ServerModel().Id)
}

func TestReconnectReplacesSession(t *testing.T) {
	hub := newTestHub(t, Options[doc.Node]{})
	first, _ := hub.Connect(alice)
	second, full := hub.Connect(alice)
	assert.NotEqual(t, first.Token, second.Token)
	assert.Equal(t, alice, full.ForClient)

	// the replaced session is closed
	_, err := first.Updates()
	assert.Error(t, err)
	assert.Equal(t, alice, second.Client())
}

func TestJournalRefold(t *testing.T) {
	dir := t.TempDir()
	codec := doc.Codec{}

	hub := newTestHub(t, Options[doc.Node]{JournalDir: dir, Codec: codec})
	a := connect(t, hub, alice)
	a.edit(t, hub, doc.AtField{Name: "title", Delta: doc.Put{Value: "kept"}})
	a.edit(t, hub, doc.Insert{Value: "survivor"})
	tip := hub.Model().Id
	assert.NoError(t, hub.Close())

	reopened, err := NewHub(doc.Node{Value: "root"}, Options[doc.Node]{
		Gen:        doc.IdGen,
		Codec:      codec,
		JournalDir: dir,
	})
	assert.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, tip, reopened.Model().Id)
	m := reopened.Model().Model
	assert.Equal(t, "kept", m.Field("title").Value)
	assert.Len(t, m.Items, 1)
	assert.Equal(t, "survivor", m.Items[0].Node.Value)
}
