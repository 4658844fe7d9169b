// Demo: two clients edit one document through an in-process hub.
// Alice edits a title and inserts list items while Bob stamps the
// document; both end up with identical models, fresh guids included,
// without either waiting for the other.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/trepidacious/treesync"
	"github.com/trepidacious/treesync/doc"
	"github.com/trepidacious/treesync/effect"
	"github.com/trepidacious/treesync/ids"
	"github.com/trepidacious/treesync/server"
	"github.com/trepidacious/treesync/utils"
)

const alice = ids.ClientId(0xa)
const bob = ids.ClientId(0xb)

type client struct {
	state   treesync.ClientState[doc.Node]
	session *server.Session[doc.Node]
	clock   *effect.LogicalClock
	hub     *server.Hub[doc.Node]
}

func connect(hub *server.Hub[doc.Node], id ids.ClientId) (*client, error) {
	session, full := hub.Connect(id)
	state, err := treesync.FromFirstUpdate(doc.IdGen, full)
	if err != nil {
		return nil, err
	}
	return &client{state: state, session: session, clock: &effect.LogicalClock{}, hub: hub}, nil
}

// edit applies a delta optimistically and submits it to the hub.
func (c *client) edit(delta treesync.Delta[doc.Node]) error {
	io := c.clock.Now()
	next, deltaId := c.state.Apply(delta, io)
	c.state = next
	return c.hub.Submit(c.state.Id(), delta, deltaId, io)
}

// sync drains the session queue and folds every update in.
func (c *client) sync() error {
	updates, err := c.session.Updates()
	if err != nil {
		return err
	}
	for _, u := range updates {
		switch v := u.(type) {
		case treesync.ModelFullUpdate[doc.Node]:
			c.state, err = c.state.FullUpdate(v)
		case treesync.ModelIncrementalUpdate[doc.Node]:
			c.state, err = c.state.Update(v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func run() error {
	hub, err := server.NewHub(doc.Node{Value: "shopping"}, server.Options[doc.Node]{
		Gen:    doc.IdGen,
		Codec:  doc.Codec{},
		Logger: utils.NewDefaultLogger(slog.LevelWarn),
	})
	if err != nil {
		return err
	}
	defer hub.Close()

	a, err := connect(hub, alice)
	if err != nil {
		return err
	}
	b, err := connect(hub, bob)
	if err != nil {
		return err
	}

	if err = a.edit(doc.AtField{Name: "title", Delta: doc.Put{Value: "groceries"}}); err != nil {
		return err
	}
	if err = a.edit(doc.Insert{Value: "milk"}); err != nil {
		return err
	}
	if err = b.edit(doc.Stamp{}); err != nil {
		return err
	}
	if err = a.edit(doc.Insert{Value: "bread"}); err != nil {
		return err
	}

	if err = a.sync(); err != nil {
		return err
	}
	if err = b.sync(); err != nil {
		return err
	}

	fmt.Printf("server model %s\n", hub.Model().Id)
	for _, c := range []*client{a, b} {
		m := c.state.Model()
		fmt.Printf("client %x: title=%q stamp=%d pending=%d\n",
			uint32(c.state.Id()), m.Field("title").Value, m.Stamp, len(c.state.Pending()))
		for _, it := range m.Items {
			fmt.Printf("  item %s = %q\n", it.Id, it.Node.Value)
		}
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
