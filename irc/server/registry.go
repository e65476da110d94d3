package server

import (
	"sort"
)

// clientRegistry owns every client session. byNick only holds registered
// clients; pending nicknames are checked by scanning byID.
type clientRegistry struct {
	byID   map[string]*Client
	byNick map[string]*Client
}

func newClientRegistry() *clientRegistry {
	return &clientRegistry{
		byID:   make(map[string]*Client),
		byNick: make(map[string]*Client),
	}
}

func (r *clientRegistry) add(c *Client) {
	r.byID[c.ID] = c
}

func (r *clientRegistry) get(id string) *Client {
	return r.byID[id]
}

// lookup resolves a registered nickname
func (r *clientRegistry) lookup(nick string) *Client {
	return r.byNick[nick]
}

// bind inserts a registered client into the nickname index
func (r *clientRegistry) bind(c *Client) {
	r.byNick[c.Nickname] = c
}

// nickInUse reports whether any client, registered or pending, holds nick
func (r *clientRegistry) nickInUse(nick string) bool {
	if _, ok := r.byNick[nick]; ok {
		return true
	}
	for _, c := range r.byID {
		if c.Nickname == nick {
			return true
		}
	}
	return false
}

func (r *clientRegistry) remove(c *Client) {
	delete(r.byID, c.ID)
	if bound, ok := r.byNick[c.Nickname]; ok && bound == c {
		delete(r.byNick, c.Nickname)
	}
}

func (r *clientRegistry) registered() int {
	return len(r.byNick)
}

// all returns every client ordered by nickname, then ID
func (r *clientRegistry) all() []*Client {
	out := make([]*Client, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	sortByNick(out)
	return out
}

func sortByNick(clients []*Client) {
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].Nickname != clients[j].Nickname {
			return clients[i].Nickname < clients[j].Nickname
		}
		return clients[i].ID < clients[j].ID
	})
}

// channelRegistry owns channels by name. Channels are never removed.
type channelRegistry struct {
	byName map[string]*Channel
}

func newChannelRegistry() *channelRegistry {
	return &channelRegistry{byName: make(map[string]*Channel)}
}

func (r *channelRegistry) get(name string) *Channel {
	return r.byName[name]
}

// create returns the named channel, creating it if needed
func (r *channelRegistry) create(name string) *Channel {
	if ch, ok := r.byName[name]; ok {
		return ch
	}
	ch := NewChannel(name)
	r.byName[name] = ch
	return ch
}

func (r *channelRegistry) len() int {
	return len(r.byName)
}

// all returns channels sorted by name
func (r *channelRegistry) all() []*Channel {
	out := make([]*Channel, 0, len(r.byName))
	for _, ch := range r.byName {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
