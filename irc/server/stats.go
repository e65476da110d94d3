package server

import (
	"context"
	"strings"
	"time"

	"github.com/presbrey/ircd/irc"
)

// Stats is a point-in-time summary of the server
type Stats struct {
	Sessions   int       `json:"sessions"`
	Registered int       `json:"registered"`
	Channels   int       `json:"channels"`
	StartedAt  time.Time `json:"started_at"`
	Uptime     string    `json:"uptime"`
}

// ChannelInfo describes one channel for the admin API
type ChannelInfo struct {
	Name      string    `json:"name"`
	Topic     string    `json:"topic"`
	Modes     string    `json:"modes"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats collects counters on the event loop
func (s *Server) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.Do(ctx, func() {
		for _, c := range s.clients.byID {
			if !c.Synthetic() {
				st.Sessions++
			}
		}
		st.Registered = s.clients.registered()
		st.Channels = s.channels.len()
		st.StartedAt = s.startTime
		st.Uptime = time.Since(s.startTime).Round(time.Second).String()
	})
	return st, err
}

// ChannelList describes every channel, sorted by name. Members carry '@'
// for operators.
func (s *Server) ChannelList(ctx context.Context) ([]ChannelInfo, error) {
	var out []ChannelInfo
	err := s.Do(ctx, func() {
		for _, ch := range s.channels.all() {
			members := []string{}
			if list := ch.NamesList(); list != "" {
				members = strings.Split(list, " ")
			}
			out = append(out, ChannelInfo{
				Name:      ch.Name,
				Topic:     ch.Topic,
				Modes:     ch.GetModeString(),
				Members:   members,
				CreatedAt: ch.CreatedAt,
			})
		}
	})
	return out, err
}

// NoticeChannel sends a server NOTICE to every member of a channel. Line
// breaks in text are flattened to spaces.
func (s *Server) NoticeChannel(ctx context.Context, name, text string) error {
	text = strings.NewReplacer("\r", " ", "\n", " ").Replace(text)

	var result error
	err := s.Do(ctx, func() {
		channel := s.channels.get(name)
		if channel == nil {
			result = ErrNoSuchChannel
			return
		}
		s.broadcast(channel, irc.NewMessage(s.config.Server.Name, "NOTICE", channel.Name, text), nil)
	})
	if err != nil {
		return err
	}
	return result
}
