package relay

import (
	"log/slog"
	"time"

	"github.com/a-essam23/go-vrsync/pkg/state"
	"github.com/a-essam23/go-vrsync/pkg/wire"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// peer is one participant as seen by its own socket goroutine.
type peer struct {
	conn    *state.Connection
	room    string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func (p *peer) id() wire.ID { return wire.ID(p.conn.ID.String()) }

// Router applies the relay rules to inbound batches: it answers the
// handshake, stamps the sender onto attributable events and forwards the
// rest to the sender's room.
type Router struct {
	logger       *slog.Logger
	stateManager state.Manager
	clock        clockwork.Clock
}

func NewRouter(logger *slog.Logger, stateManager state.Manager, clock clockwork.Clock) *Router {
	return &Router{
		logger:       logger.With(slog.String("component", "event_router")),
		stateManager: stateManager,
		clock:        clock,
	}
}

// HandleMessage processes one inbound message from p. It runs on p's read
// goroutine.
func (r *Router) HandleMessage(p *peer, msg []byte) {
	messagesReceived.Inc()
	if p.limiter != nil && !p.limiter.Allow() {
		p.logger.Warn("Rate limit exceeded, dropping message", slog.Int("bytes", len(msg)))
		messagesDropped.WithLabelValues("rate_limited").Inc()
		return
	}

	events, skipped, err := wire.DecodeBatch(msg)
	if err != nil {
		p.logger.Warn("Dropping malformed message", slog.Any("error", err))
		messagesDropped.WithLabelValues("malformed").Inc()
		return
	}
	for _, s := range skipped {
		p.logger.Warn("Skipping event in batch", slog.Any("error", s))
	}

	var relayed []wire.Event
	for _, ev := range events {
		if _, isConnect := ev.(*wire.ConnectRequest); !isConnect && !p.conn.Avatar().Joined {
			p.logger.Debug("Dropping event before handshake", slog.String("event", string(ev.Kind())))
			continue
		}
		switch ev := ev.(type) {
		case *wire.ConnectRequest:
			r.handleConnect(p, ev)
		case *wire.DisconnectRequest:
			r.broadcast(p, relayed)
			p.logger.Info("Participant asked to disconnect")
			p.conn.Transport.Close(nil)
			return
		case *wire.UserPositions:
			ev.ID = p.id()
			p.conn.UpdateAvatar(func(a *state.Avatar) { mergePositions(a, ev) })
			relayed = append(relayed, ev)
		case *wire.UserControllers:
			ev.ID = p.id()
			p.conn.UpdateAvatar(func(a *state.Avatar) { mergeControllers(a, ev) })
			relayed = append(relayed, ev)
		case *wire.AppBinded:
			ev.UserID = p.id()
			relayed = append(relayed, ev)
		case *wire.HighlightUpdate:
			ev.UserID = p.id()
			relayed = append(relayed, ev)
		case *wire.SpectatingUpdate:
			ev.UserID = p.id()
			relayed = append(relayed, ev)
		case *wire.Ping:
			r.observePing(ev)
		case *wire.SelfConnecting, *wire.SelfConnected, *wire.UserConnected, *wire.UserDisconnect:
			p.logger.Warn("Dropping server-only event from client", slog.String("event", string(ev.Kind())))
		default:
			relayed = append(relayed, ev)
		}
	}
	r.broadcast(p, relayed)
}

// HandleClose tells the room that p has left.
func (r *Router) HandleClose(p *peer) {
	if !p.conn.Avatar().Joined {
		return
	}
	r.broadcast(p, []wire.Event{&wire.UserDisconnect{ID: p.id()}})
}

func (r *Router) handleConnect(p *peer, ev *wire.ConnectRequest) {
	if p.conn.Avatar().Joined {
		p.logger.Warn("Ignoring repeated connect request")
		return
	}
	p.conn.UpdateAvatar(func(a *state.Avatar) {
		if ev.Name != "" {
			a.Name = ev.Name
		}
		if a.Name == "" {
			a.Name = "guest"
		}
		a.Joined = true
	})

	users := []wire.RosterUser{}
	for _, m := range r.peers(p) {
		users = append(users, m.Roster())
	}
	self := p.conn.Roster()
	r.send(p, &wire.SelfConnected{Self: &self, Users: users})
	r.broadcast(p, []wire.Event{&wire.UserConnected{User: self}})
	p.logger.Info("Participant joined", slog.String("name", self.Name), slog.Int("peers", len(users)))
}

// peers returns the joined members of p's room other than p.
func (r *Router) peers(p *peer) []*state.Connection {
	members, err := r.stateManager.GetRoomMembers(p.room)
	if err != nil {
		return nil
	}
	out := members[:0]
	for _, m := range members {
		if m.ID != p.conn.ID && m.Avatar().Joined {
			out = append(out, m)
		}
	}
	return out
}

func (r *Router) send(p *peer, events ...wire.Event) {
	msg, err := wire.EncodeBatch(events, r.clock.Now())
	if err != nil {
		p.logger.Error("Failed to encode message", slog.Any("error", err))
		return
	}
	if err := p.conn.Transport.Send(msg); err != nil {
		messagesDropped.WithLabelValues("send_failed").Inc()
	}
}

func (r *Router) broadcast(from *peer, events []wire.Event) {
	if len(events) == 0 {
		return
	}
	msg, err := wire.EncodeBatch(events, r.clock.Now())
	if err != nil {
		from.logger.Error("Failed to encode broadcast", slog.Any("error", err))
		return
	}
	for _, m := range r.peers(from) {
		if err := m.Transport.Send(msg); err != nil {
			messagesDropped.WithLabelValues("send_failed").Inc()
			continue
		}
	}
	eventsRelayed.Add(float64(len(events)))
}

func (r *Router) observePing(ev *wire.Ping) {
	if ev.Time <= 0 {
		return
	}
	rtt := r.clock.Since(time.UnixMilli(ev.Time))
	if rtt >= 0 {
		pingRTT.Observe(rtt.Seconds())
	}
}

func mergePositions(a *state.Avatar, ev *wire.UserPositions) {
	if ev.Camera != nil {
		a.Camera = ev.Camera
	}
	if ev.Controller1 != nil {
		a.Controller1 = ev.Controller1
	}
	if ev.Controller2 != nil {
		a.Controller2 = ev.Controller2
	}
}

func mergeControllers(a *state.Avatar, ev *wire.UserControllers) {
	if c := ev.Connect; c != nil {
		if c.Controller1 != "" {
			a.Controllers.Controller1 = c.Controller1
		}
		if c.Controller2 != "" {
			a.Controllers.Controller2 = c.Controller2
		}
	}
	for _, name := range ev.Disconnect {
		switch name {
		case wire.Controller1:
			a.Controllers.Controller1 = ""
			a.Controller1 = nil
		case wire.Controller2:
			a.Controllers.Controller2 = ""
			a.Controller2 = nil
		}
	}
}
