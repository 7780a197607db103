// Package outbound batches locally generated deltas and flushes them at a
// fixed send rate, independent of how often the host ticks.
package outbound

import (
	"log/slog"
	"time"

	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/a-essam23/go-vrsync/pkg/wire"
)

const DefaultSendRate = 20.0

// Sink is the outbound side of the channel.
type Sink interface {
	Enqueue(ev wire.Event)
	Flush() error
}

type Scheduler struct {
	interval time.Duration
	elapsed  time.Duration
	epsilon  float32

	sent        session.UserTransform
	sentHead    bool
	sentPrimary bool
	sentSecond  bool

	connects    map[session.Slot]string
	disconnects map[session.Slot]struct{}

	logger *slog.Logger
}

// New creates a scheduler sending at most sendRate batches per second.
func New(logger *slog.Logger, sendRate float64) *Scheduler {
	if sendRate <= 0 {
		sendRate = DefaultSendRate
	}
	s := &Scheduler{
		interval: time.Duration(float64(time.Second) / sendRate),
		epsilon:  spatial.DefaultEpsilon,
		logger:   logger.With(slog.String("component", "outbound_scheduler")),
	}
	s.Reset()
	return s
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Reset forgets what was sent and any staged controller change.
func (s *Scheduler) Reset() {
	s.elapsed = 0
	s.sent = session.UserTransform{}
	s.sentHead, s.sentPrimary, s.sentSecond = false, false, false
	s.connects = make(map[session.Slot]string)
	s.disconnects = make(map[session.Slot]struct{})
}

// StageController records a local controller attach or detach for the next
// flush. A later change to the same slot replaces an earlier one.
func (s *Scheduler) StageController(slot session.Slot, connected bool, model string) {
	if connected {
		delete(s.disconnects, slot)
		s.connects[slot] = model
		return
	}
	delete(s.connects, slot)
	s.disconnects[slot] = struct{}{}
	if slot == session.Secondary {
		s.sentSecond = false
	} else {
		s.sentPrimary = false
	}
}

// Tick advances the accumulated time by dt. Once a send interval has passed
// it enqueues the pending deltas of local and flushes sink. It reports
// whether a flush happened.
func (s *Scheduler) Tick(dt time.Duration, local *session.LocalUser, sink Sink) (bool, error) {
	s.elapsed += dt
	if s.elapsed < s.interval {
		return false, nil
	}
	s.elapsed %= s.interval

	if local.State == session.Connected || local.State == session.Spectating {
		if ev := s.controllerDelta(); ev != nil {
			sink.Enqueue(ev)
		}
	}
	if local.State == session.Connected {
		if ev := s.positionDelta(local); ev != nil {
			sink.Enqueue(ev)
		}
	}
	return true, sink.Flush()
}

func (s *Scheduler) controllerDelta() *wire.UserControllers {
	if len(s.connects) == 0 && len(s.disconnects) == 0 {
		return nil
	}
	ev := &wire.UserControllers{}
	if len(s.connects) > 0 {
		ev.Connect = &wire.ControllerNames{}
		for slot, model := range s.connects {
			if slot == session.Secondary {
				ev.Connect.Controller2 = model
			} else {
				ev.Connect.Controller1 = model
			}
		}
	}
	for _, slot := range []session.Slot{session.Primary, session.Secondary} {
		if _, ok := s.disconnects[slot]; ok {
			ev.Disconnect = append(ev.Disconnect, SlotName(slot))
		}
	}
	s.connects = make(map[session.Slot]string)
	s.disconnects = make(map[session.Slot]struct{})
	return ev
}

func (s *Scheduler) positionDelta(local *session.LocalUser) *wire.UserPositions {
	t := local.Transform
	ev := &wire.UserPositions{}
	changed := false

	if !s.sentHead || !t.Head.ApproxEqual(s.sent.Head, s.epsilon) {
		ev.Camera = wire.PoseOf(t.Head)
		s.sent.Head, s.sentHead = t.Head, true
		changed = true
	}
	if local.Controllers.PrimaryConnected &&
		(!s.sentPrimary || !t.PrimaryController.ApproxEqual(s.sent.PrimaryController, s.epsilon)) {
		ev.Controller1 = wire.PoseOf(t.PrimaryController)
		s.sent.PrimaryController, s.sentPrimary = t.PrimaryController, true
		changed = true
	}
	if local.Controllers.SecondaryConnected &&
		(!s.sentSecond || !t.SecondaryController.ApproxEqual(s.sent.SecondaryController, s.epsilon)) {
		ev.Controller2 = wire.PoseOf(t.SecondaryController)
		s.sent.SecondaryController, s.sentSecond = t.SecondaryController, true
		changed = true
	}
	if !changed {
		return nil
	}
	return ev
}

// SlotName maps a slot to its wire name.
func SlotName(slot session.Slot) string {
	if slot == session.Secondary {
		return wire.Controller2
	}
	return wire.Controller1
}

// ParseSlot maps a wire controller name to a slot.
func ParseSlot(name string) (session.Slot, bool) {
	switch name {
	case wire.Controller1:
		return session.Primary, true
	case wire.Controller2:
		return session.Secondary, true
	default:
		return session.Primary, false
	}
}
