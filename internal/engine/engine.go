// Package engine reconciles the local user's session with the rest of the
// room. It applies inbound batches to the session store and the ledger,
// turns local actions into outbound events and tells the rendering side what
// changed.
//
// An Engine is not safe for concurrent use. Every method, including Tick,
// must be called from the same driver goroutine; socket goroutines only
// buffer messages that Tick later applies.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/a-essam23/go-vrsync/internal/channel"
	"github.com/a-essam23/go-vrsync/internal/outbound"
	"github.com/a-essam23/go-vrsync/pkg/ledger"
	"github.com/a-essam23/go-vrsync/pkg/notify"
	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/jonboulle/clockwork"
)

var (
	ErrNotConnected       = errors.New("not connected to a session")
	ErrAlreadyConnected   = errors.New("session already started")
	ErrSpectateTarget     = errors.New("spectate target is not a remote user")
	ErrHoldingApplication = errors.New("release held applications before spectating")
	ErrSpectating         = errors.New("not allowed while spectating")
	ErrUnknownApplication = errors.New("application is not open")
	ErrApplicationHeld    = errors.New("application is held by another user")
	ErrNotHolder          = errors.New("application is not held by the local user")
	ErrNotHighlighted     = errors.New("entity is not highlighted by the local user")
)

type Config struct {
	Host     string
	Port     int
	Profile  session.Profile
	SendRate float64
	Channel  channel.Config
}

// ColorSource reports the color an entity is drawn with when nobody
// highlights it.
type ColorSource interface {
	EntityColor(appID, entityID string) spatial.Color
}

type Engine struct {
	cfg    Config
	logger *slog.Logger
	clock  clockwork.Clock
	colors ColorSource

	store     *session.Store
	ledger    *ledger.Ledger
	channel   *channel.Adapter
	scheduler *outbound.Scheduler

	subject  notify.Subject[Notification]
	pending  []Notification
	batching bool
	// epoch changes on every disconnect so a batch can tell it was cut short.
	epoch uint64

	spectateTarget string
	preSpectate    spatial.Pose

	channelOpts []channel.Option
}

type Option func(*Engine)

func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithColorSource(src ColorSource) Option {
	return func(e *Engine) { e.colors = src }
}

// WithChannelOptions is passed through to the channel adapter.
func WithChannelOptions(opts ...channel.Option) Option {
	return func(e *Engine) { e.channelOpts = append(e.channelOpts, opts...) }
}

func New(logger *slog.Logger, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "engine")),
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.store = session.NewStore(logger, cfg.Profile)
	e.ledger = ledger.New(logger)
	e.scheduler = outbound.New(logger, cfg.SendRate)
	e.channel = channel.New(logger, cfg.Channel, e.clock, e.channelOpts...)
	e.channel.SetHandler(e.applyBatch)
	e.channel.SetOnLost(e.connectionLost)
	return e
}

// Subscribe registers fn for every notification.
func (e *Engine) Subscribe(fn func(Notification)) notify.Subscription {
	return e.subject.Subscribe(fn)
}

func (e *Engine) Unsubscribe(id notify.Subscription) {
	e.subject.Unsubscribe(id)
}

func (e *Engine) State() session.ConnectionState { return e.store.Local().State }

// Local returns the local user. Treat it as read-only.
func (e *Engine) Local() *session.LocalUser { return e.store.Local() }

func (e *Engine) Users() *session.Store { return e.store }

func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// SpectateTarget returns the user being spectated, or "".
func (e *Engine) SpectateTarget() string { return e.spectateTarget }

// Connect opens the session channel. The handshake completes during later
// ticks.
func (e *Engine) Connect(ctx context.Context) error {
	if e.State() != session.Offline {
		return ErrAlreadyConnected
	}
	if err := e.channel.Connect(ctx, e.cfg.Host, e.cfg.Port); err != nil {
		e.logger.Warn("Connect failed", slog.Any("error", err))
		return err
	}
	e.store.SetState(session.Connecting)
	e.emit(ConnectionStateChanged{State: session.Connecting})
	return nil
}

// Disconnect ends the session and forgets all session state. Calling it
// while offline does nothing.
func (e *Engine) Disconnect() {
	e.disconnect(nil)
}

func (e *Engine) connectionLost(err error) {
	e.logger.Warn("Connection lost", slog.Any("error", err))
	e.disconnect(err)
}

func (e *Engine) disconnect(cause error) {
	if e.State() == session.Offline && !e.channel.IsOpen() {
		return
	}
	if cause == nil {
		e.channel.Close()
	}
	e.epoch++
	e.spectateTarget = ""
	e.store.Reset()
	e.ledger.Reset()
	e.scheduler.Reset()
	remoteUsers.Set(0)
	e.logger.Info("Disconnected")

	// Anything the interrupted batch buffered describes state that is gone.
	e.pending = e.pending[:0]
	e.emit(SessionCleared{})
	e.emit(ConnectionStateChanged{State: session.Offline})
}

// Tick applies everything received since the last tick, keeps a spectated
// head in sync and sends the local deltas when a send interval has passed.
func (e *Engine) Tick(dt time.Duration) error {
	e.channel.Pump()
	if e.State() == session.Spectating {
		e.followSpectateTarget()
	}
	if e.State() == session.Offline {
		return nil
	}
	if _, err := e.scheduler.Tick(dt, e.store.Local(), e.channel); err != nil {
		e.logger.Warn("Flush failed", slog.Any("error", err))
		return err
	}
	return nil
}

func (e *Engine) localID() string { return e.store.Local().UserID }

// requireSession fails unless the handshake has completed.
func (e *Engine) requireSession() error {
	switch e.State() {
	case session.Connected, session.Spectating:
		return nil
	default:
		return ErrNotConnected
	}
}

func (e *Engine) originalColor(appID, entityID string) spatial.Color {
	if e.colors == nil {
		return spatial.Color{}
	}
	return e.colors.EntityColor(appID, entityID)
}

func (e *Engine) emit(n Notification) {
	if e.batching {
		e.pending = append(e.pending, n)
		return
	}
	e.subject.Notify(n)
}

func (e *Engine) flushNotifications() {
	pending := e.pending
	e.pending = nil
	for _, n := range pending {
		e.subject.Notify(n)
	}
}
