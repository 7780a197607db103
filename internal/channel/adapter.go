// Package channel owns the session socket. Outbound events are queued and
// flushed as one JSON array per message; inbound messages are buffered by the
// socket goroutines and handed to the engine only from Pump, which runs on
// the engine's driver thread.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/a-essam23/go-vrsync/pkg/transport"
	"github.com/a-essam23/go-vrsync/pkg/wire"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// SessionCookie carries the optional auth token during the handshake.
const SessionCookie = "session-token"

// Link is the socket behind an open channel.
type Link interface {
	Send(msg []byte) error
	WriteNow(ctx context.Context, msg []byte) error
	Close(err error)
}

// Dialer opens a link. onMessage and onClose are called from socket goroutines.
type Dialer func(ctx context.Context, url string, header http.Header, onMessage func([]byte), onClose func(error)) (Link, error)

// Handler receives every decoded batch in arrival order.
type Handler func(batch []wire.Event)

type Config struct {
	Path         string
	Room         string
	Token        string
	InboxSize    int
	CloseTimeout time.Duration
	Transport    transport.ConnectionConfig
}

type inbound struct {
	generation uint64
	raw        []byte
	closed     bool
	err        error
}

type Adapter struct {
	cfg    Config
	dial   Dialer
	clock  clockwork.Clock
	logger *slog.Logger

	link       Link
	linkDone   chan struct{}
	generation uint64
	queue      []wire.Event
	inbox      chan inbound

	handler Handler
	onLost  func(error)
}

type Option func(*Adapter)

// WithDialer replaces the WebSocket dialer, mainly for tests.
func WithDialer(d Dialer) Option {
	return func(a *Adapter) { a.dial = d }
}

func New(logger *slog.Logger, cfg Config, clock clockwork.Clock, opts ...Option) *Adapter {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	a := &Adapter{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(slog.String("component", "channel")),
		inbox:  make(chan inbound, cfg.InboxSize),
	}
	a.dial = a.websocketDialer
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) SetHandler(h Handler) { a.handler = h }

// SetOnLost registers the callback for a socket closure nobody asked for.
func (a *Adapter) SetOnLost(fn func(error)) { a.onLost = fn }

func (a *Adapter) IsOpen() bool { return a.link != nil }

// Pending reports the number of queued outbound events.
func (a *Adapter) Pending() int { return len(a.queue) }

// Connect opens the channel to host:port.
func (a *Adapter) Connect(ctx context.Context, host string, port int) error {
	if host == "" || port <= 0 {
		return &ConnectionError{Host: host, Port: port, Err: ErrMissingEndpoint}
	}
	if a.link != nil {
		return &ConnectionError{Host: host, Port: port, Err: ErrAlreadyConnected}
	}

	path := strings.TrimPrefix(a.cfg.Path, "/")
	url := fmt.Sprintf("ws://%s/%s", net.JoinHostPort(host, strconv.Itoa(port)), path)
	if a.cfg.Room != "" {
		url += "?" + neturl.Values{"room": {a.cfg.Room}}.Encode()
	}
	header := http.Header{}
	if a.cfg.Token != "" {
		header.Add("Cookie", (&http.Cookie{Name: SessionCookie, Value: a.cfg.Token}).String())
	}

	a.generation++
	gen := a.generation
	done := make(chan struct{})
	inbox := a.inbox
	push := func(in inbound) {
		select {
		case inbox <- in:
		case <-done:
		}
	}
	onMessage := func(raw []byte) { push(inbound{generation: gen, raw: raw}) }
	onClose := func(err error) { push(inbound{generation: gen, closed: true, err: err}) }

	link, err := a.dial(ctx, url, header, onMessage, onClose)
	if err != nil {
		close(done)
		return &ConnectionError{Host: host, Port: port, Err: err}
	}
	a.link = link
	a.linkDone = done
	a.logger.Info("Channel opened", slog.String("url", url))
	return nil
}

// Enqueue appends ev to the outbound queue. It never blocks and drops the
// event when the channel is closed.
func (a *Adapter) Enqueue(ev wire.Event) {
	if a.link == nil {
		a.logger.Debug("Dropping event on closed channel", slog.String("event", string(ev.Kind())))
		return
	}
	wire.Stamp(ev, a.clock.Now())
	a.queue = append(a.queue, ev)
}

// Flush sends the whole queue as one message and clears it.
func (a *Adapter) Flush() error {
	if len(a.queue) == 0 {
		return nil
	}
	if a.link == nil {
		a.queue = nil
		return ErrClosed
	}
	batch := a.queue
	a.queue = nil
	msg, err := wire.EncodeBatch(batch, a.clock.Now())
	if err != nil {
		return err
	}
	if err := a.link.Send(msg); err != nil {
		return fmt.Errorf("failed to send batch of %d events: %w", len(batch), err)
	}
	batchesFlushed.Inc()
	return nil
}

// OnMessage decodes one inbound message and hands its events to the handler
// in array order. Undecodable elements are skipped.
func (a *Adapter) OnMessage(raw []byte) {
	events, skipped, err := wire.DecodeBatch(raw)
	if err != nil {
		a.logger.Warn("Dropping malformed message", slog.Any("error", err), slog.Int("bytes", len(raw)))
		eventsSkipped.WithLabelValues("malformed").Inc()
		return
	}
	for _, s := range skipped {
		a.logger.Warn("Skipping event in batch", slog.Any("error", s))
		eventsSkipped.WithLabelValues(skipReason(s)).Inc()
	}
	if len(events) == 0 || a.handler == nil {
		return
	}
	a.handler(events)
}

// Pump drains buffered inbound messages on the caller's goroutine and
// returns how many were handled. A lost socket stops the drain.
func (a *Adapter) Pump() int {
	handled := 0
	for {
		select {
		case in := <-a.inbox:
			if in.generation != a.generation || a.link == nil {
				continue
			}
			if in.closed {
				a.lost(in.err)
				return handled
			}
			a.OnMessage(in.raw)
			handled++
		default:
			return handled
		}
	}
}

// Close sends a disconnect notice, then tears the socket down. Calling it on
// a closed channel does nothing.
func (a *Adapter) Close() {
	if a.link == nil {
		return
	}
	msg, err := wire.EncodeBatch([]wire.Event{&wire.DisconnectRequest{}}, a.clock.Now())
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.CloseTimeout)
		if err := a.link.WriteNow(ctx, msg); err != nil {
			a.logger.Debug("Disconnect notice not delivered", slog.Any("error", err))
		}
		cancel()
	}
	a.teardown(nil)
	a.logger.Info("Channel closed")
}

func (a *Adapter) lost(err error) {
	a.logger.Warn("Channel lost", slog.Any("error", err))
	a.teardown(err)
	if a.onLost != nil {
		a.onLost(err)
	}
}

func (a *Adapter) teardown(err error) {
	link := a.link
	close(a.linkDone)
	a.link = nil
	a.linkDone = nil
	a.queue = nil
	a.generation++
	link.Close(err)
	for {
		select {
		case <-a.inbox:
		default:
			return
		}
	}
}

func (a *Adapter) websocketDialer(ctx context.Context, url string, header http.Header, onMessage func([]byte), onClose func(error)) (Link, error) {
	conn, err := transport.Dial(ctx, url, transport.DialOptions{Header: header}, nil, a.cfg.Transport,
		func(_ context.Context, _ uuid.UUID, msg []byte) { onMessage(msg) },
		func(_ uuid.UUID, err error) { onClose(err) },
		a.logger,
	)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, wire.ErrUnknownKind):
		return "unknown_kind"
	case errors.Is(err, wire.ErrMissingField), errors.Is(err, wire.ErrMissingKind):
		return "missing_field"
	default:
		return "malformed"
	}
}
