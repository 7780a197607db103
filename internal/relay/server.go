// Package relay is a small development server speaking the session protocol.
// Every room is a broadcast domain: the relay assigns ids and colors, answers
// the handshake and forwards each participant's events to the rest of its
// room. It keeps no application state beyond the avatars needed for late
// joiners' rosters.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/a-essam23/go-vrsync/internal/relay/middleware"
	"github.com/a-essam23/go-vrsync/pkg/config"
	"github.com/a-essam23/go-vrsync/pkg/state"
	"github.com/a-essam23/go-vrsync/pkg/state/statemanager"
	"github.com/a-essam23/go-vrsync/pkg/transport"
	"github.com/a-essam23/go-vrsync/pkg/wire"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	router       *Router
	palette      *palette
	clock        clockwork.Clock
	wg           sync.WaitGroup
	http         *http.Server
	handler      http.Handler
	config       *config.Config

	ctx context.Context
}

type Option func(*App)

func WithClock(c clockwork.Clock) Option {
	return func(a *App) { a.clock = c }
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, opts ...Option) *App {
	app := &App{
		logger:  logger.With(slog.String("component", "relay")),
		config:  cfg,
		ctx:     rootCtx,
		clock:   clockwork.NewRealClock(),
		palette: newPalette(),
	}
	for _, opt := range opts {
		opt(app)
	}
	stateManager := statemanager.NewInMemoryManager(logger, statemanager.WithClock(app.clock))
	app.stateManager = stateManager
	app.router = NewRouter(logger, stateManager, app.clock)

	connCycler := func(userID string) {
		oldest, found := stateManager.FindOldestUserConnection(userID)
		if found {
			app.logger.Info("Cycling connection: closing oldest", slog.String("userID", userID), slog.String("connID", oldest.ID.String()))
			oldest.Transport.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(cfg.Relay.DefaultRoom),
			middleware.NewRequestLogger(app.logger),
			middleware.NewAuthMiddleware(app.logger, cfg.Relay.Auth.JWTSecret),
			middleware.NewConnectionLimiter(
				app.logger,
				stateManager.GetUserConnectionCount,
				connCycler,
				cfg.Relay.ConnectionLimit,
			),
		),
	)
	mux.Handle("/metrics", promhttp.Handler())
	app.handler = mux

	app.http = &http.Server{Addr: cfg.Relay.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}
	return app
}

// Handler serves the relay endpoints without a listener of its own.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves until the root context is cancelled, then shuts down.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Relay starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.logger.Error("HTTP server failed", slog.Any("error", err))
		return err
	case <-a.ctx.Done():
	}
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", reqMeta.UserID),
		slog.String("room", reqMeta.Room),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		connLogger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)
	participant, err := a.stateManager.RegisterConnection(conn, reqMeta.IP)
	if err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		return
	}
	if _, err := a.stateManager.AssociateUser(participant.ID, reqMeta.UserID); err != nil {
		connLogger.Error("Failed to associate user with connection", slog.Any("error", err))
		a.stateManager.DeregisterConnection(participant.ID)
		conn.Close(err)
		return
	}
	if _, err := a.stateManager.Join(participant.ID, reqMeta.Room); err != nil {
		connLogger.Error("Failed to join room", slog.Any("error", err))
		a.stateManager.DeregisterConnection(participant.ID)
		conn.Close(err)
		return
	}
	participant.UpdateAvatar(func(av *state.Avatar) {
		av.Name = reqMeta.DisplayName
		av.Color = a.palette.Next()
	})

	p := &peer{
		conn:    participant,
		room:    reqMeta.Room,
		limiter: a.newLimiter(),
		logger:  connLogger.With(slog.String("connID", participant.ID.String())),
	}
	conn.SetOnMessageHandler(func(_ context.Context, _ uuid.UUID, msg []byte) {
		a.router.HandleMessage(p, msg)
	})
	conn.SetOnCloseHandler(func(id uuid.UUID, err error) {
		p.logger.Info("Deregistering connection due to closure", slog.Any("reason", err))
		a.router.HandleClose(p)
		if dErr := a.stateManager.DeregisterConnection(id); dErr != nil {
			p.logger.Error("Failed to deregister connection from state", slog.Any("error", dErr))
		}
	})

	a.router.send(p, &wire.SelfConnecting{ID: wire.ID(participant.ID.String())})
	connections.Inc()
	defer connections.Dec()

	p.logger.Info("Participant connected")
	conn.Run()
	if a.config.Relay.PingInterval > 0 {
		go a.pingLoop(p)
	}
	<-conn.Done()
}

func (a *App) newLimiter() *rate.Limiter {
	if a.config.Relay.MessageRate <= 0 {
		return nil
	}
	burst := a.config.Relay.MessageBurst
	if burst <= 0 {
		burst = int(a.config.Relay.MessageRate)
	}
	return rate.NewLimiter(rate.Limit(a.config.Relay.MessageRate), burst)
}

// pingLoop sends numbered pings stamped with the send time. Clients echo
// them and the router observes the round trip.
func (a *App) pingLoop(p *peer) {
	ticker := a.clock.NewTicker(a.config.Relay.PingInterval)
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-p.conn.Transport.Done():
			return
		case now := <-ticker.Chan():
			seq++
			a.router.send(p, &wire.Ping{Header: wire.Header{Time: now.UnixMilli()}, Seq: seq})
		}
	}
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down relay...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("Closing all active connections...")
	allUsers, err := a.stateManager.GetAllUsers()
	if err != nil {
		return err
	}
	var open []*state.Connection
	for _, user := range allUsers {
		for _, conn := range user.Connections {
			open = append(open, conn)
		}
	}
	for _, conn := range open {
		conn.Transport.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Relay shut down gracefully.")
	return nil
}
