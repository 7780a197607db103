package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/a-essam23/go-vrsync/internal/channel"
	"github.com/a-essam23/go-vrsync/internal/engine"
	"github.com/a-essam23/go-vrsync/pkg/config"
	"github.com/a-essam23/go-vrsync/pkg/session"
	"github.com/a-essam23/go-vrsync/pkg/spatial"
	"github.com/a-essam23/go-vrsync/pkg/transport"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var errConnectionLost = errors.New("connection to the session was lost")

var (
	clientHost string
	clientPort int
	clientRoom string
	clientName string
)

func init() {
	clientCmd.Flags().StringVar(&clientHost, "host", "", "session host, overrides client.host")
	clientCmd.Flags().IntVar(&clientPort, "port", 0, "session port, overrides client.port")
	clientCmd.Flags().StringVar(&clientRoom, "room", "", "room to join, overrides client.room")
	clientCmd.Flags().StringVar(&clientName, "name", "", "display name, overrides client.displayName")
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "join a session headless and log what happens in it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		applyClientFlags(&cfg.Client)
		engCfg, err := engineConfig(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		eng := engine.New(logger, engCfg)
		eng.Subscribe(notificationLogger(logger))
		if err := eng.Connect(ctx); err != nil {
			return err
		}
		return drive(ctx, logger, eng, clockwork.NewRealClock(), cfg.Client.TickRate)
	},
}

func applyClientFlags(c *config.ClientConfig) {
	if clientHost != "" {
		c.Host = clientHost
	}
	if clientPort != 0 {
		c.Port = clientPort
	}
	if clientRoom != "" {
		c.Room = clientRoom
	}
	if clientName != "" {
		c.DisplayName = clientName
	}
}

func engineConfig(cfg *config.Config) (engine.Config, error) {
	color, err := spatial.ParseHexColor(cfg.Client.Color)
	if err != nil {
		return engine.Config{}, fmt.Errorf("client.color: %w", err)
	}
	return engine.Config{
		Host:     cfg.Client.Host,
		Port:     cfg.Client.Port,
		SendRate: cfg.Client.SendRate,
		Profile: session.Profile{
			DisplayName: cfg.Client.DisplayName,
			Color:       color,
			Handedness:  session.ParseHandedness(cfg.Client.Handedness),
		},
		Channel: channel.Config{
			Path:         cfg.Client.Path,
			Room:         cfg.Client.Room,
			Token:        cfg.Client.Token,
			InboxSize:    cfg.Client.InboxSize,
			CloseTimeout: cfg.Client.CloseTimeout,
			Transport:    transport.ConnectionConfig(cfg.Transport),
		},
	}, nil
}

// drive ticks the engine at tickRate until ctx ends or the session is lost.
func drive(ctx context.Context, logger *slog.Logger, eng *engine.Engine, clock clockwork.Clock, tickRate float64) error {
	if tickRate <= 0 {
		tickRate = 90
	}
	ticker := clock.NewTicker(time.Duration(float64(time.Second) / tickRate))
	defer ticker.Stop()

	last := clock.Now()
	for {
		select {
		case <-ctx.Done():
			eng.Disconnect()
			return nil
		case now := <-ticker.Chan():
			dt := now.Sub(last)
			last = now
			if err := eng.Tick(dt); err != nil {
				logger.Debug("Tick failed", slog.Any("error", err))
			}
			if eng.State() == session.Offline {
				return errConnectionLost
			}
		}
	}
}

func notificationLogger(logger *slog.Logger) func(engine.Notification) {
	logger = logger.With(slog.String("component", "client"))
	return func(n engine.Notification) {
		switch n := n.(type) {
		case engine.UserMessage:
			logger.Info(n.Text, slog.String("userID", n.UserID))
		case engine.ConnectionStateChanged:
			logger.Info("Session state", slog.String("state", n.State.String()))
		case engine.AvatarMoved, engine.ApplicationMoved, engine.LocalUserMoved:
			// too chatty for the log
		default:
			logger.Debug("Session changed", slog.String("type", fmt.Sprintf("%T", n)), slog.Any("detail", n))
		}
	}
}
