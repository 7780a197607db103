package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// DialOptions customizes the client handshake.
type DialOptions struct {
	Header http.Header
}

// Dial opens a client connection to url and starts its pumps.
func Dial(ctx context.Context, url string, opts DialOptions, wg *sync.WaitGroup, config ConnectionConfig, onMessage MessageHandler, onClose OnCloseHandler, logger *slog.Logger) (*Connection, error) {
	wsConn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: opts.Header})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial %s failed with status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial %s failed: %w", url, err)
	}
	// The dial context only bounds the handshake; the connection lives until Close.
	conn := NewConnection(context.WithoutCancel(ctx), wg, wsConn, config, onMessage, onClose, logger)
	conn.Run()
	return conn, nil
}
