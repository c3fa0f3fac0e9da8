package crosstab

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// WebsocketBus relays messages through the server's tab hub. The hub
// forwards each message to the other connections of the same user.
type WebsocketBus struct {
	logger *slog.Logger
	conn   *websocket.Conn
	out    chan api.TabMessage
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
}

var _ Bus = (*WebsocketBus)(nil)

// DialWebsocket connects to the hub at url authenticating with token.
func DialWebsocket(ctx context.Context, logger *slog.Logger, url, token string) (*WebsocketBus, error) {
	opts := &websocket.DialOptions{}
	if token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + token}}
	}

	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to dial tab hub: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	readCtx, cancel := context.WithCancel(context.Background())
	b := &WebsocketBus{
		logger: logger,
		conn:   conn,
		out:    make(chan api.TabMessage, 64),
		cancel: cancel,
	}

	b.wg.Add(1)
	go b.readLoop(readCtx)
	return b, nil
}

func (b *WebsocketBus) Publish(ctx context.Context, msg api.TabMessage) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	if err := wsjson.Write(ctx, b.conn, msg); err != nil {
		return fmt.Errorf("failed to send tab message: %w", err)
	}
	return nil
}

// Receive returns the incoming channel. It is closed when the connection ends.
func (b *WebsocketBus) Receive() <-chan api.TabMessage { return b.out }

func (b *WebsocketBus) Close() error {
	var err error
	b.once.Do(func() {
		b.closed.Store(true)
		err = b.conn.Close(websocket.StatusNormalClosure, "")
		b.cancel()
		b.wg.Wait()
	})
	return err
}

func (b *WebsocketBus) readLoop(ctx context.Context) {
	defer b.wg.Done()
	defer close(b.out)

	for {
		var msg api.TabMessage
		if err := wsjson.Read(ctx, b.conn, &msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && ctx.Err() == nil {
				b.logger.Warn("Tab hub connection lost", "error", err)
			}
			return
		}

		select {
		case b.out <- msg:
		case <-ctx.Done():
			return
		}
	}
}
