package transport

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/informalsystems/mq-load-test/internal/logging"
)

const (
	wsHandshakeTimeout = 30 * time.Second
	wsSendTimeout      = 10 * time.Second

	// EntityHeader carries the entity name in the WebSockets handshake.
	EntityHeader = "X-Entity"
)

// WebSocketFactory opens WebSockets connections to an ingestion endpoint.
// Each message is one text frame; a batch is one text frame holding a JSON
// array of the batched message bodies.
type WebSocketFactory struct{}

// WebSocketTransport is one WebSockets client connection.
type WebSocketTransport struct {
	conn     *websocket.Conn
	logger   logging.Logger
	received chan struct{} // Closed when the receive loop terminates.
}

var _ Factory = (*WebSocketFactory)(nil)
var _ Transport = (*WebSocketTransport)(nil)

func (f *WebSocketFactory) ValidateParams(params Params) error {
	u, err := url.Parse(params.ConnectionString)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported protocol: %s (only ws:// and wss:// are supported)", u.Scheme)
	}
	return nil
}

func (f *WebSocketFactory) NewTransport(ctx context.Context, params Params) (Transport, error) {
	if err := f.ValidateParams(params); err != nil {
		return nil, err
	}
	header := http.Header{}
	if len(params.EntityName) > 0 {
		header.Set(EntityHeader, params.EntityName)
	}
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: wsHandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, params.ConnectionString, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to remote WebSockets endpoint %s: %s (status code %d): %w", params.ConnectionString, resp.Status, resp.StatusCode, err)
		}
		return nil, err
	}
	t := &WebSocketTransport{
		conn:     conn,
		logger:   loggerOrNoop(params),
		received: make(chan struct{}),
	}
	go t.receiveLoop()
	return t, nil
}

func (t *WebSocketTransport) SendOne(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsSendTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, msg.Body)
}

func (t *WebSocketTransport) SendBatch(ctx context.Context, msgs []*Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsSendTimeout))
	w, err := t.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	bodies := make([][]byte, 0, len(msgs))
	for _, msg := range msgs {
		bodies = append(bodies, msg.Body)
	}
	if _, err := w.Write([]byte{'['}); err != nil {
		return err
	}
	if _, err := w.Write(bytes.Join(bodies, []byte{','})); err != nil {
		return err
	}
	if _, err := w.Write([]byte{']'}); err != nil {
		return err
	}
	return w.Close()
}

// Close tries to cleanly shut down the connection before closing it.
func (t *WebSocketTransport) Close(ctx context.Context) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(wsSendTimeout))
	err := t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		t.logger.Debug("Failed to write close message", "err", err)
	} else {
		select {
		case <-t.received:
		case <-ctx.Done():
		case <-time.After(wsSendTimeout):
		}
	}
	return t.conn.Close()
}

// receiveLoop drains whatever the remote endpoint sends back so that control
// frames (pings, close) get processed.
func (t *WebSocketTransport) receiveLoop() {
	defer close(t.received)
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				t.logger.Debug("Receive loop terminated", "err", err)
			}
			return
		}
	}
}
