package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	sendBufferSize = 256
)

type outMessage struct {
	messageType int
	data        []byte
}

// WSConnection adapts a gorilla websocket to the Connection interface. All
// writes funnel through a single writePump goroutine so that text and audio
// frames from concurrent senders never interleave mid-message.
type WSConnection struct {
	ws     *websocket.Conn
	logger *slog.Logger
	send   chan outMessage
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewWSConnection(ws *websocket.Conn, logger *slog.Logger) *WSConnection {
	if logger == nil {
		logger = slog.Default()
	}

	c := &WSConnection{
		ws:     ws,
		logger: logger,
		send:   make(chan outMessage, sendBufferSize),
		done:   make(chan struct{}),
	}

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	return c
}

func (c *WSConnection) SendText(ctx context.Context, text string) error {
	return c.enqueue(ctx, outMessage{messageType: websocket.TextMessage, data: []byte(text)})
}

// SendAudio frames synthesized speech bytes with the outbound audio tag
// before queueing them as a binary message.
func (c *WSConnection) SendAudio(ctx context.Context, audio []byte) error {
	return c.enqueue(ctx, outMessage{messageType: websocket.BinaryMessage, data: EncodeAudioFrame(audio)})
}

func (c *WSConnection) enqueue(ctx context.Context, msg outMessage) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReadFrame blocks until the next inbound message and decodes its type tag.
// Decode failures (unknown tag, empty message) are returned without
// consuming the connection; transport-level read errors are terminal.
func (c *WSConnection) ReadFrame() (Frame, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
			c.logger.Error("websocket read error", "error", err)
		}
		return Frame{}, ErrConnectionClosed
	}
	return DecodeFrame(data)
}

func (c *WSConnection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *WSConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.ws.Close()
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(msg.messageType, msg.data); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
