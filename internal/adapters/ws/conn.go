// Package ws carries the control stream over a WebSocket so browser clients
// can use the same session loop as TCP clients.
package ws

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn adapts a WebSocket to net.Conn. Inbound text messages are control
// lines and get a trailing newline if they lack one; inbound binary messages
// are raw payload bytes. Each Write goes out as one binary message.
type Conn struct {
	ws *websocket.Conn

	reader io.Reader

	writeMu sync.Mutex
	closeMu sync.Once
}

var _ net.Conn = (*Conn)(nil)

func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) Read(b []byte) (int, error) {
	for {
		if c.reader != nil {
			n, err := c.reader.Read(b)
			if errors.Is(err, io.EOF) {
				c.reader = nil
				if n > 0 {
					return n, nil
				}
				continue
			}
			return n, err
		}
		kind, r, err := c.ws.NextReader()
		if err != nil {
			return 0, mapCloseErr(err)
		}
		switch kind {
		case websocket.TextMessage:
			msg, err := io.ReadAll(r)
			if err != nil {
				return 0, mapCloseErr(err)
			}
			if !bytes.HasSuffix(msg, []byte("\n")) {
				msg = append(msg, '\n')
			}
			c.reader = bytes.NewReader(msg)
		case websocket.BinaryMessage:
			c.reader = r
		}
	}
}

func (c *Conn) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, mapCloseErr(err)
	}
	return len(b), nil
}

func (c *Conn) Close() error {
	var err error
	c.closeMu.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *Conn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

// mapCloseErr turns a normal close into io.EOF, which is how a TCP peer
// hanging up looks to the session loop.
func mapCloseErr(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
