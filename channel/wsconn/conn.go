// Package wsconn adapts a websocket connection into the stream interface
// the channel codec expects, for deployments where the tunnel channel
// rides an HTTP path instead of a remote-desktop virtual channel.
package wsconn

import (
	"io"
	"net"
	"time"

	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/gorilla/websocket"
)

// ErrInvalidMessageType is returned when the peer sends anything other
// than binary messages on the channel.
var ErrInvalidMessageType = errors.New("invalid websocket message type")

var _ net.Conn = (*Conn)(nil)

// Conn presents a websocket connection as a byte stream. Each Write
// becomes one binary message; Reads drain messages across calls, so
// frame boundaries on the stream are independent of message boundaries.
type Conn struct {
	ws *websocket.Conn
	// current partially-read inbound message
	r io.Reader
}

func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Read implements net.Conn.
func (c *Conn) Read(b []byte) (int, error) {
	for {
		if c.r == nil {
			mt, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}

			if mt != websocket.BinaryMessage {
				return 0, ErrInvalidMessageType
			}

			c.r = r
		}

		n, err := c.r.Read(b)
		if errors.Is(err, io.EOF) {
			c.r = nil

			if n == 0 {
				continue
			}

			return n, nil
		}

		return n, err
	}
}

// Write implements net.Conn.
func (c *Conn) Write(b []byte) (n int, err error) {
	w, err := c.ws.NextWriter(websocket.BinaryMessage)
	if err != nil {
		return 0, err
	}

	defer func() {
		if closeErr := w.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	return w.Write(b)
}

// Close implements net.Conn.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// LocalAddr implements net.Conn.
func (c *Conn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

// RemoteAddr implements net.Conn.
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}

	return c.ws.SetWriteDeadline(t)
}

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

// SetWriteDeadline implements net.Conn.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
