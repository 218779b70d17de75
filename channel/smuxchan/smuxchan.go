// Package smuxchan carries the tunnel channel over a smux session, so a
// single transport connection can host the frame stream next to other
// multiplexed traffic. One side opens the channel stream, the other
// accepts it.
package smuxchan

import (
	"io"

	"github.com/go-pantheon/fabrica-tun/conf"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/xtaci/smux"
)

// Channel is one multiplexed stream dedicated to the tunnel frame flow.
type Channel struct {
	session *smux.Session
	stream  *smux.Stream
}

// Client establishes the channel on the dialing side of conn.
func Client(conn io.ReadWriteCloser, cfg conf.Channel) (*Channel, error) {
	session, err := smux.Client(conn, newSmuxConfig(cfg))
	if err != nil {
		return nil, errors.Wrapf(err, "create smux client session failed")
	}

	stream, err := session.OpenStream()
	if err != nil {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}

		return nil, errors.Wrapf(err, "open channel stream failed")
	}

	return &Channel{session: session, stream: stream}, nil
}

// Server establishes the channel on the accepting side of conn.
func Server(conn io.ReadWriteCloser, cfg conf.Channel) (*Channel, error) {
	session, err := smux.Server(conn, newSmuxConfig(cfg))
	if err != nil {
		return nil, errors.Wrapf(err, "create smux server session failed")
	}

	stream, err := session.AcceptStream()
	if err != nil {
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}

		return nil, errors.Wrapf(err, "accept channel stream failed")
	}

	return &Channel{session: session, stream: stream}, nil
}

func (c *Channel) Read(b []byte) (int, error) {
	return c.stream.Read(b)
}

func (c *Channel) Write(b []byte) (int, error) {
	return c.stream.Write(b)
}

// Close tears down the channel stream and its session.
func (c *Channel) Close() error {
	err := c.stream.Close()

	if closeErr := c.session.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}

	return err
}

func newSmuxConfig(cfg conf.Channel) *smux.Config {
	smuxConfig := smux.DefaultConfig()
	smuxConfig.Version = 2
	smuxConfig.KeepAliveDisabled = !cfg.KeepAlive

	return smuxConfig
}
