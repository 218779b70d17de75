package tunnel

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-tun/frame"
	"github.com/go-pantheon/fabrica-util/errors"
	"github.com/go-pantheon/fabrica-util/xsync"
	"golang.org/x/sync/errgroup"
)

const defaultStopTimeout = time.Second * 10

// errTunnelClosed unwinds both pipe loops after a clean close from
// either side. It never escapes Run.
var errTunnelClosed = errors.New("tunnel closed")

// Pipe drives both directions of one tunneled connection between a
// local socket and a dedicated channel stream. The channel multiplexer
// guarantees frame ordering; the pipe only moves and (de)frames bytes.
type Pipe struct {
	xsync.Stoppable

	tunnelID byte
	sock     io.ReadWriteCloser
	channel  io.ReadWriter
	codec    *frame.Codec
	up       *Direction
	down     *Direction
	log      *log.Helper
}

// NewPipe wires a local socket to a channel stream under one tunnel id.
func NewPipe(tunnelID byte, sock io.ReadWriteCloser, channel io.ReadWriter, opts ...Option) *Pipe {
	o := newOptions(opts...)

	return &Pipe{
		Stoppable: xsync.NewStopper(defaultStopTimeout),
		tunnelID:  tunnelID,
		sock:      sock,
		channel:   channel,
		codec:     frame.NewCodec(channel, o.conf.Compression.MaxChunkSize, o.conf.Channel.ReadBufSize, o.conf.Channel.WriteBufSize),
		up:        NewDirection(o.conf, o.logger),
		down:      NewDirection(o.conf, o.logger),
		log:       log.NewHelper(o.logger),
	}
}

// Run pumps both directions until either side closes, the context is
// canceled or Stop is called. A clean close from either peer returns nil.
func (p *Pipe) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	// unblock the loops' pending reads once the group starts unwinding
	go func() {
		<-ctx.Done()

		if err := p.sock.Close(); err != nil {
			p.log.Debugf("close socket on shutdown: %v", err)
		}

		if closer, ok := p.channel.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				p.log.Debugf("close channel on shutdown: %v", err)
			}
		}
	}()

	eg.Go(func() error {
		select {
		case <-p.StopTriggered():
			return xsync.ErrStopByTrigger
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	eg.Go(func() error {
		return xsync.Run(func() error {
			return p.sendLoop(ctx)
		})
	})
	eg.Go(func() error {
		return xsync.Run(func() error {
			return p.recvLoop(ctx)
		})
	})

	err := eg.Wait()
	if errors.Is(err, errTunnelClosed) || errors.Is(err, xsync.ErrStopByTrigger) || errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

// Stop triggers a shutdown of both loops.
func (p *Pipe) Stop() error {
	return p.TurnOff(func() error {
		return p.sock.Close()
	})
}

func (p *Pipe) sendLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := p.up.Stage(p.sock)
		if n > 0 {
			if err := p.flushAll(); err != nil {
				return err
			}
		}

		if err != nil {
			if isClosed(err) {
				// best effort close notification; the channel may already be gone
				if encErr := p.codec.Encode(frame.Frame{Cmd: frame.CmdClose, TunnelID: p.tunnelID}); encErr != nil {
					p.log.Debugf("send close frame: %v", encErr)
				}

				return errTunnelClosed
			}

			return errors.Wrap(err, "stage from socket failed")
		}
	}
}

// isClosed reports whether err is the normal end of a connection rather
// than a fault.
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}

func (p *Pipe) flushAll() error {
	for p.up.Buffered() > 0 {
		f, free, err := p.up.Flush(p.tunnelID)
		if err != nil {
			return err
		}

		err = p.codec.Encode(f)

		free()

		if err != nil {
			return err
		}
	}

	return nil
}

func (p *Pipe) recvLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, free, err := p.codec.Decode()
		if err != nil {
			if isClosed(err) {
				return errTunnelClosed
			}

			return err
		}

		closed, err := p.handleFrame(f)

		free()

		if err != nil {
			return err
		}

		if closed {
			return errTunnelClosed
		}
	}
}

func (p *Pipe) handleFrame(f frame.Frame) (closed bool, err error) {
	switch f.Cmd {
	case frame.CmdData, frame.CmdCompressedData:
		if f.TunnelID != p.tunnelID {
			p.log.Warnf("frame for tunnel %d dropped on tunnel %d stream", f.TunnelID, p.tunnelID)

			return false, nil
		}

		if err := p.down.Receive(f); err != nil {
			return false, err
		}

		for p.down.Buffered() > 0 {
			if _, err := p.down.Drain(p.sock); err != nil {
				return false, errors.Wrap(err, "drain to socket failed")
			}
		}

		return false, nil
	case frame.CmdClose:
		return true, nil
	case frame.CmdPing:
		return false, nil
	default:
		p.log.Warnf("unhandled channel command %d", f.Cmd)

		return false, nil
	}
}
