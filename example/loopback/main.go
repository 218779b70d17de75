// Demonstrates the tunnel data plane end to end: two pipes bridged by an
// in-memory multiplexed channel, standing in for the remote-desktop
// virtual channel between agent and controller.
package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-pantheon/fabrica-tun/channel/smuxchan"
	"github.com/go-pantheon/fabrica-tun/conf"
	"github.com/go-pantheon/fabrica-tun/http/health"
	"github.com/go-pantheon/fabrica-tun/tunnel"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	logger := log.DefaultLogger
	cfg := conf.Default()

	// /health and /metrics for the counters the pipes below increment
	metricsSrv := health.NewServer("127.0.0.1:9100")

	go func() {
		if err := metricsSrv.Start(context.Background()); err != nil {
			log.NewHelper(logger).Errorf("health server: %v", err)
		}
	}()

	defer func() {
		_ = metricsSrv.Stop(context.Background())
	}()

	transportA, transportB := net.Pipe()

	var (
		chA, chB *smuxchan.Channel
		eg       errgroup.Group
	)

	eg.Go(func() (err error) {
		chB, err = smuxchan.Server(transportB, cfg.Channel)

		return err
	})

	chA, err := smuxchan.Client(transportA, cfg.Channel)
	if err != nil {
		return err
	}

	if err := eg.Wait(); err != nil {
		return err
	}

	sockA, appA := net.Pipe()
	sockB, appB := net.Pipe()

	pipeA := tunnel.NewPipe(1, sockA, chA, tunnel.WithConf(cfg), tunnel.WithLogger(logger))
	pipeB := tunnel.NewPipe(1, sockB, chB, tunnel.WithConf(cfg), tunnel.WithLogger(logger))

	ctx := context.Background()

	var pipes errgroup.Group

	pipes.Go(func() error { return pipeA.Run(ctx) })
	pipes.Go(func() error { return pipeB.Run(ctx) })

	msg := bytes.Repeat([]byte("fabrica tunnel "), 8)

	go func() {
		if _, err := appA.Write(msg); err != nil {
			log.NewHelper(logger).Errorf("write into tunnel: %v", err)
		}

		_ = appA.Close()
	}()

	buf := make([]byte, 256)

	n, err := appB.Read(buf)
	if err != nil {
		return err
	}

	log.NewHelper(logger).Infof("received %d bytes through the tunnel: %q", n, buf[:n])

	_ = appB.Close()

	return pipes.Wait()
}
