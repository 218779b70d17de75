package tunnel

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipeEndToEnd(t *testing.T) {
	t.Parallel()

	chanA, chanB := net.Pipe()
	sockA, appA := net.Pipe()
	sockB, appB := net.Pipe()

	pipeA := NewPipe(1, sockA, chanA, WithLogger(testLogger()))
	pipeB := NewPipe(1, sockB, chanB, WithLogger(testLogger()))

	runA := make(chan error, 1)
	runB := make(chan error, 1)

	go func() { runA <- pipeA.Run(context.Background()) }()
	go func() { runB <- pipeB.Run(context.Background()) }()

	payload := bytes.Repeat([]byte("end to end tunnel payload "), 200)

	go func() {
		if _, err := appA.Write(payload); err != nil {
			t.Errorf("write payload: %v", err)
		}

		if err := appA.Close(); err != nil {
			t.Errorf("close writer end: %v", err)
		}
	}()

	got := make([]byte, 0, len(payload))
	buf := make([]byte, 1024)

	for len(got) < len(payload) {
		n, err := appB.Read(buf)
		got = append(got, buf[:n]...)

		if err != nil {
			break
		}
	}

	assert.Equal(t, payload, got)

	require.NoError(t, waitErr(t, runA))
	require.NoError(t, waitErr(t, runB))
}

func TestPipeStop(t *testing.T) {
	t.Parallel()

	chanA, chanB := net.Pipe()
	sockA, appA := net.Pipe()

	defer chanB.Close()
	defer appA.Close()

	p := NewPipe(1, sockA, chanA, WithLogger(testLogger()))

	run := make(chan error, 1)

	go func() { run <- p.Run(context.Background()) }()

	require.NoError(t, p.Stop())
	require.NoError(t, waitErr(t, run))
}

func TestPipeContextCancel(t *testing.T) {
	t.Parallel()

	chanA, chanB := net.Pipe()
	sockA, appA := net.Pipe()

	defer chanB.Close()
	defer appA.Close()

	p := NewPipe(1, sockA, chanA, WithLogger(testLogger()))

	ctx, cancel := context.WithCancel(context.Background())

	run := make(chan error, 1)

	go func() { run <- p.Run(ctx) }()

	cancel()

	require.NoError(t, waitErr(t, run))
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()

	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pipe did not stop in time")

		return nil
	}
}
