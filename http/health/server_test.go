package health

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/go-pantheon/fabrica-tun/metrics"
	"github.com/stretchr/testify/require"
)

func TestServerServesHealthAndMetrics(t *testing.T) {
	t.Parallel()

	srv := NewServer("127.0.0.1:0")

	endpoint, err := srv.Endpoint()
	require.NoError(t, err)

	startErr := make(chan error, 1)

	go func() {
		startErr <- srv.Start(context.Background())
	}()

	defer func() {
		select {
		case err := <-startErr:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	}()

	defer func() {
		require.NoError(t, srv.Stop(context.Background()))
	}()

	metrics.ObserveFallback()

	resp, err := http.Get(endpoint.String() + "/health")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(endpoint.String() + "/metrics")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "fabrica_tun_frame_compress_fallbacks_total")
}
