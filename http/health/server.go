// Package health serves liveness and prometheus metrics endpoints for a
// tunnel endpoint process.
package health

import (
	httpgo "net/http"

	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	*http.Server
}

func NewServer(addr string) *Server {
	s := http.NewServer(http.Address(addr))

	s.Handle("/metrics", promhttp.Handler())
	s.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(httpgo.StatusOK)
	})

	return &Server{s}
}
