// Package metrics exposes prometheus counters for the tunnel data plane.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "fabrica_tun"

	// DirectionOut labels traffic flowing from the local socket to the channel.
	DirectionOut = "out"
	// DirectionIn labels traffic flowing from the channel to the local socket.
	DirectionIn = "in"
)

var (
	frames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "frame",
		Name:      "frames_total",
		Help:      "Data frames processed, by direction and algorithm.",
	}, []string{"direction", "algorithm"})

	rawBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "frame",
		Name:      "raw_bytes_total",
		Help:      "Uncompressed payload bytes processed, by direction.",
	}, []string{"direction"})

	wireBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "frame",
		Name:      "wire_bytes_total",
		Help:      "On-wire payload bytes processed, by direction.",
	}, []string{"direction"})

	fallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "frame",
		Name:      "compress_fallbacks_total",
		Help:      "Chunks sent verbatim because compression failed or did not shrink them.",
	})
)

// ObserveFrame records one data frame and its raw versus on-wire sizes.
func ObserveFrame(direction, algorithm string, raw, wire int) {
	frames.WithLabelValues(direction, algorithm).Inc()
	rawBytes.WithLabelValues(direction).Add(float64(raw))
	wireBytes.WithLabelValues(direction).Add(float64(wire))
}

// ObserveFallback records a chunk that fell back to a verbatim frame.
func ObserveFallback() {
	fallbacks.Inc()
}
