// Package conf holds the tunable knobs of the tunnel data plane.
package conf

import (
	"github.com/go-pantheon/fabrica-tun/compress"
)

type Config struct {
	Buffer      Buffer
	Compression Compression
	Channel     Channel
}

type Buffer struct {
	// StageSize is how many bytes a direction reserves per socket read.
	StageSize int
}

type Compression struct {
	Algorithm compress.Algorithm
	Level     int
	// MinSize is the payload size below which chunks are sent verbatim.
	MinSize int
	// MaxChunkSize caps the original size a peer may claim for one chunk.
	// It is the only policy limit the data plane imposes on wire data.
	MaxChunkSize uint32
}

type Channel struct {
	ReadBufSize  int
	WriteBufSize int
	KeepAlive    bool
}

func Default() Config {
	buffer := Buffer{
		StageSize: 16 * 1024,
	}

	compression := Compression{
		Algorithm:    compress.Gzip,
		Level:        6,
		MinSize:      compress.MinCompressSize,
		MaxChunkSize: 16 * 1024 * 1024,
	}

	channel := Channel{
		ReadBufSize:  30000,
		WriteBufSize: 30000,
		KeepAlive:    true,
	}

	return Config{
		Buffer:      buffer,
		Compression: compression,
		Channel:     channel,
	}
}
