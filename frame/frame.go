// Package frame implements the wire unit exchanged with the channel
// multiplexer: a fixed header naming the command, tunnel and compression
// parameters, followed by the chunk payload.
package frame

import "github.com/go-pantheon/fabrica-tun/compress"

// Channel command ids. These are wire values shared with the peer and
// must not be renumbered.
const (
	CmdConn           byte = 0
	CmdBind           byte = 1
	CmdClose          byte = 2
	CmdData           byte = 3
	CmdUDPData        byte = 4
	CmdPing           byte = 5
	CmdCompressedData byte = 6
)

// HeaderSize is the fixed frame header length:
// [cmd:1][tunnel:1][algorithm:1][level:1][originalSize:4].
const HeaderSize = 8

// Frame is one discrete unit of channel data.
//
// OriginalSize is the uncompressed payload length. On receive it is
// peer-supplied and untrusted; the decoder bounds it before any
// allocation derives from it.
type Frame struct {
	Cmd          byte
	TunnelID     byte
	Algorithm    compress.Algorithm
	Level        byte
	OriginalSize uint32
	Payload      []byte
}

// Data builds a plain uncompressed data frame for the given tunnel.
func Data(tunnelID byte, payload []byte) Frame {
	return Frame{
		Cmd:          CmdData,
		TunnelID:     tunnelID,
		Algorithm:    compress.None,
		OriginalSize: uint32(len(payload)),
		Payload:      payload,
	}
}

// Compressed builds a compression-bearing data frame for the given tunnel.
func Compressed(tunnelID byte, a compress.Algorithm, level byte, originalSize uint32, payload []byte) Frame {
	return Frame{
		Cmd:          CmdCompressedData,
		TunnelID:     tunnelID,
		Algorithm:    a,
		Level:        level,
		OriginalSize: originalSize,
		Payload:      payload,
	}
}
