//go:build bufdebug

package iobuf

import "fmt"

// RoleRead and RoleWrite identify which side of a tunnel direction a
// buffer serves. The tags exist purely for diagnostic assertions.
const (
	RoleRead  = 'r'
	RoleWrite = 'w'
)

type tag struct {
	name string
	role byte
}

// SetTag attaches a diagnostic name and role to the buffer. Only
// available in bufdebug builds; it never affects behavior.
func (b *Buffer) SetTag(name string, role byte) {
	if role != RoleRead && role != RoleWrite {
		panic("iobuf: invalid buffer role")
	}

	b.tag = tag{name: name, role: role}
}

func (b *Buffer) check() {
	if len(b.data) > cap(b.data) {
		panic(fmt.Sprintf("iobuf: %s: length %d exceeds capacity %d", b.tag.name, len(b.data), cap(b.data)))
	}

	if cap(b.data) > 0 && b.data == nil {
		panic(fmt.Sprintf("iobuf: %s: storage missing with capacity %d", b.tag.name, cap(b.data)))
	}
}
