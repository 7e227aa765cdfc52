// Package msgpool pools dns.Msg values and wire-size byte buffers to
// keep a busy IXFR-out responder's per-message allocation rate flat
// under sustained transfer load.
//
// Grounded on straticus1-dnsscienced's internal/pool/buffers.go:
// sync.Pool-backed message and buffer pools, with the same explicit
// field reset on return (never hand back a message that still carries
// a previous transfer's Answer section -- that's a data leak, not just
// wasted memory).
package msgpool

import (
	"sync"

	"github.com/miekg/dns"
)

const (
	// WireBufferSize is sized for TCP-carried IXFR responses, which have
	// no 512-byte UDP ceiling; the pool keeps only this one size, with no
	// separate small/EDNS0 tier.
	WireBufferSize = 65535
)

var messagePool = sync.Pool{
	New: func() interface{} { return new(dns.Msg) },
}

// Get returns a zeroed *dns.Msg from the pool.
func Get() *dns.Msg {
	return messagePool.Get().(*dns.Msg)
}

// Put resets msg and returns it to the pool. Safe to call with nil.
func Put(msg *dns.Msg) {
	if msg == nil {
		return
	}
	msg.Id = 0
	msg.Response = false
	msg.Opcode = 0
	msg.Authoritative = false
	msg.Truncated = false
	msg.RecursionDesired = false
	msg.RecursionAvailable = false
	msg.Zero = false
	msg.AuthenticatedData = false
	msg.CheckingDisabled = false
	msg.Rcode = 0
	msg.Question = msg.Question[:0]
	msg.Answer = msg.Answer[:0]
	msg.Ns = msg.Ns[:0]
	msg.Extra = msg.Extra[:0]

	messagePool.Put(msg)
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, WireBufferSize)
		return &buf
	},
}

// GetBuffer returns a WireBufferSize-capacity byte slice.
func GetBuffer() []byte {
	bufPtr := bufferPool.Get().(*[]byte)
	return (*bufPtr)[:WireBufferSize]
}

// PutBuffer returns buf to the pool. Undersized buffers (never allocated
// by GetBuffer) are dropped rather than pooled.
func PutBuffer(buf []byte) {
	if cap(buf) < WireBufferSize {
		return
	}
	buf = buf[:cap(buf)]
	bufferPool.Put(&buf)
}
