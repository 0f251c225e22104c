// Package signaling carries call handshake messages over the suite's
// persistence service. The service gives no ordering or delivery guarantee:
// a poll may return messages out of order, repeat them across polls, or miss
// a message that was published but is not visible yet. Everything above this
// package is written to survive that.
package signaling

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Kind identifies what a signal carries.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
	KindICE    Kind = "ice"
)

// IsDescription reports whether the signal carries a session description
// rather than an ICE candidate.
func (k Kind) IsDescription() bool {
	return k == KindOffer || k == KindAnswer
}

// Signal is one persisted handshake message. Signals are append-only: created
// once, never mutated, never deleted by this subsystem.
type Signal struct {
	ID        string `json:"id" msgpack:"id"`
	Room      string `json:"room" msgpack:"room"`
	Kind      Kind   `json:"kind" msgpack:"kind"`
	Sender    string `json:"sender" msgpack:"sender"`
	Payload   string `json:"payload" msgpack:"payload"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"` // unix milliseconds, informational only
}

// emitSeq breaks ID ties between signals emitted within the same nanosecond.
var emitSeq atomic.Uint64

// New builds a Signal with a fresh ID. The ID composes room, kind, sender and
// emission time, plus a process-local sequence number so two emissions can
// never share an ID.
func New(room string, kind Kind, sender, payload string) Signal {
	now := time.Now()
	return Signal{
		ID:        fmt.Sprintf("%s|%s|%s|%d-%d", room, kind, sender, now.UnixNano(), emitSeq.Add(1)),
		Room:      room,
		Kind:      kind,
		Sender:    sender,
		Payload:   payload,
		Timestamp: now.UnixMilli(),
	}
}
