package call

import (
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// CandidateBuffer holds remote ICE candidates that arrive before the remote
// session description is known. Adding a candidate to a connection without a
// remote description fails, so candidates queue here and are released in
// arrival order the moment the description lands.
//
// The buffer is not synchronized; the owning session serializes access.
type CandidateBuffer struct {
	apply func(webrtc.ICECandidateInit) error

	ready    bool
	queued   []webrtc.ICECandidateInit
	applied  int
	buffered int
}

// NewCandidateBuffer creates a buffer that delivers candidates through apply.
func NewCandidateBuffer(apply func(webrtc.ICECandidateInit) error) *CandidateBuffer {
	return &CandidateBuffer{apply: apply}
}

// Offer applies the candidate immediately when the remote description is set,
// otherwise queues it. A failed immediate apply is logged and dropped; the
// candidate was malformed or stale and the connection can proceed without it.
func (b *CandidateBuffer) Offer(c webrtc.ICECandidateInit) {
	if !b.ready {
		b.queued = append(b.queued, c)
		b.buffered++
		return
	}
	if err := b.apply(c); err != nil {
		slog.Warn("ice candidate rejected", "err", err)
		return
	}
	b.applied++
}

// Flush marks the buffer ready and applies every queued candidate in arrival
// order. Called exactly once, immediately after the remote description is
// set. A candidate that fails to apply is logged and skipped; it must not
// abort the rest of the flush.
func (b *CandidateBuffer) Flush() {
	b.ready = true
	for _, c := range b.queued {
		if err := b.apply(c); err != nil {
			slog.Warn("ice candidate rejected during flush", "err", err)
			continue
		}
		b.applied++
	}
	b.queued = nil
}

// Len reports how many candidates are waiting.
func (b *CandidateBuffer) Len() int {
	return len(b.queued)
}

// Applied reports how many candidates reached the connection.
func (b *CandidateBuffer) Applied() int {
	return b.applied
}

// Buffered reports how many candidates had to wait for the description.
func (b *CandidateBuffer) Buffered() int {
	return b.buffered
}
