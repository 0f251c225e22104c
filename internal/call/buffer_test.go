package call

import (
	"errors"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(s string) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: s}
}

func TestCandidateBufferQueuesUntilFlush(t *testing.T) {
	var applied []string
	b := NewCandidateBuffer(func(c webrtc.ICECandidateInit) error {
		applied = append(applied, c.Candidate)
		return nil
	})

	b.Offer(cand("first"))
	b.Offer(cand("second"))
	b.Offer(cand("third"))

	assert.Empty(t, applied, "nothing applies before the remote description")
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 3, b.Buffered())

	b.Flush()

	require.Equal(t, []string{"first", "second", "third"}, applied)
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 3, b.Applied())
}

func TestCandidateBufferAppliesDirectlyWhenReady(t *testing.T) {
	var applied []string
	b := NewCandidateBuffer(func(c webrtc.ICECandidateInit) error {
		applied = append(applied, c.Candidate)
		return nil
	})

	b.Flush()
	b.Offer(cand("late"))

	assert.Equal(t, []string{"late"}, applied)
	assert.Equal(t, 0, b.Buffered(), "a candidate applied directly never counts as buffered")
	assert.Equal(t, 1, b.Applied())
}

func TestCandidateBufferSkipsFailures(t *testing.T) {
	var applied []string
	b := NewCandidateBuffer(func(c webrtc.ICECandidateInit) error {
		if c.Candidate == "bad" {
			return errors.New("malformed")
		}
		applied = append(applied, c.Candidate)
		return nil
	})

	b.Offer(cand("good-1"))
	b.Offer(cand("bad"))
	b.Offer(cand("good-2"))
	b.Flush()

	assert.Equal(t, []string{"good-1", "good-2"}, applied, "a rejected candidate must not abort the flush")
	assert.Equal(t, 2, b.Applied())

	// After the flush a failing candidate is still just dropped.
	b.Offer(cand("bad"))
	assert.Equal(t, 2, b.Applied())
}
