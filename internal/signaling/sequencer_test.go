package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sig(id string, kind Kind) Signal {
	return Signal{ID: id, Room: "room-a", Kind: kind, Sender: "peer"}
}

func TestSequenceDropsSeen(t *testing.T) {
	batch := []Signal{
		sig("a", KindOffer),
		sig("b", KindICE),
		sig("c", KindICE),
	}
	seen := map[string]struct{}{
		"a": {},
		"c": {},
	}

	out := Sequence(batch, seen)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
}

func TestSequenceDescriptionsFirst(t *testing.T) {
	batch := []Signal{
		sig("ice-1", KindICE),
		sig("ice-2", KindICE),
		sig("ans", KindAnswer),
		sig("ice-3", KindICE),
	}

	out := Sequence(batch, map[string]struct{}{})
	require.Len(t, out, 4)
	assert.Equal(t, "ans", out[0].ID)

	// Candidates keep their fetch order behind the description.
	assert.Equal(t, "ice-1", out[1].ID)
	assert.Equal(t, "ice-2", out[2].ID)
	assert.Equal(t, "ice-3", out[3].ID)
}

func TestSequenceDoesNotMutateSeen(t *testing.T) {
	batch := []Signal{sig("a", KindOffer), sig("b", KindICE)}
	seen := map[string]struct{}{}

	Sequence(batch, seen)
	assert.Empty(t, seen, "seen is updated by the session after application, not by Sequence")
}

func TestSequenceEmptyBatch(t *testing.T) {
	assert.Empty(t, Sequence(nil, map[string]struct{}{}))
}
