package call

import (
	"context"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labops/callroom/internal/media"
)

func captureStream(t *testing.T) *media.Stream {
	t.Helper()
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "capture")
	require.NoError(t, err)
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "capture")
	require.NoError(t, err)
	return &media.Stream{Audio: audio, Video: video}
}

func screenStream(t *testing.T) *media.Stream {
	t.Helper()
	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "screen")
	require.NoError(t, err)
	return &media.Stream{Video: video}
}

func startedSession(t *testing.T, engine *fakeEngine) (*Session, *fakeTransport) {
	t.Helper()
	tr := &fakeTransport{}
	s := NewSession(testConfig(), tr, engine)
	t.Cleanup(s.HangUp)
	_, err := s.CreateRoom(context.Background())
	require.NoError(t, err)
	return s, tr
}

func TestToggleMute(t *testing.T) {
	s, _ := startedSession(t, &fakeEngine{stream: captureStream(t)})

	muted, err := s.ToggleMute()
	require.NoError(t, err)
	assert.True(t, muted)

	muted, err = s.ToggleMute()
	require.NoError(t, err)
	assert.False(t, muted)
}

func TestToggleCamera(t *testing.T) {
	s, _ := startedSession(t, &fakeEngine{stream: captureStream(t)})

	off, err := s.ToggleCamera()
	require.NoError(t, err)
	assert.True(t, off)

	off, err = s.ToggleCamera()
	require.NoError(t, err)
	assert.False(t, off)
}

func TestTogglesRequireMedia(t *testing.T) {
	t.Run("in the lobby", func(t *testing.T) {
		s := NewSession(testConfig(), &fakeTransport{}, &fakeEngine{})
		_, err := s.ToggleMute()
		assert.ErrorIs(t, err, ErrNoMedia)
		_, err = s.ToggleCamera()
		assert.ErrorIs(t, err, ErrNoMedia)
	})

	t.Run("receive-only call", func(t *testing.T) {
		s, _ := startedSession(t, &fakeEngine{})
		_, err := s.ToggleMute()
		assert.ErrorIs(t, err, ErrNoMedia)
	})
}

func TestToggleScreenShare(t *testing.T) {
	var onEnded func()
	engine := &fakeEngine{
		stream: captureStream(t),
		screen: func() (*media.Stream, error) {
			stream := screenStream(t)
			stream.OnVideoEnded = func(cb func()) { onEnded = cb }
			return stream, nil
		},
	}
	s, tr := startedSession(t, engine)
	before := descriptionKinds(tr.publishedKinds())

	sharing, err := s.ToggleScreenShare()
	require.NoError(t, err)
	assert.True(t, sharing)

	t.Run("manual stop restores the camera", func(t *testing.T) {
		sharing, err := s.ToggleScreenShare()
		require.NoError(t, err)
		assert.False(t, sharing)

		s.mu.Lock()
		current := s.videoSender.Track()
		s.mu.Unlock()
		assert.Same(t, s.localStream.Video, current)

		// Track replacement rides the existing connection; starting and
		// stopping a share must not renegotiate.
		assert.Equal(t, before, descriptionKinds(tr.publishedKinds()),
			"no new offer after a share toggle")
	})

	t.Run("os-level stop ends the share", func(t *testing.T) {
		sharing, err := s.ToggleScreenShare()
		require.NoError(t, err)
		require.True(t, sharing)
		require.NotNil(t, onEnded)

		onEnded()

		// The share ended; the next toggle starts a fresh one.
		sharing, err = s.ToggleScreenShare()
		require.NoError(t, err)
		assert.True(t, sharing)
	})
}

func TestCameraToggleDuringShareDeferred(t *testing.T) {
	engine := &fakeEngine{
		stream: captureStream(t),
		screen: func() (*media.Stream, error) { return screenStream(t), nil },
	}
	s, _ := startedSession(t, engine)

	sharing, err := s.ToggleScreenShare()
	require.NoError(t, err)
	require.True(t, sharing)

	// The flag flips but the outgoing track stays the screen.
	off, err := s.ToggleCamera()
	require.NoError(t, err)
	assert.True(t, off)

	s.mu.Lock()
	current := s.videoSender.Track()
	screen := s.screenStream.Video
	s.mu.Unlock()
	assert.Same(t, screen, current)

	// Ending the share with the camera off sends nothing.
	sharing, err = s.ToggleScreenShare()
	require.NoError(t, err)
	assert.False(t, sharing)

	s.mu.Lock()
	current = s.videoSender.Track()
	s.mu.Unlock()
	assert.Nil(t, current)
}
