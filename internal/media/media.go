// Package media owns local capture: camera, microphone and screen. The call
// session only sees the Engine interface, so tests and capture-less platforms
// plug in without touching the protocol code.
package media

import "github.com/pion/webrtc/v4"

// Engine builds peer connections and captures local media. Peer connection
// construction lives here because the capture codecs must be registered on
// the webrtc.API the connection is created from.
type Engine interface {
	NewPeerConnection(cfg webrtc.Configuration) (*webrtc.PeerConnection, error)

	// Capture opens camera and microphone. A denied or failed capture is an
	// error the caller surfaces to the user; an empty Stream (no tracks)
	// means the platform cannot capture at all and the call proceeds
	// receive-only.
	Capture() (*Stream, error)

	// CaptureScreen opens a screen capture video stream.
	CaptureScreen() (*Stream, error)
}

// Stream is a set of owned local tracks.
type Stream struct {
	Audio webrtc.TrackLocal
	Video webrtc.TrackLocal

	// OnVideoEnded registers a callback for the video track ending outside
	// our control (the OS-level "stop sharing" button). Nil when the
	// platform cannot observe that.
	OnVideoEnded func(func())

	// CloseFunc releases every capture device behind the stream.
	CloseFunc func()
}

// Close stops all tracks and releases the underlying devices. Safe on nil
// and on streams without a closer.
func (s *Stream) Close() {
	if s != nil && s.CloseFunc != nil {
		s.CloseFunc()
	}
}

// Empty reports whether the stream carries no tracks.
func (s *Stream) Empty() bool {
	return s == nil || (s.Audio == nil && s.Video == nil)
}
