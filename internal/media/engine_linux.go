//go:build linux && cgo

package media

import (
	"fmt"
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// CaptureEngine captures via pion/mediadevices (V4L2, malgo and X11 screen
// grab on Linux) and encodes VP8 + Opus.
type CaptureEngine struct {
	selector *mediadevices.CodecSelector
	api      *webrtc.API
}

// NewEngine builds the platform capture engine.
func NewEngine() (Engine, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_500_000 // 1.5 Mbps

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	selector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	selector.Populate(mediaEngine)

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)

	return &CaptureEngine{selector: selector, api: api}, nil
}

func (e *CaptureEngine) NewPeerConnection(cfg webrtc.Configuration) (*webrtc.PeerConnection, error) {
	return e.api.NewPeerConnection(cfg)
}

// Capture opens camera + microphone. The whole GetUserMedia call fails as a
// unit if either device can't be opened, so retry video-only and audio-only
// before reporting a denial.
func (e *CaptureEngine) Capture() (*Stream, error) {
	type attempt struct {
		video bool
		audio bool
		label string
	}

	var lastErr error
	for _, a := range []attempt{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	} {
		constraints := mediadevices.MediaStreamConstraints{Codec: e.selector}
		if a.video {
			constraints.Video = cameraConstraints
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		stream, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			slog.Warn("media capture attempt failed", "attempt", a.label, "err", err)
			lastErr = err
			continue
		}

		slog.Info("local media captured", "attempt", a.label, "tracks", len(stream.GetTracks()))
		return wrapStream(stream), nil
	}
	return nil, fmt.Errorf("capture camera/microphone: %w", lastErr)
}

// CaptureScreen opens a screen capture video stream.
func (e *CaptureEngine) CaptureScreen() (*Stream, error) {
	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Codec: e.selector,
		Video: func(_ *mediadevices.MediaTrackConstraints) {},
	})
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}
	return wrapStream(stream), nil
}

func cameraConstraints(c *mediadevices.MediaTrackConstraints) {
	// Exclude MJPEG: some cameras expose an MJPEG V4L2 node that produces
	// malformed JPEG frames, which poisons the VP8 encoder. Raw formats only.
	c.FrameFormat = prop.FrameFormatOneOf{
		frame.FormatYUYV,
		frame.FormatI420,
		frame.FormatI444,
		frame.FormatRGBA,
	}
	// Cap at 640×480 to keep VP8 encoding latency tolerable.
	c.Width = prop.IntRanged{Max: 640}
	c.Height = prop.IntRanged{Max: 480}
}

// wrapStream adapts a mediadevices stream to a Stream, wiring track teardown
// and the video OnEnded hook.
func wrapStream(ms mediadevices.MediaStream) *Stream {
	tracks := ms.GetTracks()
	out := &Stream{
		CloseFunc: func() {
			for _, t := range tracks {
				t.Close()
			}
		},
	}
	for _, track := range tracks {
		switch track.Kind() {
		case webrtc.RTPCodecTypeAudio:
			out.Audio = track
		case webrtc.RTPCodecTypeVideo:
			out.Video = track
			videoTrack := track
			out.OnVideoEnded = func(fn func()) {
				videoTrack.OnEnded(func(error) { fn() })
			}
		}
	}
	return out
}
