//go:build !linux || !cgo

package media

import (
	"errors"
	"log/slog"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// ErrNoScreenCapture is returned on platforms without a screen capture driver.
var ErrNoScreenCapture = errors.New("screen capture not available on this platform")

// CaptureEngine on non-Linux platforms has no capture drivers; sessions run
// receive-only with default codecs.
type CaptureEngine struct {
	api *webrtc.API
}

// NewEngine builds the receive-only engine.
func NewEngine() (Engine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := mediaEngine.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}

	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, registry); err != nil {
		return nil, err
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(registry),
	)
	return &CaptureEngine{api: api}, nil
}

func (e *CaptureEngine) NewPeerConnection(cfg webrtc.Configuration) (*webrtc.PeerConnection, error) {
	return e.api.NewPeerConnection(cfg)
}

// Capture reports an empty stream: the call proceeds receive-only.
func (e *CaptureEngine) Capture() (*Stream, error) {
	slog.Warn("no capture drivers on this platform, call will be receive-only")
	return &Stream{}, nil
}

func (e *CaptureEngine) CaptureScreen() (*Stream, error) {
	return nil, ErrNoScreenCapture
}
