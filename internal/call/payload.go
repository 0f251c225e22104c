package call

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// Signal payloads are opaque blobs to the transport; the session serializes
// the pion types to JSON strings on the way out and parses them back on the
// way in.

func encodeDescription(d *webrtc.SessionDescription) string {
	b, _ := json.Marshal(d)
	return string(b)
}

func decodeDescription(payload string) (webrtc.SessionDescription, error) {
	var d webrtc.SessionDescription
	err := json.Unmarshal([]byte(payload), &d)
	return d, err
}

func encodeCandidate(c webrtc.ICECandidateInit) string {
	b, _ := json.Marshal(c)
	return string(b)
}

func decodeCandidate(payload string) (webrtc.ICECandidateInit, error) {
	var c webrtc.ICECandidateInit
	err := json.Unmarshal([]byte(payload), &c)
	return c, err
}
