// Package call implements the peer-to-peer call session: role assignment,
// the lobby → connecting → incall state machine, signal application and
// teardown. One Session owns one live peer connection at a time.
package call

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/labops/callroom/internal/config"
	"github.com/labops/callroom/internal/media"
	"github.com/labops/callroom/internal/signaling"
)

// Session is the connection orchestrator for one peer. All mutable state is
// owned here; the UI surface only calls methods and drains Events.
type Session struct {
	cfg      *config.Config
	tr       signaling.Transport
	engine   media.Engine
	clientID string

	events chan Event

	mu    sync.Mutex
	phase Phase
	role  Role
	room  string

	pc           *webrtc.PeerConnection
	localStream  *media.Stream
	screenStream *media.Stream
	audioSender  *webrtc.RTPSender
	videoSender  *webrtc.RTPSender

	remoteDescSet bool
	pending       *CandidateBuffer
	seen          map[string]struct{}

	muted     bool
	cameraOff bool
	sharing   bool

	// stop cancels the current room attempt: the poll loop and any late
	// candidate publishes.
	stop context.CancelFunc

	// processing enforces one batch application at a time. A tick that
	// arrives while a batch is in flight is dropped, not queued; the next
	// tick re-fetches everything the dropped one would have seen.
	processing atomic.Bool

	published   int
	applied     int
	connectedAt time.Time
	lastCall    time.Duration
}

// NewSession creates a session. The client id is random per session, so a
// peer can recognise and skip its own relayed messages.
func NewSession(cfg *config.Config, tr signaling.Transport, engine media.Engine) *Session {
	return &Session{
		cfg:      cfg,
		tr:       tr,
		engine:   engine,
		clientID: uuid.NewString(),
		events:   make(chan Event, 16),
		phase:    PhaseLobby,
		seen:     make(map[string]struct{}),
	}
}

// Events returns the session's event stream.
func (s *Session) Events() <-chan Event {
	return s.events
}

// ClientID returns the per-session client identifier.
func (s *Session) ClientID() string {
	return s.clientID
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Room returns the current room id, empty in the lobby.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// Role returns the current role.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Stats returns informational counters for the current or last call.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		SignalsPublished: s.published,
		SignalsApplied:   s.applied,
		Duration:         s.lastCall,
	}
	if s.pending != nil {
		st.CandidatesBuffered = s.pending.Buffered()
		st.CandidatesApplied = s.pending.Applied()
	}
	if !s.connectedAt.IsZero() {
		st.Duration = time.Since(s.connectedAt)
	}
	return st
}

// CreateRoom starts a call as the creator: capture local media, publish an
// offer under a fresh room id and poll for the answer. Returns the room id
// to share with the other peer.
func (s *Session) CreateRoom(ctx context.Context) (string, error) {
	if err := s.requireLobby("create room"); err != nil {
		return "", err
	}

	stream, err := s.engine.Capture()
	if err != nil {
		s.notice("camera/microphone unavailable, check permissions")
		return "", WrapError("create room", ErrMediaDenied, err.Error())
	}

	room := NewRoomID()
	attemptCtx, pc, err := s.setupConnection(room, RoleCreator, stream)
	if err != nil {
		stream.Close()
		return "", err
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		s.teardown()
		return "", NewError("create offer", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		s.teardown()
		return "", NewError("set local description", err)
	}

	s.publish(attemptCtx, room, signaling.KindOffer, encodeDescription(pc.LocalDescription()))
	s.setPhase(PhaseConnecting)
	s.startPolling(attemptCtx, room)

	slog.Info("room created", "room", room)
	return room, nil
}

// JoinRoom joins an existing room as the joiner: search the room for the
// creator's offer within the retry budget, answer it, then poll for
// candidates. A room with no offer inside the budget is reported as not
// found and the session returns to the lobby.
func (s *Session) JoinRoom(ctx context.Context, room string) error {
	if err := s.requireLobby("join room"); err != nil {
		return err
	}

	stream, err := s.engine.Capture()
	if err != nil {
		s.notice("camera/microphone unavailable, check permissions")
		return WrapError("join room", ErrMediaDenied, err.Error())
	}

	attemptCtx, pc, err := s.setupConnection(room, RoleJoiner, stream)
	if err != nil {
		stream.Close()
		return err
	}
	s.setPhase(PhaseConnecting)

	offerSig, batch, err := s.findOffer(ctx, room)
	if err != nil {
		s.teardown()
		if ctx.Err() == nil {
			s.notice("room not found: " + room)
		}
		return err
	}

	s.markSeen(offerSig.ID)
	desc, err := decodeDescription(offerSig.Payload)
	if err != nil {
		s.teardown()
		return WrapError("join room", err, "malformed offer")
	}
	if err := pc.SetRemoteDescription(desc); err != nil {
		s.teardown()
		return NewError("set remote description", err)
	}
	s.remoteDescribed()

	// Candidates the creator published before we arrived are already
	// visible in this batch; apply them now rather than waiting a poll tick.
	s.processBatch(batch)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		s.teardown()
		return NewError("create answer", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		s.teardown()
		return NewError("set local description", err)
	}

	s.publish(attemptCtx, room, signaling.KindAnswer, encodeDescription(pc.LocalDescription()))
	s.startPolling(attemptCtx, room)

	slog.Info("room joined", "room", room)
	return nil
}

// HangUp tears down the current call and returns to the lobby: polling
// stops, the peer connection closes, every local media track is released and
// all per-room state is cleared. Idempotent; a hang-up in the lobby is a no-op.
func (s *Session) HangUp() {
	if s.teardown() {
		s.setPhase(PhaseLobby)
	}
}

// ToggleMute flips the local microphone. The track stays attached to the
// connection (the sender just stops getting a source), so no renegotiation
// happens. Returns the new muted state.
func (s *Session) ToggleMute() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audioSender == nil || s.localStream == nil || s.localStream.Audio == nil {
		return false, NewError("toggle mute", ErrNoMedia)
	}

	var err error
	if s.muted {
		err = s.audioSender.ReplaceTrack(s.localStream.Audio)
	} else {
		err = s.audioSender.ReplaceTrack(nil)
	}
	if err != nil {
		return s.muted, NewError("toggle mute", err)
	}
	s.muted = !s.muted
	return s.muted, nil
}

// ToggleCamera flips the local camera the same way mute works. While a
// screen share is active only the flag flips; it takes effect when the share
// ends. Returns the new camera-off state.
func (s *Session) ToggleCamera() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.videoSender == nil || s.localStream == nil || s.localStream.Video == nil {
		return false, NewError("toggle camera", ErrNoMedia)
	}

	if s.sharing {
		s.cameraOff = !s.cameraOff
		return s.cameraOff, nil
	}

	var err error
	if s.cameraOff {
		err = s.videoSender.ReplaceTrack(s.localStream.Video)
	} else {
		err = s.videoSender.ReplaceTrack(nil)
	}
	if err != nil {
		return s.cameraOff, NewError("toggle camera", err)
	}
	s.cameraOff = !s.cameraOff
	return s.cameraOff, nil
}

// ToggleScreenShare starts or stops screen sharing by replacing the video
// sender's track in place, so no renegotiation and no new offer. The OS-level
// "stop sharing" control ends the share the same way the manual toggle does.
// Returns the new sharing state.
func (s *Session) ToggleScreenShare() (bool, error) {
	s.mu.Lock()
	if s.videoSender == nil || s.localStream == nil {
		s.mu.Unlock()
		return false, NewError("toggle screen share", ErrNoMedia)
	}
	if s.sharing {
		s.stopScreenShareLocked()
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	screen, err := s.engine.CaptureScreen()
	if err != nil {
		s.notice("screen share unavailable")
		return false, NewError("toggle screen share", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videoSender == nil { // hung up while capturing
		screen.Close()
		return false, NewError("toggle screen share", ErrNoMedia)
	}
	if err := s.videoSender.ReplaceTrack(screen.Video); err != nil {
		screen.Close()
		return false, NewError("toggle screen share", err)
	}
	s.screenStream = screen
	s.sharing = true
	if screen.OnVideoEnded != nil {
		screen.OnVideoEnded(func() {
			s.mu.Lock()
			s.stopScreenShareLocked()
			s.mu.Unlock()
		})
	}
	return true, nil
}

// stopScreenShareLocked restores the camera track (or nothing, when the
// camera is toggled off) and releases the screen stream. Idempotent: the
// OS-stop callback and the manual toggle may race.
func (s *Session) stopScreenShareLocked() {
	if !s.sharing {
		return
	}
	s.sharing = false

	var restore webrtc.TrackLocal
	if !s.cameraOff {
		restore = s.localStream.Video
	}
	if s.videoSender != nil {
		if err := s.videoSender.ReplaceTrack(restore); err != nil {
			slog.Warn("restore camera track failed", "err", err)
		}
	}
	if s.screenStream != nil {
		s.screenStream.Close()
		s.screenStream = nil
	}
}

// setupConnection builds the peer connection for a room attempt, attaches
// local tracks and wires the connection callbacks. Returns the attempt
// context that HangUp cancels.
func (s *Session) setupConnection(room string, role Role, stream *media.Stream) (context.Context, *webrtc.PeerConnection, error) {
	pc, err := s.engine.NewPeerConnection(s.webrtcConfig())
	if err != nil {
		return nil, nil, NewError("create peer connection", err)
	}

	var audioSender, videoSender *webrtc.RTPSender
	if stream.Empty() {
		addRecvOnlyTransceivers(pc)
	} else {
		if stream.Audio != nil {
			if audioSender, err = pc.AddTrack(stream.Audio); err != nil {
				pc.Close()
				return nil, nil, NewError("attach audio track", err)
			}
		}
		if stream.Video != nil {
			if videoSender, err = pc.AddTrack(stream.Video); err != nil {
				pc.Close()
				return nil, nil, NewError("attach video track", err)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.pc = pc
	s.room = room
	s.role = role
	s.localStream = stream
	s.audioSender = audioSender
	s.videoSender = videoSender
	s.remoteDescSet = false
	s.pending = NewCandidateBuffer(func(c webrtc.ICECandidateInit) error {
		return pc.AddICECandidate(c)
	})
	s.seen = make(map[string]struct{})
	s.stop = cancel
	s.mu.Unlock()

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || ctx.Err() != nil {
			return
		}
		s.publish(ctx, room, signaling.KindICE, encodeCandidate(c.ToJSON()))
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		slog.Debug("remote track", "room", room, "kind", track.Kind().String())
		s.enterInCall()
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		slog.Debug("connection state", "room", room, "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateConnected:
			s.enterInCall()
		case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed:
			// No automatic retry: reconnection storms against the relay are
			// worse than asking the user to hang up and re-join.
			if ctx.Err() == nil {
				s.notice("connection lost, hang up and re-join")
			}
		}
	})

	return ctx, pc, nil
}

// findOffer polls the room until an offer shows up or the retry budget runs
// out. Returns the offer and the batch it arrived in.
func (s *Session) findOffer(ctx context.Context, room string) (*signaling.Signal, []signaling.Signal, error) {
	for attempt := 0; attempt < s.cfg.JoinAttempts; attempt++ {
		batch := s.tr.Poll(ctx, room, s.clientID)
		for i := range batch {
			if batch[i].Kind == signaling.KindOffer {
				return &batch[i], batch, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, nil, NewError("join room", ctx.Err())
		case <-time.After(s.cfg.JoinInterval):
		}
	}
	return nil, nil, WrapError("join room", ErrRoomNotFound, room)
}

// startPolling runs the periodic room poll until the attempt is cancelled.
func (s *Session) startPolling(ctx context.Context, room string) {
	go func() {
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processBatch(s.tr.Poll(ctx, room, s.clientID))
			}
		}
	}()
}

// processBatch applies one polled batch. Applying a remote description and
// flushing buffered candidates is a multi-step operation that must complete
// atomically with respect to the seen set, so overlapping batches are
// dropped rather than interleaved; the next tick re-fetches.
func (s *Session) processBatch(batch []signaling.Signal) {
	if len(batch) == 0 {
		return
	}
	if !s.processing.CompareAndSwap(false, true) {
		return
	}
	defer s.processing.Store(false)

	s.mu.Lock()
	ordered := signaling.Sequence(batch, s.seen)
	s.mu.Unlock()

	for _, sig := range ordered {
		s.handleSignal(sig)
	}
}

// handleSignal applies a single deduplicated signal and marks it seen.
// Structurally impossible signals (an offer reaching the creator, an answer
// reaching the joiner) are swallowed: they must never crash the loop.
func (s *Session) handleSignal(sig signaling.Signal) {
	s.mu.Lock()
	pc := s.pc
	role := s.role
	pending := s.pending
	room := s.room
	s.mu.Unlock()
	// A hang-up between the poll and this point resets the session; a batch
	// from the old room must not leave any trace in the fresh seen set.
	if pc == nil || sig.Room != room {
		return
	}
	defer s.markSeen(sig.ID)

	switch sig.Kind {
	case signaling.KindAnswer:
		// Only meaningful for the creator, and only while our offer is
		// outstanding; anything else is a replay against a stale connection.
		if role != RoleCreator || pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
			slog.Debug("ignoring answer", "room", sig.Room, "role", role)
			return
		}
		desc, err := decodeDescription(sig.Payload)
		if err != nil {
			slog.Warn("malformed answer payload", "room", sig.Room, "err", err)
			return
		}
		if err := pc.SetRemoteDescription(desc); err != nil {
			slog.Warn("apply answer failed", "room", sig.Room, "err", err)
			return
		}
		s.remoteDescribed()
		s.countApplied()

	case signaling.KindICE:
		cand, err := decodeCandidate(sig.Payload)
		if err != nil {
			slog.Warn("malformed candidate payload", "room", sig.Room, "err", err)
			return
		}
		s.mu.Lock()
		if s.pending == pending && pending != nil {
			pending.Offer(cand)
		}
		s.mu.Unlock()
		s.countApplied()

	default:
		slog.Debug("ignoring signal", "room", sig.Room, "kind", sig.Kind)
	}
}

// remoteDescribed flips remoteDescSet and flushes the candidate buffer.
func (s *Session) remoteDescribed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remoteDescSet {
		return
	}
	s.remoteDescSet = true
	if s.pending != nil {
		s.pending.Flush()
	}
}

// enterInCall transitions connecting → incall. Remote-track arrival and the
// connection turning "connected" both race to call this; whichever fires
// first wins and the other is a no-op.
func (s *Session) enterInCall() {
	s.mu.Lock()
	if s.phase != PhaseConnecting {
		s.mu.Unlock()
		return
	}
	s.phase = PhaseInCall
	s.connectedAt = time.Now()
	s.mu.Unlock()
	s.emit(Event{Kind: EventPhase, Phase: PhaseInCall})
}

// teardown releases everything belonging to the current room attempt.
// Returns false when there was nothing to tear down.
func (s *Session) teardown() bool {
	s.mu.Lock()
	if s.phase == PhaseLobby && s.pc == nil {
		s.mu.Unlock()
		return false
	}

	cancel := s.stop
	pc := s.pc
	local := s.localStream
	screen := s.screenStream

	s.stop = nil
	s.pc = nil
	s.localStream = nil
	s.screenStream = nil
	s.audioSender = nil
	s.videoSender = nil
	s.pending = nil
	s.seen = make(map[string]struct{})
	s.remoteDescSet = false
	s.room = ""
	s.role = RoleNone
	s.muted = false
	s.cameraOff = false
	s.sharing = false
	s.phase = PhaseLobby
	if !s.connectedAt.IsZero() {
		s.lastCall = time.Since(s.connectedAt)
		s.connectedAt = time.Time{}
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pc != nil {
		pc.Close()
	}
	if screen != nil {
		screen.Close()
	}
	if local != nil {
		local.Close()
	}
	return true
}

func (s *Session) requireLobby(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseLobby {
		return NewError(op, ErrNotInLobby)
	}
	return nil
}

func (s *Session) publish(ctx context.Context, room string, kind signaling.Kind, payload string) {
	s.tr.Publish(ctx, room, kind, s.clientID, payload)
	s.mu.Lock()
	s.published++
	s.mu.Unlock()
}

func (s *Session) markSeen(id string) {
	s.mu.Lock()
	s.seen[id] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) countApplied() {
	s.mu.Lock()
	s.applied++
	s.mu.Unlock()
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
	s.emit(Event{Kind: EventPhase, Phase: p})
}

func (s *Session) notice(text string) {
	s.emit(Event{Kind: EventNotice, Notice: text})
}

// emit never blocks; a saturated consumer loses events rather than stalling
// the protocol.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *Session) webrtcConfig() webrtc.Configuration {
	iceServers := []webrtc.ICEServer{{URLs: s.cfg.GetSTUNServers()}}

	if turn := s.cfg.GetTURNServers(); turn != nil {
		username, password := s.cfg.GetTURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if s.cfg.ForceRelay {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}

// addRecvOnlyTransceivers gives a capture-less connection valid audio/video
// m-lines so offers and answers still negotiate ICE.
func addRecvOnlyTransceivers(pc *webrtc.PeerConnection) {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			slog.Warn("add recvonly transceiver failed", "kind", kind.String(), "err", err)
		}
	}
}
