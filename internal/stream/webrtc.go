package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rolx/internal/audio"
	"github.com/desertthunder/rolx/internal/shared"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket is the largest Opus packet libopus can emit.
const maxOpusPacket = 4000

// WebRTCOptions configures [WebRTCHandler].
type WebRTCOptions struct {
	Bitrate    int // Opus bitrate in bits/s, default 128000
	StreamID   string
	ICEServers []string
	// GatherTimeout bounds ICE candidate gathering before the answer is sent.
	GatherTimeout time.Duration
	Logger        *log.Logger
}

// WebRTCHandler serves WebRTC SDP negotiation for low-latency Opus streaming.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	opts        WebRTCOptions
	logger      *log.Logger

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]struct{}
}

// NewWebRTCHandler creates a WebRTC stream handler.
func NewWebRTCHandler(b *Broadcaster, opts WebRTCOptions) *WebRTCHandler {
	if opts.Bitrate <= 0 {
		opts.Bitrate = 128000
	}
	if opts.StreamID == "" {
		opts.StreamID = "rolx"
	}
	if opts.GatherTimeout <= 0 {
		opts.GatherTimeout = 5 * time.Second
	}
	return &WebRTCHandler{
		broadcaster: b,
		opts:        opts,
		logger:      shared.WithLogger(opts.Logger, "component", "stream.webrtc"),
		peers:       make(map[*webrtc.PeerConnection]struct{}),
	}
}

// PeerCount returns the number of active WebRTC peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close hangs up every peer.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := make([]*webrtc.PeerConnection, 0, len(h.peers))
	for pc := range h.peers {
		peers = append(peers, pc)
	}
	h.peers = make(map[*webrtc.PeerConnection]struct{})
	h.mu.Unlock()

	for _, pc := range peers {
		pc.Close()
	}
}

func (h *WebRTCHandler) configuration() webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(h.opts.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: h.opts.ICEServers}}
	}
	return cfg
}

// ServeHTTP accepts a JSON SDP offer and answers with the local description.
func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil || offer.SDP == "" {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(h.configuration())
	if err != nil {
		h.logger.Error("create peer connection", "error", err)
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: audio.SampleRate, Channels: audio.Channels},
		"audio",
		h.opts.StreamID,
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}

	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	select {
	case <-gatherComplete:
	case <-time.After(h.opts.GatherTimeout):
		h.logger.Warn("ICE gathering timed out, answering with partial candidates")
	case <-r.Context().Done():
		pc.Close()
		return
	}

	h.mu.Lock()
	h.peers[pc] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("peer connected", "peers", h.PeerCount())

	ctx, cancel := context.WithCancel(context.Background())
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
			cancel()
			h.removePeer(pc)
			pc.Close()
			h.logger.Info("peer disconnected", "state", s.String(), "peers", h.PeerCount())
		}
	})
	go h.streamToPeer(ctx, r.RemoteAddr, track)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

func (h *WebRTCHandler) streamToPeer(ctx context.Context, peer string, track *webrtc.TrackLocalStaticSample) {
	listener := h.broadcaster.Subscribe("webrtc " + peer)
	defer h.broadcaster.Unsubscribe(listener)

	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		h.logger.Error("opus encoder", "error", err)
		return
	}
	if err := enc.SetBitrate(h.opts.Bitrate); err != nil {
		h.logger.Warn("opus bitrate", "bitrate", h.opts.Bitrate, "error", err)
	}

	packet := make([]byte, maxOpusPacket)
	for {
		select {
		case <-ctx.Done():
			return
		case <-listener.Done():
			return
		case frame, ok := <-listener.C:
			if !ok {
				return
			}
			n, err := enc.Encode(frame, packet)
			if err != nil {
				h.logger.Debug("opus encode", "error", err)
				continue
			}
			if err := track.WriteSample(media.Sample{Data: packet[:n], Duration: audio.FrameDuration}); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) removePeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, pc)
}
