package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/wsxfer/internal/transport"
)

// receiver applies inbound signaling messages to the Peer. The answering
// side replies to an offer through its sender. Candidates that arrive before
// the remote description are held until it is set.
type receiver struct {
	peer   *transport.Peer
	conn   *websocket.Conn
	sender *sender

	haveRemote bool
	pending    []webrtc.ICECandidateInit
}

func (r *receiver) remoteSet() error {
	r.haveRemote = true
	for _, c := range r.pending {
		if err := r.peer.AddICECandidate(c); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}
	}
	r.pending = nil
	return nil
}

// watch runs until the WebSocket fails or a message cannot be applied.
func (r *receiver) watch() error {
	for {
		var msg message
		if err := r.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read signaling message: %w", err)
		}

		switch msg.Type {
		case msgTypeOffer:
			if err := r.peer.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer, SDP: msg.SDP,
			}); err != nil {
				return fmt.Errorf("apply offer: %w", err)
			}
			if err := r.remoteSet(); err != nil {
				return err
			}
			if err := r.sender.sendAnswer(); err != nil {
				return fmt.Errorf("send answer: %w", err)
			}

		case msgTypeAnswer:
			if err := r.peer.SetRemoteDescription(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer, SDP: msg.SDP,
			}); err != nil {
				return fmt.Errorf("apply answer: %w", err)
			}
			if err := r.remoteSet(); err != nil {
				return err
			}

		case msgTypeCandidate:
			var init webrtc.ICECandidateInit
			if err := json.Unmarshal([]byte(msg.Candidate), &init); err != nil {
				return fmt.Errorf("parse ICE candidate: %w", err)
			}
			if !r.haveRemote {
				r.pending = append(r.pending, init)
				continue
			}
			if err := r.peer.AddICECandidate(init); err != nil {
				return fmt.Errorf("add ICE candidate: %w", err)
			}
		}
	}
}
