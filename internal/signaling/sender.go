package signaling

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/wsxfer/internal/transport"
)

// sender owns the write side of the signaling socket. gorilla/websocket allows
// one concurrent writer, and ICE callbacks fire from pion's goroutines.
type sender struct {
	peer *transport.Peer
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *sender) send(msg message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *sender) sendOffer() error  { return s.describe(msgTypeOffer, s.peer.CreateOffer) }
func (s *sender) sendAnswer() error { return s.describe(msgTypeAnswer, s.peer.CreateAnswer) }

// describe generates a local description, applies it and ships its SDP as kind.
func (s *sender) describe(kind messageType, create func() (webrtc.SessionDescription, error)) error {
	desc, err := create()
	if err != nil {
		return err
	}
	if err := s.peer.SetLocalDescription(desc); err != nil {
		return err
	}
	return s.send(message{Type: kind, SDP: desc.SDP})
}

// trickle forwards gathered local candidates as they appear. A candidate that
// fails to send is dropped.
func (s *sender) trickle() {
	s.peer.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		cand, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		_ = s.send(message{Type: msgTypeCandidate, Candidate: string(cand)})
	})
}
