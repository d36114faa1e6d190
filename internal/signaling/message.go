// Package signaling handles the WebSocket rendezvous between sender and
// receiver. The sender accepts one PIN-checked client; the pair may then
// exchange SDP and ICE over that socket to move onto a WebRTC DataChannel.
package signaling

// messageType identifies the kind of signaling message.
type messageType string

const (
	msgTypeOffer     messageType = "offer"
	msgTypeAnswer    messageType = "answer"
	msgTypeCandidate messageType = "candidate"
)

// message is the JSON structure exchanged over the WebSocket during an upgrade.
type message struct {
	Type      messageType `json:"type"`
	SDP       string      `json:"sdp,omitempty"`
	Candidate string      `json:"candidate,omitempty"` // JSON-encoded ICECandidateInit
}
