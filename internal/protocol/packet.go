// Package protocol defines the frame format and message kinds of the
// chunked transfer protocol.
package protocol

import "fmt"

// Type identifies the kind of a frame.
type Type uint8

// Frame type constants.
const (
	TypeUnknown Type = 0 // reserved, never sent
	TypeStart   Type = 1 // transfer announcement, payload is JSON Meta
	TypeData    Type = 2 // one chunk of the byte stream
	TypeReady   Type = 3 // receiver accepted the transfer
	TypeFin     Type = 4 // sender finished the stream
	TypeAbort   Type = 5 // either side gave up
)

// HeaderSize is the fixed header size: Type(1) + ID(4) + Seq(4).
const HeaderSize = 9

func (t Type) String() string {
	switch t {
	case TypeUnknown:
		return "UNKNOWN"
	case TypeStart:
		return "START"
	case TypeData:
		return "DATA"
	case TypeReady:
		return "READY"
	case TypeFin:
		return "FIN"
	case TypeAbort:
		return "ABORT"
	default:
		return fmt.Sprintf("TYPE(%d)", uint8(t))
	}
}

// Meta is the transfer description carried by a START frame.
// A zero Size means the length is unknown and disables completion checks.
type Meta struct {
	Size     int64  `json:"size"`
	Filename string `json:"filename,omitempty"`
}

// Frame is one protocol message.
type Frame struct {
	Type    Type
	ID      uint32 // transfer identifier
	Seq     uint32 // DATA sequence number, 0 for every other kind
	Payload []byte
	Meta    *Meta // decoded from Payload for TypeStart only
}
