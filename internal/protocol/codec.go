package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrShortFrame is returned by Decode for input shorter than HeaderSize.
	ErrShortFrame = errors.New("frame too short")
	// ErrMalformedMeta is returned by Decode when a START payload is not valid JSON.
	ErrMalformedMeta = errors.New("malformed start metadata")
)

// Encode serializes a Frame into a single wire message.
func Encode(f *Frame) []byte {
	return encode(f.Type, f.ID, f.Seq, f.Payload)
}

func encode(typ Type, id, seq uint32, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	buf[0] = byte(typ)
	binary.LittleEndian.PutUint32(buf[1:5], id)
	binary.LittleEndian.PutUint32(buf[5:9], seq)
	copy(buf[HeaderSize:], payload)
	return buf
}

// Decode deserializes a wire message into a Frame. The payload is copied,
// so the caller may reuse data afterwards.
func Decode(data []byte) (*Frame, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes (need at least %d)", ErrShortFrame, len(data), HeaderSize)
	}
	f := &Frame{
		Type: Type(data[0]),
		ID:   binary.LittleEndian.Uint32(data[1:5]),
		Seq:  binary.LittleEndian.Uint32(data[5:9]),
	}
	if len(data) > HeaderSize {
		f.Payload = make([]byte, len(data)-HeaderSize)
		copy(f.Payload, data[HeaderSize:])
	}
	if f.Type == TypeStart {
		meta := &Meta{}
		if len(f.Payload) > 0 {
			if err := json.Unmarshal(f.Payload, meta); err != nil {
				return nil, fmt.Errorf("%w (id=%08x): %v", ErrMalformedMeta, f.ID, err)
			}
		}
		f.Meta = meta
	}
	return f, nil
}

// ---------------------------------------------------------------------------
// Packet factory
// ---------------------------------------------------------------------------

// Start builds a START frame announcing a transfer. A nil meta is sent as
// an unknown-length transfer.
func Start(id uint32, meta *Meta) []byte {
	if meta == nil {
		meta = &Meta{}
	}
	// Marshalling a struct of plain scalars cannot fail.
	payload, _ := json.Marshal(meta)
	return encode(TypeStart, id, 0, payload)
}

// Data builds a DATA frame carrying one chunk.
func Data(id, seq uint32, chunk []byte) []byte {
	return encode(TypeData, id, seq, chunk)
}

// Ready builds a READY frame.
func Ready(id uint32) []byte { return encode(TypeReady, id, 0, nil) }

// Fin builds a FIN frame.
func Fin(id uint32) []byte { return encode(TypeFin, id, 0, nil) }

// Abort builds an ABORT frame.
func Abort(id uint32) []byte { return encode(TypeAbort, id, 0, nil) }
