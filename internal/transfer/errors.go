package transfer

import (
	"errors"
	"fmt"
)

// Terminal session errors. Sessions return them wrapped with the transfer id;
// match with errors.Is.
var (
	ErrInvalidType     = errors.New("invalid frame type")
	ErrInvalidSequence = errors.New("invalid sequence")
	ErrTimeout         = errors.New("transfer timeout")
	ErrAborted         = errors.New("transfer aborted")
	ErrSocketClosed    = errors.New("socket closed")
	ErrIncomplete      = errors.New("transfer incomplete")
	ErrDuplicateID     = errors.New("transfer id already in use")
)

func wrapID(id uint32, err error) error {
	return fmt.Errorf("transfer %08x: %w", id, err)
}
