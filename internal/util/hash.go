// Package util provides shared utility functions.
package util

import (
	"encoding/binary"
	"hash/fnv"
	"time"
)

// TransferID derives a 32-bit transfer identifier from the current time and
// the source name. Two sources started in the same second still get distinct
// ids. The value only has to be unique among live transfers on one connection.
func TransferID(name string, now time.Time) uint32 {
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(now.UnixNano()))

	h := fnv.New32a()
	h.Write(ts[:])
	h.Write([]byte(name))
	id := h.Sum32()
	if id == 0 {
		// 0 means "derive one" in SendOptions.
		id = uint32(now.Unix())
	}
	return id
}
