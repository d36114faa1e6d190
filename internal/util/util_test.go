package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytesFixedWidth(t *testing.T) {
	testCases := []struct {
		in   float64
		want string
	}{
		{0, " 0.0   B"},
		{99, "99.0   B"},
		{1536, " 1.5 KiB"},
		{100 * 1024, " 0.1 MiB"},
	}
	for _, tc := range testCases {
		got := FormatBytes(tc.in)
		assert.Equal(t, tc.want, got)
		assert.Len(t, got, 8)
	}
}

func TestFormatStats(t *testing.T) {
	assert.Equal(t, "In:  1.0 KiB/s | Out: 10.0   B/s | Active:  3", formatStats(1024, 10, 3))
}

func TestTransferIDDistinctPerName(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := TransferID("a.txt", now)
	b := TransferID("b.txt", now)
	assert.NotZero(t, a)
	assert.NotZero(t, b)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, TransferID("a.txt", now), "same inputs must derive the same id")
	assert.NotEqual(t, a, TransferID("a.txt", now.Add(time.Millisecond)))
}

func TestStatsActive(t *testing.T) {
	s := &stats{}
	s.AddStarted()
	s.AddStarted()
	s.AddStarted()
	s.AddSucceeded()
	s.AddFailed()
	assert.EqualValues(t, 1, s.Active())
}

func TestSnapshotRates(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	prev := Snapshot{Sent: 0, Recv: 1000, At: t0}
	cur := Snapshot{Sent: 4096, Recv: 3000, At: t0.Add(2 * time.Second)}

	in, out := cur.Rates(prev)
	assert.InDelta(t, 1000, in, 1e-9)
	assert.InDelta(t, 2048, out, 1e-9)

	in, out = prev.Rates(prev)
	assert.Zero(t, in)
	assert.Zero(t, out)
}
