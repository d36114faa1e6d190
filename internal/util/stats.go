package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// Stats is the process-wide traffic/transfer counter.
var Stats = &stats{}

type stats struct {
	Started   atomic.Int64 // transfers started since process start (both roles)
	Succeeded atomic.Int64 // transfers that terminated cleanly
	Failed    atomic.Int64 // transfers that terminated with an error
	BytesSent atomic.Int64 // cumulative bytes written to the connection
	BytesRecv atomic.Int64 // cumulative bytes read from the connection
}

func (s *stats) AddStarted()   { s.Started.Add(1) }
func (s *stats) AddSucceeded() { s.Succeeded.Add(1) }
func (s *stats) AddFailed()    { s.Failed.Add(1) }
func (s *stats) AddSent(n int) { s.BytesSent.Add(int64(n)) }
func (s *stats) AddRecv(n int) { s.BytesRecv.Add(int64(n)) }

// Active returns the number of transfers that have not terminated yet.
func (s *stats) Active() int64 {
	return s.Started.Load() - s.Succeeded.Load() - s.Failed.Load()
}

// Snapshot is a point-in-time copy of the byte counters.
type Snapshot struct {
	Sent, Recv int64
	At         time.Time
}

func (s *stats) Snapshot() Snapshot {
	return Snapshot{Sent: s.BytesSent.Load(), Recv: s.BytesRecv.Load(), At: time.Now()}
}

// Rates returns inbound and outbound bytes per second between prev and cur.
func (cur Snapshot) Rates(prev Snapshot) (in, out float64) {
	secs := cur.At.Sub(prev.At).Seconds()
	if secs <= 0 {
		return 0, 0
	}
	return float64(cur.Recv-prev.Recv) / secs, float64(cur.Sent-prev.Sent) / secs
}

// StartStatsReporter logs throughput every interval until ctx is cancelled.
// Idle intervals are skipped.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		prev := Stats.Snapshot()
		for {
			select {
			case <-ticker.C:
				cur := Stats.Snapshot()
				if in, out := cur.Rates(prev); in > 10 || out > 10 {
					LogInfo("%s", formatStats(in, out, Stats.Active()))
				}
				prev = cur
			case <-ctx.Done():
				return
			}
		}
	}()
}

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes renders b in exactly 8 columns: "99.0   B", " 1.5 KiB".
func FormatBytes(b float64) string {
	unitIdx := 0

	// >99 would need a fifth integer column
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

func formatStats(inS, outS float64, active int64) string {
	return fmt.Sprintf("In: %s/s | Out: %s/s | Active: %2d",
		FormatBytes(inS),
		FormatBytes(outS),
		active,
	)
}
