package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Relay traffic counters
// ──────────────────────────────────────────────────────────────────────────────

// Stats counts relay traffic. All counters are cumulative since creation.
type Stats struct {
	TotalConns    atomic.Int64 // sockets registered (peers and observers)
	ClosedConns   atomic.Int64 // sockets unregistered
	RejectedConns atomic.Int64 // sockets turned away by the capacity policy
	Relayed       atomic.Int64 // frames forwarded to the other peer
	RelayedBytes  atomic.Int64 // bytes forwarded to the other peer
	Dropped       atomic.Int64 // frames dropped (malformed, no partner, full buffer)
}

// NewStats returns a zeroed counter set.
func NewStats() *Stats { return &Stats{} }

func (s *Stats) AddConn()    { s.TotalConns.Add(1) }
func (s *Stats) RemoveConn() { s.ClosedConns.Add(1) }
func (s *Stats) AddReject()  { s.RejectedConns.Add(1) }
func (s *Stats) AddDropped() { s.Dropped.Add(1) }
func (s *Stats) AddRelayed(n int) {
	s.Relayed.Add(1)
	s.RelayedBytes.Add(int64(n))
}

// StatsSnapshot is a point-in-time copy of Stats, suitable for JSON output.
type StatsSnapshot struct {
	TotalConns    int64 `json:"totalConns"`
	ClosedConns   int64 `json:"closedConns"`
	RejectedConns int64 `json:"rejectedConns"`
	Relayed       int64 `json:"relayed"`
	RelayedBytes  int64 `json:"relayedBytes"`
	Dropped       int64 `json:"dropped"`
}

// Snapshot loads every counter.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalConns:    s.TotalConns.Load(),
		ClosedConns:   s.ClosedConns.Load(),
		RejectedConns: s.RejectedConns.Load(),
		Relayed:       s.Relayed.Load(),
		RelayedBytes:  s.RelayedBytes.Load(),
		Dropped:       s.Dropped.Load(),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartReporter launches a goroutine that logs relay statistics every
// interval when anything changed. It stops when ctx is cancelled.
func (s *Stats) StartReporter(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prev StatsSnapshot
		for {
			select {
			case <-ticker.C:
				cur := s.Snapshot()
				if cur != prev {
					secs := interval.Seconds()
					pterm.DefaultLogger.Info(formatStats(
						float64(cur.RelayedBytes-prev.RelayedBytes)/secs,
						cur.Relayed-prev.Relayed,
						cur.TotalConns-prev.TotalConns,
						cur.ClosedConns-prev.ClosedConns,
						cur.Dropped-prev.Dropped,
					))
				}
				prev = cur

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the interval deltas for display in the logger.
func formatStats(rate float64, msgs, joined, left, dropped int64) string {
	return fmt.Sprintf("Relay: %s/s | Msgs: %4d | Conn: %2d↑ %2d↓ | Dropped: %d",
		formatBytes(rate),
		msgs,
		joined,
		left,
		dropped,
	)
}
