// Package statushandler implements the status-page handler registry
// (spec §6 "status" config, §8 status response formats), ported from
// savate/status.py's BaseStatusClient subclasses.
package statushandler

import (
	"os"
	"sort"
)

// ClientEntry is one connected subscriber, as shown in the
// mount -> source address -> client-address tree (spec §6).
type ClientEntry struct {
	ID      string
	Address string
}

// SourceEntry is one publisher's clients, keyed by the publisher's
// peer address.
type SourceEntry struct {
	Address string
	Clients []ClientEntry
}

// StatsSnapshot is the data every status format renders: total client
// count, process id, per-subscriber output queue size statistics, and
// the mount/source/client tree.
type StatsSnapshot struct {
	TotalClients int
	PID          int
	MaxQueueSize int64
	MinQueueSize int64
	// MedianQueueSize uses the same n/2 floor-division index as the
	// source (spec §9 open question, retained for parity: not a true
	// median for an even client count).
	MedianQueueSize int64
	AverageQueueSize float64
	Sources         map[string][]SourceEntry // mount path -> sources
}

// BuildSnapshot assembles a StatsSnapshot from per-subscriber queue sizes
// and the mount/source/client tree, mirroring
// BaseStatusClient.get_status_dict's sort-then-index approach.
func BuildSnapshot(sources map[string][]SourceEntry, queueSizes []int64) StatsSnapshot {
	total := 0
	for _, entries := range sources {
		for _, s := range entries {
			total += len(s.Clients)
		}
	}

	sorted := append([]int64(nil), queueSizes...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	snap := StatsSnapshot{
		TotalClients: total,
		PID:          os.Getpid(),
		Sources:      sources,
	}

	if len(sorted) == 0 {
		snap.MinQueueSize = -1
		snap.MaxQueueSize = -1
		snap.MedianQueueSize = -1
		return snap
	}

	var sum int64
	for _, v := range sorted {
		sum += v
	}
	snap.MinQueueSize = sorted[0]
	snap.MaxQueueSize = sorted[len(sorted)-1]
	medianIdx := total / 2
	if medianIdx >= len(sorted) {
		medianIdx = len(sorted) - 1
	}
	snap.MedianQueueSize = sorted[medianIdx]
	snap.AverageQueueSize = float64(sum) / float64(len(sorted))
	return snap
}
