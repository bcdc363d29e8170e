package statushandler

import (
	"fmt"
	"net/http"
	"sort"
)

// PlainHandler renders the snapshot as plain text, ported from
// savate/status.py's SimpleStatusClient (pprint of the sources dict).
type PlainHandler struct{}

func newPlainHandler(options map[string]interface{}) (StatusHandler, error) {
	return &PlainHandler{}, nil
}

// ServeStatus writes a plain-text rendering of snap.
func (h *PlainHandler) ServeStatus(w http.ResponseWriter, r *http.Request, snap StatsSnapshot) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "total_clients_number: %d\n", snap.TotalClients)
	fmt.Fprintf(w, "pid: %d\n", snap.PID)
	fmt.Fprintf(w, "max_buffer_queue_size: %d\n", snap.MaxQueueSize)
	fmt.Fprintf(w, "min_buffer_queue_size: %d\n", snap.MinQueueSize)
	fmt.Fprintf(w, "median_buffer_queue_size: %d\n", snap.MedianQueueSize)
	fmt.Fprintf(w, "average_buffer_queue_size: %.2f\n", snap.AverageQueueSize)

	mounts := make([]string, 0, len(snap.Sources))
	for m := range snap.Sources {
		mounts = append(mounts, m)
	}
	sort.Strings(mounts)

	for _, mount := range mounts {
		fmt.Fprintf(w, "%s:\n", mount)
		for _, src := range snap.Sources[mount] {
			fmt.Fprintf(w, "  %s:\n", src.Address)
			for _, c := range src.Clients {
				fmt.Fprintf(w, "    %s: %s\n", c.ID, c.Address)
			}
		}
	}
}
