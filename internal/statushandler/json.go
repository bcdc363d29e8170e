package statushandler

import (
	"encoding/json"
	"net/http"
)

// JSONHandler renders the snapshot as indented JSON, ported from
// savate/status.py's JSONStatusClient (json.dumps(status_dict, indent=4)).
type JSONHandler struct{}

func newJSONHandler(options map[string]interface{}) (StatusHandler, error) {
	return &JSONHandler{}, nil
}

type jsonSnapshot struct {
	TotalClientsNumber      int                      `json:"total_clients_number"`
	PID                     int                      `json:"pid"`
	MaxBufferQueueSize      int64                    `json:"max_buffer_queue_size"`
	MinBufferQueueSize      int64                    `json:"min_buffer_queue_size"`
	MedianBufferQueueSize   int64                    `json:"median_buffer_queue_size"`
	AverageBufferQueueSize  float64                  `json:"average_buffer_queue_size"`
	Sources                 map[string][]SourceEntry `json:"sources"`
}

// ServeStatus writes a JSON rendering of snap.
func (h *JSONHandler) ServeStatus(w http.ResponseWriter, r *http.Request, snap StatsSnapshot) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	_ = enc.Encode(jsonSnapshot{
		TotalClientsNumber:     snap.TotalClients,
		PID:                    snap.PID,
		MaxBufferQueueSize:     snap.MaxQueueSize,
		MinBufferQueueSize:     snap.MinQueueSize,
		MedianBufferQueueSize:  snap.MedianQueueSize,
		AverageBufferQueueSize: snap.AverageQueueSize,
		Sources:                snap.Sources,
	})
}
