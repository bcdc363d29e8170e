package statushandler

import (
	"fmt"
	"net/http"
	"os"
)

// StaticFileHandler serves the contents of a fixed file on disk for
// every request, ported from savate/status.py's
// StaticFileStatusClient. A read failure yields a 500 with a plain
// error body, matching the original's IOError fallback.
type StaticFileHandler struct {
	path string
}

func newStaticFileHandler(options map[string]interface{}) (StatusHandler, error) {
	path, ok := optionString(options, "static_file")
	if !ok || path == "" {
		return nil, fmt.Errorf("static_file status handler requires a non-empty %q option", "static_file")
	}
	return &StaticFileHandler{path: path}, nil
}

// ServeStatus ignores snap and serves the configured file's contents.
func (h *StaticFileHandler) ServeStatus(w http.ResponseWriter, r *http.Request, snap StatsSnapshot) {
	body, err := os.ReadFile(h.path)
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintln(w, "Failed to open static status file")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(body)
}

func optionString(options map[string]interface{}, key string) (string, bool) {
	v, ok := options[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
