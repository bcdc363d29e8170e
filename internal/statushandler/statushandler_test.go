package statushandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func sampleSnapshot() StatsSnapshot {
	sources := map[string][]SourceEntry{
		"/radio.mp3": {
			{Address: "10.0.0.1:1234", Clients: []ClientEntry{
				{ID: "1", Address: "192.168.0.1:5555"},
				{ID: "2", Address: "192.168.0.2:5556"},
			}},
		},
	}
	return BuildSnapshot(sources, []int64{100, 200, 300})
}

func TestBuildSnapshotQueueStatistics(t *testing.T) {
	snap := sampleSnapshot()
	if snap.MinQueueSize != 100 {
		t.Errorf("MinQueueSize = %d, want 100", snap.MinQueueSize)
	}
	if snap.MaxQueueSize != 300 {
		t.Errorf("MaxQueueSize = %d, want 300", snap.MaxQueueSize)
	}
	if snap.TotalClients != 2 {
		t.Errorf("TotalClients = %d, want 2", snap.TotalClients)
	}
}

func TestBuildSnapshotEmptyQueueSizes(t *testing.T) {
	snap := BuildSnapshot(map[string][]SourceEntry{}, nil)
	if snap.MinQueueSize != -1 || snap.MaxQueueSize != -1 || snap.MedianQueueSize != -1 {
		t.Errorf("expected sentinel -1 queue stats for no clients, got min=%d max=%d median=%d",
			snap.MinQueueSize, snap.MaxQueueSize, snap.MedianQueueSize)
	}
}

func TestRegistryBindUnknownHandler(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind("/status.txt", "bogus", nil); err == nil {
		t.Fatal("expected an error for an unknown status handler name")
	}
}

func TestPlainHandlerServesText(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind("/status.txt", "plain", nil); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	h, ok := r.Lookup("/status.txt")
	if !ok {
		t.Fatal("expected the plain handler to be bound")
	}

	rec := httptest.NewRecorder()
	h.ServeStatus(rec, httptest.NewRequest(http.MethodGet, "/status.txt", nil), sampleSnapshot())

	if ct := rec.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}
	if !strings.Contains(rec.Body.String(), "total_clients_number: 2") {
		t.Errorf("body missing total_clients_number, got %q", rec.Body.String())
	}
}

func TestJSONHandlerServesValidJSON(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind("/status.json", "json", nil); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	h, _ := r.Lookup("/status.json")

	rec := httptest.NewRecorder()
	h.ServeStatus(rec, httptest.NewRequest(http.MethodGet, "/status.json", nil), sampleSnapshot())

	var decoded map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("response body is not valid JSON: %v", err)
	}
	if decoded["total_clients_number"].(float64) != 2 {
		t.Errorf("total_clients_number = %v, want 2", decoded["total_clients_number"])
	}
}

func TestHTMLHandlerServesSourcesList(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind("/status.html", "html", nil); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	h, _ := r.Lookup("/status.html")

	rec := httptest.NewRecorder()
	h.ServeStatus(rec, httptest.NewRequest(http.MethodGet, "/status.html", nil), sampleSnapshot())

	if !strings.Contains(rec.Body.String(), "/radio.mp3") {
		t.Errorf("expected the mount path in the rendered HTML, got %q", rec.Body.String())
	}
}

func TestStaticFileHandlerServesFileContents(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "status-*.txt")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.WriteString("hello status\n"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	f.Close()

	r := NewRegistry()
	if err := r.Bind("/status.raw", "static_file", map[string]interface{}{"static_file": f.Name()}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	h, _ := r.Lookup("/status.raw")

	rec := httptest.NewRecorder()
	h.ServeStatus(rec, httptest.NewRequest(http.MethodGet, "/status.raw", nil), sampleSnapshot())

	if rec.Body.String() != "hello status\n" {
		t.Errorf("body = %q, want file contents", rec.Body.String())
	}
}

func TestStaticFileHandlerMissingFileReturns500(t *testing.T) {
	r := NewRegistry()
	if err := r.Bind("/status.raw", "static_file", map[string]interface{}{"static_file": "/nonexistent/path"}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	h, _ := r.Lookup("/status.raw")

	rec := httptest.NewRecorder()
	h.ServeStatus(rec, httptest.NewRequest(http.MethodGet, "/status.raw", nil), sampleSnapshot())

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
