package statushandler

import (
	"fmt"
	"html/template"
	"net/http"
	"sort"
)

// htmlTemplate matches savate/status.py's HTMLStatusClient.HTML_TPL:
// a key/value summary followed by a nested sources list, with the
// same AGPL logo footer.
var htmlTemplate = template.Must(template.New("status").Parse(`<!doctype html><html><body>
<pre>
<b>total_clients_number</b>: {{.Snap.TotalClients}}
<b>pid</b>: {{.Snap.PID}}
<b>max_buffer_queue_size</b>: {{.Snap.MaxQueueSize}}
<b>min_buffer_queue_size</b>: {{.Snap.MinQueueSize}}
<b>median_buffer_queue_size</b>: {{.Snap.MedianQueueSize}}
<b>average_buffer_queue_size</b>: {{printf "%.2f" .Snap.AverageQueueSize}}
</pre>
<h2>Sources</h2><ul>
{{range $mount := .Mounts}}<dt>{{$mount}}</dt><dd><ul>
{{range index $.Snap.Sources $mount}}<dt>{{.Address}} ({{len .Clients}}):</dt><dd><ul>
{{range .Clients}}<li>{{.ID}}: {{.Address}}</li>
{{end}}</ul></dd>
{{end}}</ul></dd>
{{end}}</ul>
<p><img src="http://www.gnu.org/graphics/agplv3-155x51.png" alt="APGL" /></p>
</body></html>`))

// HTMLHandler renders the snapshot as an HTML page.
type HTMLHandler struct{}

func newHTMLHandler(options map[string]interface{}) (StatusHandler, error) {
	return &HTMLHandler{}, nil
}

// ServeStatus writes an HTML rendering of snap.
func (h *HTMLHandler) ServeStatus(w http.ResponseWriter, r *http.Request, snap StatsSnapshot) {
	mounts := make([]string, 0, len(snap.Sources))
	for m := range snap.Sources {
		mounts = append(mounts, m)
	}
	sort.Strings(mounts)

	w.Header().Set("Content-Type", "text/html")
	data := struct {
		Snap   StatsSnapshot
		Mounts []string
	}{snap, mounts}
	if err := htmlTemplate.Execute(w, data); err != nil {
		http.Error(w, fmt.Sprintf("status template error: %v", err), http.StatusInternalServerError)
	}
}
