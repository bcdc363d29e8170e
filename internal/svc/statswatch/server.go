package statswatch

import (
	"net/http"
	"time"
)

// Service wires a statswatch Handler for registration against the
// main HTTP server, mirroring the teacher's per-feature Service shape.
type Service struct {
	handler *Handler
}

// NewService creates a statswatch service pushing snapshots produced
// by snapshot every interval.
func NewService(snapshot SnapshotFunc, interval time.Duration) *Service {
	return &Service{handler: NewHandler(snapshot, interval)}
}

// RegisterRoutes registers the statswatch route on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.handler.RegisterRoutes(mux)
}
