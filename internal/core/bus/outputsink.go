package bus

import (
	"io"
	"sync"
)

// OutputSink is a per-subscriber non-blocking write queue bounded by a
// byte budget (Qmax). It mirrors spec §4.2: append is O(1) and never
// blocks; flush drains as many queued chunks as the underlying writer
// accepts in one call; overflow is reported rather than silently
// dropped, so the owning subscriber can be scheduled for termination.
type OutputSink struct {
	mu     sync.Mutex
	w      io.Writer
	queue  [][]byte
	queued int64
	qmax   int64 // 0 means unbounded
}

// NewOutputSink creates a sink writing to w with an optional byte cap.
// A qmax of 0 disables the cap.
func NewOutputSink(w io.Writer, qmax int64) *OutputSink {
	return &OutputSink{w: w, qmax: qmax}
}

// Append enqueues data for later flushing. If qmax is set and the
// append would push the queued byte count above it, nothing is
// enqueued and overflow is true -- the caller must then terminate the
// subscriber (spec §4.2, §5 back-pressure policy: fail fast, never
// block the publisher).
func (s *OutputSink) Append(data []byte) (overflow bool) {
	if len(data) == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.qmax > 0 && s.queued+int64(len(data)) > s.qmax {
		return true
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.queue = append(s.queue, buf)
	s.queued += int64(len(buf))
	return false
}

// Flush writes as many queued chunks as the writer accepts, in order,
// removing them from the queue as they succeed. It stops at the first
// write error or short write and leaves the remainder (including a
// partially written chunk) queued at the head.
func (s *OutputSink) Flush() (drained bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.queue) > 0 {
		chunk := s.queue[0]
		n, werr := s.w.Write(chunk)
		if n > 0 {
			s.queued -= int64(n)
			if n < len(chunk) {
				s.queue[0] = chunk[n:]
			} else {
				s.queue = s.queue[1:]
			}
		}
		if werr != nil {
			return len(s.queue) == 0, werr
		}
		if n < len(chunk) {
			return false, nil
		}
	}
	return true, nil
}

// Empty reports whether the queue currently holds no bytes. The owning
// handler uses this to decide whether it still needs writability
// interest registered.
func (s *OutputSink) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) == 0
}

// Queued returns the current queued byte count Q.
func (s *OutputSink) Queued() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queued
}
