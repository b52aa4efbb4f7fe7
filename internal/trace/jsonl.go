package trace

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JSONLSink appends one JSON object per record to a writer. Writes are
// serialized so concurrent runs interleave at line granularity.
type JSONLSink struct {
	mu      sync.Mutex
	writer  io.Writer
	onWrite func(Record)
}

// NewJSONLSink wraps w. onWrite, if non-nil, observes every record after a
// successful encode (used in tests).
func NewJSONLSink(w io.Writer, onWrite func(Record)) *JSONLSink {
	return &JSONLSink{writer: w, onWrite: onWrite}
}

// OpenJSONLFile opens (or creates) an append-only trace file and returns a
// sink over it. The caller owns closing the file.
func OpenJSONLFile(path string) (*JSONLSink, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return NewJSONLSink(f, nil), f, nil
}

// Write implements Sink.
func (s *JSONLSink) Write(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.NewEncoder(s.writer).Encode(rec); err != nil {
		return
	}
	if s.onWrite != nil {
		s.onWrite(rec)
	}
}

// Interface guard.
var _ Sink = (*JSONLSink)(nil)
