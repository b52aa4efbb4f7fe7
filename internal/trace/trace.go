// Package trace persists run traces. The loop records steps through an
// agent.TraceSink; implementations here fan steps out to JSONL files, OTel
// spans, and live subscribers without ever blocking the loop's critical
// path beyond a bounded enqueue.
package trace

import (
	"time"

	"github.com/vigil-agent/vigil/internal/agent"
)

// Record is one emitted trace entry: a step tagged with its run.
type Record struct {
	RunID string     `json:"run_id"`
	Step  agent.Step `json:"step"`
}

// Sink consumes trace records. Implementations may block; wrap them in an
// Emitter to keep them off the loop's critical path.
type Sink interface {
	Write(rec Record)
}

// Multi fans one record out to several sinks in order.
type Multi []Sink

// Write sends the record to every sink.
func (m Multi) Write(rec Record) {
	for _, s := range m {
		s.Write(rec)
	}
}

// Emitter is the async boundary between the loop and its sinks. Record
// enqueues with a non-blocking send; when the buffer is full the step is
// counted as dropped rather than stalling the run.
type Emitter struct {
	sink    Sink
	ch      chan Record
	done    chan struct{}
	dropped func()
}

// EmitterConfig configures an Emitter.
type EmitterConfig struct {
	// Sink receives records on the emitter's own goroutine.
	Sink Sink

	// Buffer is the enqueue capacity. Zero means DefaultBuffer.
	Buffer int

	// OnDrop, if non-nil, is called once per record lost to a full buffer.
	OnDrop func()
}

// DefaultBuffer is the emitter's enqueue capacity when unset.
const DefaultBuffer = 256

// NewEmitter starts an emitter draining into cfg.Sink.
func NewEmitter(cfg EmitterConfig) *Emitter {
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	e := &Emitter{
		sink:    cfg.Sink,
		ch:      make(chan Record, buffer),
		done:    make(chan struct{}),
		dropped: cfg.OnDrop,
	}
	go e.drain()
	return e
}

// Record implements agent.TraceSink with a bounded, non-blocking enqueue.
func (e *Emitter) Record(runID string, step agent.Step) {
	select {
	case e.ch <- Record{RunID: runID, Step: step}:
	default:
		if e.dropped != nil {
			e.dropped()
		}
	}
}

// Close stops the emitter after flushing buffered records. It must not be
// called while runs are still in flight.
func (e *Emitter) Close() {
	close(e.ch)
	<-e.done
}

// Flush waits until every record enqueued before the call has been handed
// to the sink.
func (e *Emitter) Flush(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for len(e.ch) > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	return true
}

func (e *Emitter) drain() {
	defer close(e.done)
	for rec := range e.ch {
		e.sink.Write(rec)
	}
}

// Interface guard.
var _ agent.TraceSink = (*Emitter)(nil)
