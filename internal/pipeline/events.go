package pipeline

import (
	"time"
)

// Event types emitted while a run progresses.
const (
	EventPipelineStart = "pipeline_start"
	EventStageStart    = "stage_start"
	EventStageComplete = "stage_complete"
	EventComplete      = "complete"
	EventError         = "error"
)

// Event is one progress notification. Complete and error events are terminal.
type Event struct {
	Type       string         `json:"type"`
	AnalysisID string         `json:"analysis_id"`
	Stage      string         `json:"stage,omitempty"`
	Step       int            `json:"step,omitempty"`
	TotalSteps int            `json:"total_steps,omitempty"`
	Decision   *StageDecision `json:"decision,omitempty"`
	Message    string         `json:"message,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Terminal reports whether no further events follow this one.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// Stream delivers the ordered events of a single run. It is safe for one
// producer and one consumer.
type Stream struct {
	ch     chan Event
	closed chan struct{}
}

// NewStream sizes the buffer so a full run never blocks the producer even
// when the consumer is slow: two events per stage plus start and terminal.
func NewStream() *Stream {
	return &Stream{
		ch:     make(chan Event, 32),
		closed: make(chan struct{}),
	}
}

// publish delivers ev without ever blocking the pipeline. Events published
// after close are dropped.
func (s *Stream) publish(ev Event) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.ch <- ev:
	default:
	}
}

// close marks the stream finished. Buffered events remain readable; Next
// reports !ok once they are drained. Only the producing goroutine calls this.
func (s *Stream) close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
		close(s.ch)
	}
}

// Next blocks for the next event. If no event arrives within idle, it
// synthesizes a terminal error event so consumers never hang on a stalled
// run.
func (s *Stream) Next(idle time.Duration) (Event, bool) {
	timer := time.NewTimer(idle)
	defer timer.Stop()
	select {
	case ev, ok := <-s.ch:
		if !ok {
			return Event{}, false
		}
		return ev, true
	case <-timer.C:
		return Event{
			Type:      EventError,
			Message:   "event stream idle timeout",
			Timestamp: time.Now().UTC(),
		}, true
	}
}

// sink publishes run events to an optional Stream. A nil sink is valid and
// drops everything, so non-streaming callers pass nothing.
type sink struct {
	stream   *Stream
	terminal bool
}

func newSink(stream *Stream) *sink {
	return &sink{stream: stream}
}

func (s *sink) emit(ev Event) {
	if s == nil || s.stream == nil || s.terminal {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.stream.publish(ev)
	if ev.Terminal() {
		s.terminal = true
		s.stream.close()
	}
}
