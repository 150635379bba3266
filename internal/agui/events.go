// Package agui implements the event protocol spoken to chat widgets. A run is
// a strictly ordered event sequence; clients render state transitions from it
// without inspecting transport details.
package agui

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventRunStarted         EventType = "RUN_STARTED"
	EventRunFinished        EventType = "RUN_FINISHED"
	EventRunError           EventType = "RUN_ERROR"
	EventStepStarted        EventType = "STEP_STARTED"
	EventStepFinished       EventType = "STEP_FINISHED"
	EventTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTextMessageEnd     EventType = "TEXT_MESSAGE_END"
)

// Event is one frame of a run. Only the fields relevant to the event type are
// populated; the rest are omitted from the wire encoding.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"`
	RunID     string          `json:"runId,omitempty"`
	ThreadID  string          `json:"threadId,omitempty"`
	StepName  string          `json:"stepName,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	Role      string          `json:"role,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	Message   string          `json:"message,omitempty"`
	Code      string          `json:"code,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// Emitter delivers events to the client. An Emit error means the client is
// gone; the producer should stop emitting but may keep working.
type Emitter interface {
	Emit(event Event) error
}

// Sequence stamps and emits the events of one run. Timestamps are unix
// milliseconds and never decrease within a run, even if the wall clock steps
// backwards.
type Sequence struct {
	emitter  Emitter
	runID    string
	threadID string
	last     int64
	now      func() time.Time
}

func NewSequence(emitter Emitter, runID, threadID string) *Sequence {
	return &Sequence{
		emitter:  emitter,
		runID:    runID,
		threadID: threadID,
		now:      time.Now,
	}
}

func (s *Sequence) stamp() int64 {
	ms := s.now().UnixMilli()
	if ms < s.last {
		ms = s.last
	}
	s.last = ms
	return ms
}

func (s *Sequence) emit(e Event) error {
	e.Timestamp = s.stamp()
	return s.emitter.Emit(e)
}

func (s *Sequence) RunStarted() error {
	return s.emit(Event{Type: EventRunStarted, RunID: s.runID, ThreadID: s.threadID})
}

func (s *Sequence) StepStarted(name string) error {
	return s.emit(Event{Type: EventStepStarted, StepName: name})
}

func (s *Sequence) StepFinished(name string) error {
	return s.emit(Event{Type: EventStepFinished, StepName: name})
}

func (s *Sequence) TextMessageStart(messageID string) error {
	return s.emit(Event{Type: EventTextMessageStart, MessageID: messageID, Role: "assistant"})
}

func (s *Sequence) TextMessageContent(messageID, delta string) error {
	if delta == "" {
		return nil
	}
	return s.emit(Event{Type: EventTextMessageContent, MessageID: messageID, Delta: delta})
}

func (s *Sequence) TextMessageEnd(messageID string) error {
	return s.emit(Event{Type: EventTextMessageEnd, MessageID: messageID})
}

// RunFinished closes the run successfully. result carries run-level output
// such as citations and confidence; nil omits it.
func (s *Sequence) RunFinished(result any) error {
	e := Event{Type: EventRunFinished, RunID: s.runID, ThreadID: s.threadID}
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return err
		}
		e.Result = raw
	}
	return s.emit(e)
}

// RunError terminally fails the run. It replaces RunFinished; a sequence
// never emits both.
func (s *Sequence) RunError(code, message string) error {
	return s.emit(Event{Type: EventRunError, RunID: s.runID, Code: code, Message: message})
}
