// Package events describes the lifecycle of an automated build run and
// delivers it to interested parties (history store, NATS subscribers, tests).
package events

import (
	"encoding/json"
	"time"
)

// Event type names, also used as NATS subject suffixes.
const (
	TypeRunStarted   = "run_started"
	TypeStepStarted  = "step_started"
	TypeStepFinished = "step_finished"
	TypeRunFinished  = "run_finished"
)

// Event is implemented by every lifecycle event.
type Event interface {
	EventType() string
	EventRunID() string
}

// RunStarted is emitted once per run before the first stage.
type RunStarted struct {
	RunID   string    `json:"run_id"`
	Trigger string    `json:"trigger"`
	At      time.Time `json:"at"`
}

// StepStarted is emitted right before a build command is started.
type StepStarted struct {
	RunID       string    `json:"run_id"`
	Index       int       `json:"index"`
	Description string    `json:"description"`
	Command     string    `json:"command"`
	At          time.Time `json:"at"`
}

// StepFinished is emitted after a build command exits.
type StepFinished struct {
	RunID       string    `json:"run_id"`
	Index       int       `json:"index"`
	Description string    `json:"description"`
	Command     string    `json:"command"`
	ExitCode    int       `json:"exit_code"`
	DurationMS  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// RunFinished is emitted once per run after cleanup.
type RunFinished struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage,omitempty"` // stage that failed, empty on success
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

func (e RunStarted) EventType() string   { return TypeRunStarted }
func (e StepStarted) EventType() string  { return TypeStepStarted }
func (e StepFinished) EventType() string { return TypeStepFinished }
func (e RunFinished) EventType() string  { return TypeRunFinished }

func (e RunStarted) EventRunID() string   { return e.RunID }
func (e StepStarted) EventRunID() string  { return e.RunID }
func (e StepFinished) EventRunID() string { return e.RunID }
func (e RunFinished) EventRunID() string  { return e.RunID }

// Envelope is the wire form of an event.
type Envelope struct {
	Type  string          `json:"type"`
	RunID string          `json:"run_id"`
	Data  json.RawMessage `json:"data"`
}

// Marshal encodes an event inside its envelope.
func Marshal(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: evt.EventType(), RunID: evt.EventRunID(), Data: data})
}
