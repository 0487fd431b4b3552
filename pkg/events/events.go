package events

import (
	"context"
	"time"

	"github.com/goccy/go-json"
)

// Event is one pipeline run lifecycle record.
// Keep payloads small and JSON-friendly; they are replayed into RunState.
type Event interface {
	Type() string
	RunID() string
	Timestamp() time.Time
	MarshalData() ([]byte, error)
}

// Base contains common event metadata.
type Base struct {
	Ts  time.Time `json:"ts"`
	RID string    `json:"run_id"`
}

func NewBase(runID string) Base { return Base{Ts: time.Now(), RID: runID} }

func (b Base) Timestamp() time.Time { return b.Ts }
func (b Base) RunID() string        { return b.RID }

const (
	TypeRunStarted     = "run.started"
	TypeStageCompleted = "run.stage.completed"
	TypeStageFailed    = "run.stage.failed"
	TypeRunCompleted   = "run.completed"
)

type RunStarted struct {
	Base
	Destination string   `json:"destination"`
	Stages      []string `json:"stages"`
}

func (e RunStarted) Type() string                 { return TypeRunStarted }
func (e RunStarted) MarshalData() ([]byte, error) { return json.Marshal(e) }

type StageCompleted struct {
	Base
	Stage        string        `json:"stage"`
	Attempts     int           `json:"attempts"`
	UsedFallback bool          `json:"used_fallback"`
	Elapsed      time.Duration `json:"elapsed"`
}

func (e StageCompleted) Type() string                 { return TypeStageCompleted }
func (e StageCompleted) MarshalData() ([]byte, error) { return json.Marshal(e) }

type StageFailed struct {
	Base
	Stage    string `json:"stage"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error"`
}

func (e StageFailed) Type() string                 { return TypeStageFailed }
func (e StageFailed) MarshalData() ([]byte, error) { return json.Marshal(e) }

type RunCompleted struct {
	Base
	Success         bool          `json:"success"`
	FailedAt        string        `json:"failed_at,omitempty"`
	Recommendations int           `json:"recommendations"`
	Filtered        int           `json:"filtered"`
	Duration        time.Duration `json:"duration"`
}

func (e RunCompleted) Type() string                 { return TypeRunCompleted }
func (e RunCompleted) MarshalData() ([]byte, error) { return json.Marshal(e) }

// EventStore defines persistence and replay.
// Implementations must keep append order per run.
type EventStore interface {
	Append(ctx context.Context, e Event) error
	ListByRun(ctx context.Context, runID string) ([]StoredEvent, error)
	ReplayRun(ctx context.Context, runID string) (*RunState, error)
	ListRuns(ctx context.Context, limit int) ([]RunState, error)
}

// StoredEvent is a durable representation.
type StoredEvent struct {
	Seq     int64     `json:"seq"`
	RunID   string    `json:"run_id"`
	Type    string    `json:"type"`
	Ts      time.Time `json:"ts"`
	Payload []byte    `json:"payload"` // original JSON
}

// RunState is a run summary rebuilt from its events.
type RunState struct {
	RunID           string        `json:"run_id"`
	Destination     string        `json:"destination"`
	StartedAt       time.Time     `json:"started_at"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
	Finished        bool          `json:"finished"`
	Success         bool          `json:"success"`
	FailedAt        string        `json:"failed_at,omitempty"`
	StagesCompleted []string      `json:"stages_completed"`
	Fallbacks       []string      `json:"fallbacks,omitempty"`
	Recommendations int           `json:"recommendations"`
	Filtered        int           `json:"filtered"`
	Duration        time.Duration `json:"duration"`
	LastError       string        `json:"last_error,omitempty"`
}

// Replay applies events in order and rebuilds state.
func Replay(events []StoredEvent) *RunState {
	st := &RunState{StagesCompleted: []string{}}
	for _, se := range events {
		st.RunID = se.RunID
		switch se.Type {
		case TypeRunStarted:
			var ev RunStarted
			_ = json.Unmarshal(se.Payload, &ev)
			st.Destination = ev.Destination
			st.StartedAt = se.Ts
		case TypeStageCompleted:
			var ev StageCompleted
			_ = json.Unmarshal(se.Payload, &ev)
			st.StagesCompleted = append(st.StagesCompleted, ev.Stage)
			if ev.UsedFallback {
				st.Fallbacks = append(st.Fallbacks, ev.Stage)
			}
		case TypeStageFailed:
			var ev StageFailed
			_ = json.Unmarshal(se.Payload, &ev)
			st.FailedAt = ev.Stage
			st.LastError = ev.Error
		case TypeRunCompleted:
			var ev RunCompleted
			_ = json.Unmarshal(se.Payload, &ev)
			st.Finished = true
			st.Success = ev.Success
			if ev.FailedAt != "" {
				st.FailedAt = ev.FailedAt
			}
			st.Recommendations = ev.Recommendations
			st.Filtered = ev.Filtered
			st.Duration = ev.Duration
			fin := se.Ts
			st.FinishedAt = &fin
		}
	}
	return st
}
