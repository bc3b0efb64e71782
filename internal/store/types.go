package store

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/copyleftdev/stochopt/internal/optimization"
)

// Float is a float64 whose JSON form also covers the non-finite values a run
// can report: an untouched best value is +Inf. They encode as the strings
// "+Inf", "-Inf" and "NaN".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*f = Float(math.NaN())
		case "+Inf", "Inf":
			*f = Float(math.Inf(1))
		case "-Inf":
			*f = Float(math.Inf(-1))
		default:
			return fmt.Errorf("invalid float %q", s)
		}
		return nil
	}
	return json.Unmarshal(data, (*float64)(f))
}

// Run states
const (
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCanceled  = "canceled"
)

// RunSpec is what was asked for.
type RunSpec struct {
	Algorithm string       `json:"algorithm"`
	Function  string       `json:"function"`
	Initial   []float64    `json:"initial,omitempty"`
	Bounds    [][2]float64 `json:"bounds,omitempty"`
	Seed      int64        `json:"seed"`
}

// HistoryEntry is one accepted improvement.
type HistoryEntry struct {
	Iteration int       `json:"iteration"`
	Value     Float     `json:"value"`
	X         []float64 `json:"x"`
}

// RunRecord is the stored form of a run, finished or not.
type RunRecord struct {
	ID    string  `json:"id"`
	Spec  RunSpec `json:"spec"`
	State string  `json:"state"`
	Error string  `json:"error,omitempty"`

	Success          bool           `json:"success"`
	Status           string         `json:"status,omitempty"`
	Message          string         `json:"message,omitempty"`
	Value            Float          `json:"value"`
	X                []float64      `json:"x,omitempty"`
	Evaluations      int            `json:"evaluations"`
	EvaluationErrors int            `json:"evaluation_errors"`
	SuccessfulSteps  int            `json:"successful_steps"`
	History          []HistoryEntry `json:"history,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunInfo is the summary returned by List.
type RunInfo struct {
	ID        string    `json:"id"`
	Algorithm string    `json:"algorithm"`
	Function  string    `json:"function"`
	State     string    `json:"state"`
	Success   bool      `json:"success"`
	Value     Float     `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRunRecord creates a queued record.
func NewRunRecord(id string, spec RunSpec, now time.Time) *RunRecord {
	return &RunRecord{
		ID:        id,
		Spec:      spec,
		State:     StateQueued,
		Value:     Float(math.Inf(1)),
		CreatedAt: now,
	}
}

// Complete copies a finished result into the record.
func (r *RunRecord) Complete(result *optimization.OptimizationResult, now time.Time) {
	r.State = StateCompleted
	r.Success = result.Success
	r.Status = result.Status.String()
	r.Message = result.Message
	r.Evaluations = result.Evaluations
	r.EvaluationErrors = result.EvaluationErrors
	r.SuccessfulSteps = result.SuccessfulSteps
	if result.BestSolution != nil {
		r.Value = Float(result.BestSolution.Value)
		r.X = append([]float64(nil), result.BestSolution.Parameters...)
	}
	r.History = make([]HistoryEntry, len(result.History))
	for i, eval := range result.History {
		r.History[i] = HistoryEntry{
			Iteration: eval.Iteration,
			Value:     Float(eval.Solution.Value),
			X:         eval.Solution.Parameters,
		}
	}
	r.FinishedAt = &now
}

// Fail marks the record as aborted with err. A canceled run gets StateCanceled.
func (r *RunRecord) Fail(err error, canceled bool, now time.Time) {
	r.State = StateFailed
	if canceled {
		r.State = StateCanceled
	}
	r.Error = err.Error()
	r.FinishedAt = &now
}

// Done reports whether the run has stopped.
func (r *RunRecord) Done() bool {
	switch r.State {
	case StateCompleted, StateFailed, StateCanceled:
		return true
	}
	return false
}

// Info returns the summary of the record.
func (r *RunRecord) Info() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Algorithm: r.Spec.Algorithm,
		Function:  r.Spec.Function,
		State:     r.State,
		Success:   r.Success,
		Value:     r.Value,
		CreatedAt: r.CreatedAt,
	}
}
