package browser

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Step statuses
const (
	StepOK      = "ok"
	StepSkipped = "skipped"
	StepFailed  = "failed"
)

// RecordedStep represents one executed automation step
type RecordedStep struct {
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Detail    string        `json:"detail,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Recorder records the outcome of automation steps in order
type Recorder struct {
	mu    sync.Mutex
	steps []RecordedStep
}

func NewRecorder() *Recorder {
	return &Recorder{
		steps: make([]RecordedStep, 0),
	}
}

func (r *Recorder) Record(name, status, detail string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, RecordedStep{
		Name:      name,
		Status:    status,
		Detail:    detail,
		Duration:  d,
		Timestamp: time.Now(),
	})
}

// Steps returns a copy of the recorded steps
func (r *Recorder) Steps() []RecordedStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedStep, len(r.steps))
	copy(out, r.steps)
	return out
}

// Trace is the on-disk form of a recorded run
type Trace struct {
	Name  string         `json:"name"`
	Error string         `json:"error,omitempty"`
	Steps []RecordedStep `json:"steps"`
}

// SaveToFile saves the recorded steps to a JSON file
func (r *Recorder) SaveToFile(filename, name string, runErr error) error {
	trace := Trace{Name: name, Steps: r.Steps()}
	if runErr != nil {
		trace.Error = runErr.Error()
	}
	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
