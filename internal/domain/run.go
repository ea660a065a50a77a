package domain

import "time"

// Step identifies a stage of the bootstrap pipeline.
type Step string

const (
	StepProvisionBucket Step = "provision_bucket"
	StepFetch           Step = "fetch"
	StepUpload          Step = "upload"
	StepCreateDatabase  Step = "create_database"
	StepCreateTable     Step = "create_table"
	StepQuery           Step = "query"
)

// StepResult records what a step did. Err is kept for callers in-process;
// Message is what gets persisted and serialized.
type StepResult struct {
	Step       Step          `json:"step" db:"step"`
	Status     StepStatus    `json:"status" db:"status"`
	Message    string        `json:"message,omitempty" db:"message"`
	Duration   time.Duration `json:"duration" db:"duration_ms"`
	FinishedAt time.Time     `json:"finished_at" db:"finished_at"`
	Err        error         `json:"-" db:"-"`
}

// Failed reports whether the step ended in failure.
func (r StepResult) Failed() bool {
	return r.Status == StatusFailed
}

// RunReport summarizes one invocation of the pipeline.
type RunReport struct {
	ID          string       `json:"id" db:"id"`
	Bucket      string       `json:"bucket" db:"bucket"`
	ObjectKey   string       `json:"object_key" db:"object_key"`
	RecordCount int          `json:"record_count" db:"record_count"`
	ExecutionID string       `json:"execution_id,omitempty" db:"execution_id"`
	StartedAt   time.Time    `json:"started_at" db:"started_at"`
	CompletedAt time.Time    `json:"completed_at" db:"completed_at"`
	Steps       []StepResult `json:"steps" db:"-"`
}

// Add appends a step result.
func (r *RunReport) Add(result StepResult) {
	r.Steps = append(r.Steps, result)
}

// Step returns the result for s, if the step ran.
func (r *RunReport) Step(s Step) (StepResult, bool) {
	for _, res := range r.Steps {
		if res.Step == s {
			return res, true
		}
	}
	return StepResult{}, false
}

// Failures returns every failed step in execution order.
func (r *RunReport) Failures() []StepResult {
	var failed []StepResult
	for _, res := range r.Steps {
		if res.Failed() {
			failed = append(failed, res)
		}
	}
	return failed
}

// OK reports whether no step failed.
func (r *RunReport) OK() bool {
	return len(r.Failures()) == 0
}
