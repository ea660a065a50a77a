package domain

import "strings"

// StepStatus is the outcome of a single pipeline step.
type StepStatus string

const (
	StatusSucceeded     StepStatus = "succeeded"
	StatusAlreadyExists StepStatus = "already_exists"
	StatusSkipped       StepStatus = "skipped"
	StatusFailed        StepStatus = "failed"
)

var stepStatusLabels = map[StepStatus]string{
	StatusSucceeded:     "Succeeded",
	StatusAlreadyExists: "Already exists",
	StatusSkipped:       "Skipped",
	StatusFailed:        "Failed",
}

// Label returns a human-readable label for the status.
func (s StepStatus) Label() string {
	if label, ok := stepStatusLabels[s]; ok {
		return label
	}

	return "Unknown"
}

// OK reports whether the step left the resource in the desired state.
func (s StepStatus) OK() bool {
	return s == StatusSucceeded || s == StatusAlreadyExists
}

// ParseStepStatus returns the status for a given label or value (case-insensitive).
func ParseStepStatus(label string) (StepStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for status, l := range stepStatusLabels {
		if normalized == string(status) || normalized == strings.ToLower(l) {
			return status, true
		}
	}

	return "", false
}
