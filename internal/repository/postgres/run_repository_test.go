package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/nba-datalake/internal/domain"
)

func TestRunRowToDomain(t *testing.T) {
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	row := runRow{
		ID:          "run-1",
		Bucket:      "nba-bucket",
		ObjectKey:   "raw-data/nba_players.json",
		RecordCount: 3,
		ExecutionID: "q-1",
		OK:          true,
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
	}

	report := row.toDomain(nil)
	assert.Equal(t, "run-1", report.ID)
	assert.Equal(t, "nba-bucket", report.Bucket)
	assert.Equal(t, "raw-data/nba_players.json", report.ObjectKey)
	assert.Equal(t, 3, report.RecordCount)
	assert.Equal(t, "q-1", report.ExecutionID)
	assert.Equal(t, started.Add(2*time.Second), report.CompletedAt)
	require.NotNil(t, report.Steps)
	assert.Empty(t, report.Steps)
}

func TestStepRowToDomain(t *testing.T) {
	finished := time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC)
	step := stepRow{
		RunID:      "run-1",
		Step:       "upload",
		Status:     "failed",
		Message:    "AccessDenied: denied",
		DurationMS: 1500,
		FinishedAt: finished,
	}.toDomain()

	assert.Equal(t, domain.StepUpload, step.Step)
	assert.Equal(t, domain.StatusFailed, step.Status)
	assert.True(t, step.Failed())
	assert.Equal(t, 1500*time.Millisecond, step.Duration)
	assert.Equal(t, finished, step.FinishedAt)
	assert.Equal(t, "AccessDenied: denied", step.Message)
}

func TestRunRowToDomainKeepsStepOrder(t *testing.T) {
	steps := []domain.StepResult{
		{Step: domain.StepProvisionBucket, Status: domain.StatusAlreadyExists},
		{Step: domain.StepFetch, Status: domain.StatusSkipped},
	}

	report := runRow{ID: "run-2"}.toDomain(steps)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, domain.StepProvisionBucket, report.Steps[0].Step)
	assert.Equal(t, domain.StepFetch, report.Steps[1].Step)
	assert.True(t, report.OK())
}

func TestStepRowToDomainParsesStatus(t *testing.T) {
	step := stepRow{Step: "create_database", Status: "Already exists"}.toDomain()
	assert.Equal(t, domain.StatusAlreadyExists, step.Status)
	assert.False(t, step.Failed())

	step = stepRow{Step: "upload", Status: "FAILED"}.toDomain()
	assert.Equal(t, domain.StatusFailed, step.Status)

	step = stepRow{Step: "upload", Status: "pending"}.toDomain()
	assert.Equal(t, domain.StepStatus("pending"), step.Status)
	assert.Equal(t, "Unknown", step.Status.Label())
}
