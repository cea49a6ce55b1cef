package taskqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobTypeNames(t *testing.T) {
	tests := []struct {
		name     string
		jobType  JobType
		expected string
	}{
		{"Evaluate Event", JobTypeEvaluateEvent, "evaluate_event"},
		{"Dispatch Webhooks", JobTypeDispatchWebhooks, "dispatch_event_webhooks"},
		{"Archive Audit Logs", JobTypeArchiveAuditLogs, "archive_audit_logs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.jobType))
		})
	}
}

func TestJobLifecycleMarks(t *testing.T) {
	job := &Job{
		ID:         "test-job",
		Type:       JobTypeEvaluateEvent,
		Status:     JobStatusPending,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
	assert.False(t, job.IsRetryable())
}

func TestJobRetryExhaustion(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: DefaultMaxRetries}

	for i := 0; i < DefaultMaxRetries; i++ {
		job.MarkAsFailed("transient")
	}
	assert.True(t, job.RetryCount == DefaultMaxRetries)
	assert.False(t, job.IsRetryable(), "no retry after the budget is spent")
}

func TestEvaluateEventPayloadRoundTrip(t *testing.T) {
	payload := EvaluateEventJobPayload{
		EventID:    12,
		EventUUID:  "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		CustomerID: 3,
	}

	decoded, err := EvaluateEventJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}

func TestArchivePayloadRoundTrip(t *testing.T) {
	payload := ArchiveAuditLogsJobPayload{RetentionDays: 180, BatchSize: 500}

	decoded, err := ArchiveAuditLogsJobPayloadFromMap(payload.ToMap())
	require.NoError(t, err)
	assert.Equal(t, payload, *decoded)
}
