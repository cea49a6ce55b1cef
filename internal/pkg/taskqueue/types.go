package taskqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of background job
type JobType string

const (
	// JobTypeEvaluateEvent runs the rules engine and executor for one event.
	JobTypeEvaluateEvent JobType = "evaluate_event"
	// JobTypeDispatchWebhooks fans one event out to subscribed endpoints
	// without going through the rules engine (system notifications).
	JobTypeDispatchWebhooks JobType = "dispatch_event_webhooks"
	// JobTypeArchiveAuditLogs exports old execution logs to object storage.
	JobTypeArchiveAuditLogs JobType = "archive_audit_logs"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// EvaluateEventJobPayload identifies the event one evaluation job covers.
type EvaluateEventJobPayload struct {
	EventID    uint   `json:"event_id"`
	EventUUID  string `json:"event_uuid"`
	CustomerID uint   `json:"customer_id"`
}

// ToMap converts the payload to a map for storage
func (p EvaluateEventJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"event_id":    p.EventID,
		"event_uuid":  p.EventUUID,
		"customer_id": p.CustomerID,
	}
}

// EvaluateEventJobPayloadFromMap creates a payload from a map
func EvaluateEventJobPayloadFromMap(data map[string]interface{}) (*EvaluateEventJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload EvaluateEventJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// DispatchWebhooksJobPayload identifies the event to fan out.
type DispatchWebhooksJobPayload struct {
	EventID    uint   `json:"event_id"`
	CustomerID uint   `json:"customer_id"`
	EventType  string `json:"event_type"`
}

// ToMap converts the payload to a map for storage
func (p DispatchWebhooksJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"event_id":    p.EventID,
		"customer_id": p.CustomerID,
		"event_type":  p.EventType,
	}
}

// DispatchWebhooksJobPayloadFromMap creates a payload from a map
func DispatchWebhooksJobPayloadFromMap(data map[string]interface{}) (*DispatchWebhooksJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload DispatchWebhooksJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ArchiveAuditLogsJobPayload bounds one archive sweep.
type ArchiveAuditLogsJobPayload struct {
	RetentionDays int `json:"retention_days"`
	BatchSize     int `json:"batch_size"`
}

// ToMap converts the payload to a map for storage
func (p ArchiveAuditLogsJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"retention_days": p.RetentionDays,
		"batch_size":     p.BatchSize,
	}
}

// ArchiveAuditLogsJobPayloadFromMap creates a payload from a map
func ArchiveAuditLogsJobPayloadFromMap(data map[string]interface{}) (*ArchiveAuditLogsJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ArchiveAuditLogsJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
