package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/app/repository"
	"github.com/revflowhq/revflow/internal/pkg/taskqueue"
)

// ResourceTypeClaimEvent is the discriminator inbound payloads must carry.
const ResourceTypeClaimEvent = "ClaimEvent"

// ClaimEventSubmission is the wire shape of an inbound EHR event.
type ClaimEventSubmission struct {
	ResourceType string         `json:"resourceType" validate:"required"`
	EventType    string         `json:"event_type" validate:"required"`
	OccurredAt   *time.Time     `json:"occurred_at,omitempty"`
	Payload      map[string]any `json:"payload" validate:"required"`
}

// ValidationError classifies a structurally invalid submission. Handlers map
// it to a 400; everything else is a server-side failure.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "invalid event submission: " + strings.Join(e.Reasons, "; ")
}

func newValidationError(reasons ...string) *ValidationError {
	return &ValidationError{Reasons: reasons}
}

// Enqueuer is the slice of the task queue the receiver needs.
type Enqueuer interface {
	EnqueueJob(jobType taskqueue.JobType, payload map[string]interface{}) (*taskqueue.Job, error)
}

// Receiver validates inbound event submissions, persists them as immutable
// events and enqueues asynchronous evaluation. It never evaluates rules
// inline; the HTTP response must not wait on the rules engine.
type Receiver struct {
	events   repository.EventRepository
	queue    Enqueuer
	validate *validator.Validate
}

// NewReceiver creates a receiver over the event repository and task queue.
func NewReceiver(events repository.EventRepository, queue Enqueuer) *Receiver {
	return &Receiver{
		events:   events,
		queue:    queue,
		validate: validator.New(),
	}
}

// Receive parses and validates one raw submission for the resolved customer,
// persists the event and enqueues an evaluate_event job. A *ValidationError
// return means the submission itself was bad; any other error is internal.
func (r *Receiver) Receive(ctx context.Context, customer *models.Customer, raw []byte) (*models.Event, *taskqueue.Job, error) {
	_ = ctx

	var submission ClaimEventSubmission
	if err := json.Unmarshal(raw, &submission); err != nil {
		return nil, nil, newValidationError(fmt.Sprintf("malformed JSON: %v", err))
	}

	if err := r.validate.Struct(&submission); err != nil {
		var reasons []string
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				reasons = append(reasons, fmt.Sprintf("field %s failed %s validation", fe.Field(), fe.Tag()))
			}
		} else {
			reasons = append(reasons, err.Error())
		}
		return nil, nil, &ValidationError{Reasons: reasons}
	}

	if submission.ResourceType != ResourceTypeClaimEvent {
		return nil, nil, newValidationError(fmt.Sprintf("unsupported resourceType %q", submission.ResourceType))
	}
	if !models.IsKnownEventType(submission.EventType) {
		return nil, nil, newValidationError(fmt.Sprintf("unknown event_type %q", submission.EventType))
	}

	occurredAt := time.Now()
	if submission.OccurredAt != nil {
		occurredAt = *submission.OccurredAt
	}

	event := &models.Event{
		UUID:       uuid.New().String(),
		CustomerID: customer.ID,
		EventType:  submission.EventType,
		Source:     models.EventSourceInboundWebhook,
		OccurredAt: occurredAt,
	}
	if err := event.SetPayload(submission.Payload); err != nil {
		return nil, nil, newValidationError(fmt.Sprintf("unserializable payload: %v", err))
	}

	if err := r.events.Create(event); err != nil {
		return nil, nil, fmt.Errorf("failed to persist inbound event: %w", err)
	}

	jobPayload := taskqueue.EvaluateEventJobPayload{
		EventID:    event.ID,
		EventUUID:  event.UUID,
		CustomerID: customer.ID,
	}
	job, err := r.queue.EnqueueJob(taskqueue.JobTypeEvaluateEvent, jobPayload.ToMap())
	if err != nil {
		// The event row exists; evaluation is lost until re-submission.
		return nil, nil, fmt.Errorf("failed to enqueue evaluation for event %s: %w", event.UUID, err)
	}

	log.Infof("[Inbound] Accepted event %s (type=%s, customer=%d, job=%s)",
		event.UUID, event.EventType, customer.ID, job.ID)
	return event, job, nil
}
