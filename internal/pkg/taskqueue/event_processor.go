package taskqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/app/repository"
	"github.com/revflowhq/revflow/internal/pkg/executor"
	"github.com/revflowhq/revflow/internal/pkg/rules"
)

// NewEvaluateEventProcessor returns the processor for evaluate_event jobs:
// load the event, run it through the rules engine and hand the resulting
// actions to the executor. The executor owns the audit trail, so a job only
// fails (and retries) when the event cannot even be loaded.
func NewEvaluateEventProcessor(events repository.EventRepository, engine *rules.Engine, exec *executor.Executor) Processor {
	return func(ctx context.Context, job *Job) error {
		payload, err := EvaluateEventJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid evaluate_event payload: %w", err)
		}

		event, err := events.GetByID(payload.EventID)
		if err != nil {
			return fmt.Errorf("failed to load event %d: %w", payload.EventID, err)
		}

		actions := engine.Evaluate(ctx, event)
		if len(actions) == 0 {
			log.Debugf("[TaskQueue] Event %s matched no rules", event.UUID)
			return nil
		}

		results := exec.Execute(ctx, actions)
		log.Infof("[TaskQueue] Event %s: %d actions executed", event.UUID, len(results))
		return nil
	}
}

// EventDispatcher is the slice of the webhook dispatcher the fan-out
// processor needs.
type EventDispatcher interface {
	Dispatch(ctx context.Context, customerID uint, eventType string, payload map[string]any) ([]models.WebhookDelivery, error)
}

// NewDispatchWebhooksProcessor returns the processor for dispatch_webhooks
// jobs: fan one event out to the customer's subscribed endpoints directly,
// bypassing the rules engine. Used for system-level notifications.
func NewDispatchWebhooksProcessor(events repository.EventRepository, dispatcher EventDispatcher) Processor {
	return func(ctx context.Context, job *Job) error {
		payload, err := DispatchWebhooksJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid dispatch_webhooks payload: %w", err)
		}

		event, err := events.GetByID(payload.EventID)
		if err != nil {
			return fmt.Errorf("failed to load event %d: %w", payload.EventID, err)
		}

		deliveries, err := dispatcher.Dispatch(ctx, event.CustomerID, event.EventType, event.Payload())
		if err != nil {
			return fmt.Errorf("failed to dispatch webhooks for event %s: %w", event.UUID, err)
		}

		log.Infof("[TaskQueue] Event %s: %d deliveries created", event.UUID, len(deliveries))
		return nil
	}
}

// AuditArchiver exports execution logs older than the retention window.
type AuditArchiver interface {
	ArchiveOlderThan(ctx context.Context, retentionDays, batchSize int) (int, error)
}

// NewArchiveAuditLogsProcessor returns the processor for archive_audit_logs
// jobs.
func NewArchiveAuditLogsProcessor(archiver AuditArchiver) Processor {
	return func(ctx context.Context, job *Job) error {
		payload, err := ArchiveAuditLogsJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid archive_audit_logs payload: %w", err)
		}

		archived, err := archiver.ArchiveOlderThan(ctx, payload.RetentionDays, payload.BatchSize)
		if err != nil {
			return fmt.Errorf("audit archive sweep failed: %w", err)
		}

		log.Infof("[TaskQueue] Archived %d execution logs", archived)
		return nil
	}
}
