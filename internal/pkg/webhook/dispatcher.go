package webhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/app/repository"
	"github.com/revflowhq/revflow/internal/pkg/signature"
)

// Dispatcher creates delivery rows for an event: one per active endpoint
// subscribed to the event type. It performs no network I/O; sending belongs
// to the Worker. The payload is signed here, once, so retries never re-sign.
type Dispatcher struct {
	endpoints  repository.WebhookEndpointRepository
	deliveries repository.WebhookDeliveryRepository
}

// NewDispatcher creates a dispatcher over the given repositories.
func NewDispatcher(endpoints repository.WebhookEndpointRepository, deliveries repository.WebhookDeliveryRepository) *Dispatcher {
	return &Dispatcher{endpoints: endpoints, deliveries: deliveries}
}

// Dispatch resolves the customer's subscribed endpoints and creates one
// pending WebhookDelivery per endpoint. Each delivery gets a fresh UUID
// request id, stored once and stable across all retries: that is the
// idempotency key receivers de-duplicate on.
func (d *Dispatcher) Dispatch(ctx context.Context, customerID uint, eventType string, payload map[string]any) ([]models.WebhookDelivery, error) {
	_ = ctx

	endpoints, err := d.endpoints.ListActiveSubscribed(customerID, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve webhook endpoints: %w", err)
	}
	if len(endpoints) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize webhook payload: %w", err)
	}

	created := make([]models.WebhookDelivery, 0, len(endpoints))
	for _, endpoint := range endpoints {
		delivery := models.WebhookDelivery{
			EndpointID:  endpoint.ID,
			CustomerID:  customerID,
			EventType:   eventType,
			PayloadJSON: string(body),
			Signature:   signature.Sign(body, endpoint.Secret),
			Status:      models.DeliveryStatusPending,
			MaxAttempts: models.DefaultMaxDeliveryAttempts,
			RequestID:   uuid.New().String(),
		}
		if err := d.deliveries.Create(&delivery); err != nil {
			log.Errorf("[WebhookDispatcher] customer %d: failed to create delivery for endpoint %d: %v", customerID, endpoint.ID, err)
			continue
		}
		created = append(created, delivery)
	}

	log.Infof("[WebhookDispatcher] customer %d: created %d deliveries for event %s", customerID, len(created), eventType)
	return created, nil
}
