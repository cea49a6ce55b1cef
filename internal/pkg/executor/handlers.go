package executor

import (
	"context"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/internal/pkg/rules"
)

// Action types with built-in handlers. Customer rules reference these by
// name in action_type.
const (
	ActionTypeNotifyWebhook  = "notify_webhook"
	ActionTypeResubmitClaim  = "resubmit_claim"
	ActionTypeAdjustClaim    = "adjust_claim"
	ActionTypeRenewAuth      = "renew_authorization"
	ActionTypeFlagForBilling = "flag_for_billing"
)

// WebhookDispatcher is the slice of the dispatcher the notify handler needs.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, customerID uint, eventType string, payload map[string]any) ([]models.WebhookDelivery, error)
}

// NewStubHandler returns a handler for action types whose real side effect
// lives in a downstream system not yet connected. The action is audited as
// executed with a stub marker so rule accuracy can be measured end to end.
func NewStubHandler(actionType string) Handler {
	return func(ctx context.Context, action rules.Action) (map[string]any, error) {
		return map[string]any{
			"stub":        true,
			"action_type": actionType,
			"params":      action.ActionParams,
		}, nil
	}
}

// NewWebhookNotifyHandler returns the handler for notify_webhook actions:
// it fans the trigger event out to the customer's subscribed endpoints. The
// actual HTTP sends happen later in the delivery worker.
func NewWebhookNotifyHandler(dispatcher WebhookDispatcher) Handler {
	return func(ctx context.Context, action rules.Action) (map[string]any, error) {
		deliveries, err := dispatcher.Dispatch(ctx, action.Event.CustomerID, action.Event.EventType, action.Event.Payload())
		if err != nil {
			return nil, err
		}
		requestIDs := make([]string, 0, len(deliveries))
		for _, d := range deliveries {
			requestIDs = append(requestIDs, d.RequestID)
		}
		return map[string]any{
			"deliveries_created": len(deliveries),
			"request_ids":        requestIDs,
		}, nil
	}
}
