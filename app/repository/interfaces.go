package repository

import (
	"time"

	"github.com/revflowhq/revflow/app/models"
	"gorm.io/gorm"
)

// CustomerRepository defines the interface for customer-related database operations
type CustomerRepository interface {
	Create(customer *models.Customer) error
	GetByID(id uint) (*models.Customer, error)
	GetByAPIKeyHash(hash string) (*models.Customer, error)
	Update(customer *models.Customer) error
	List(offset, limit int) ([]models.Customer, error)
	Count() (int64, error)
}

// EventRepository defines the interface for event persistence. Events are
// immutable, so there is intentionally no Update or Delete.
type EventRepository interface {
	Create(event *models.Event) error
	GetByID(id uint) (*models.Event, error)
	GetByUUID(uuid string) (*models.Event, error)
	ListByCustomer(customerID uint, offset, limit int) ([]models.Event, error)
	CountByCustomer(customerID uint) (int64, error)
}

// RuleRepository defines read access to automation rules. Rules are owned by
// the settings UI; the core only loads them for evaluation.
type RuleRepository interface {
	GetByID(id uint) (*models.AutomationRule, error)
	// ListEnabledByCustomer returns enabled rules ordered by priority
	// descending, ties broken by id ascending.
	ListEnabledByCustomer(customerID uint) ([]models.AutomationRule, error)
	Create(rule *models.AutomationRule) error
	Update(rule *models.AutomationRule) error
}

// ProfileRepository defines access to per-customer automation profiles.
type ProfileRepository interface {
	GetByCustomer(customerID uint) (*models.AutomationProfile, error)
	Save(profile *models.AutomationProfile) error
}

// ExecutionLogRepository is append-only by contract: audit rows can be
// created and read, never updated or deleted.
type ExecutionLogRepository interface {
	Create(entry *models.ExecutionLog) error
	ListByCustomer(customerID uint, offset, limit int) ([]models.ExecutionLog, error)
	CountByCustomer(customerID uint) (int64, error)
	// ListExecutedBefore pages audit rows older than the cutoff for export.
	ListExecutedBefore(cutoff time.Time, afterID uint, limit int) ([]models.ExecutionLog, error)
}

// ReviewRepository stores tier-2 queued-for-review items.
type ReviewRepository interface {
	Create(item *models.ReviewItem) error
	ListPendingByCustomer(customerID uint, offset, limit int) ([]models.ReviewItem, error)
	CountPendingByCustomer(customerID uint) (int64, error)
}

// EscalationRepository is the alert/escalation sink. Submission is
// fire-and-forget from the core's point of view.
type EscalationRepository interface {
	Create(escalation *models.Escalation) error
	ListUnacknowledgedByCustomer(customerID uint, offset, limit int) ([]models.Escalation, error)
}

// WebhookEndpointRepository defines access to customer webhook endpoints.
type WebhookEndpointRepository interface {
	Create(endpoint *models.WebhookEndpoint) error
	GetByID(id uint) (*models.WebhookEndpoint, error)
	// ListActiveSubscribed returns the customer's active endpoints whose
	// subscriptions include the given event type.
	ListActiveSubscribed(customerID uint, eventType string) ([]models.WebhookEndpoint, error)
	Update(endpoint *models.WebhookEndpoint) error
}

// WebhookDeliveryRepository owns the delivery lifecycle rows. Claim is the
// atomic conditional update that guarantees per-delivery exclusivity.
type WebhookDeliveryRepository interface {
	Create(delivery *models.WebhookDelivery) error
	GetByID(id uint) (*models.WebhookDelivery, error)
	GetByRequestID(requestID string) (*models.WebhookDelivery, error)
	// ListDue returns deliveries a worker should attempt now: pending, or
	// retrying with next_attempt_at <= now, oldest due first.
	ListDue(now time.Time, limit int) ([]models.WebhookDelivery, error)
	// Claim transitions the row from pending/retrying to sending. It returns
	// false when another worker already claimed or advanced the row, or when
	// the row is scheduled after now.
	Claim(id uint, now time.Time) (bool, error)
	Update(delivery *models.WebhookDelivery) error
	// ReleaseStuckSending returns rows claimed longer than maxAge ago to the
	// retrying state so a crashed worker cannot strand them.
	ReleaseStuckSending(maxAge time.Duration, now time.Time) (int64, error)
	CountByStatus(status models.DeliveryStatus) (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Customer        CustomerRepository
	Event           EventRepository
	Rule            RuleRepository
	Profile         ProfileRepository
	ExecutionLog    ExecutionLogRepository
	Review          ReviewRepository
	Escalation      EscalationRepository
	WebhookEndpoint WebhookEndpointRepository
	WebhookDelivery WebhookDeliveryRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Customer:        NewCustomerRepository(db),
		Event:           NewEventRepository(db),
		Rule:            NewRuleRepository(db),
		Profile:         NewProfileRepository(db),
		ExecutionLog:    NewExecutionLogRepository(db),
		Review:          NewReviewRepository(db),
		Escalation:      NewEscalationRepository(db),
		WebhookEndpoint: NewWebhookEndpointRepository(db),
		WebhookDelivery: NewWebhookDeliveryRepository(db),
	}
}
