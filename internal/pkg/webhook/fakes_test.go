package webhook

import (
	"fmt"
	"sync"
	"time"

	"github.com/revflowhq/revflow/app/models"
)

// memEndpointRepo is an in-memory WebhookEndpointRepository for tests.
type memEndpointRepo struct {
	mu        sync.Mutex
	endpoints []models.WebhookEndpoint
	nextID    uint
}

func (r *memEndpointRepo) Create(endpoint *models.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	endpoint.ID = r.nextID
	r.endpoints = append(r.endpoints, *endpoint)
	return nil
}

func (r *memEndpointRepo) GetByID(id uint) (*models.WebhookEndpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.endpoints {
		if r.endpoints[i].ID == id {
			e := r.endpoints[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("endpoint %d not found", id)
}

func (r *memEndpointRepo) ListActiveSubscribed(customerID uint, eventType string) ([]models.WebhookEndpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WebhookEndpoint
	for i := range r.endpoints {
		e := r.endpoints[i]
		if e.CustomerID == customerID && e.Active && e.SubscribedTo(eventType) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memEndpointRepo) Update(endpoint *models.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.endpoints {
		if r.endpoints[i].ID == endpoint.ID {
			r.endpoints[i] = *endpoint
			return nil
		}
	}
	return fmt.Errorf("endpoint %d not found", endpoint.ID)
}

// memDeliveryRepo is an in-memory WebhookDeliveryRepository. The mutex makes
// Claim an atomic check-and-set, mirroring the conditional UPDATE the real
// repository issues.
type memDeliveryRepo struct {
	mu         sync.Mutex
	deliveries []models.WebhookDelivery
	endpoints  *memEndpointRepo
	nextID     uint
}

func newMemDeliveryRepo(endpoints *memEndpointRepo) *memDeliveryRepo {
	return &memDeliveryRepo{endpoints: endpoints}
}

func (r *memDeliveryRepo) Create(delivery *models.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	delivery.ID = r.nextID
	delivery.CreatedAt = time.Now()
	r.deliveries = append(r.deliveries, *delivery)
	return nil
}

func (r *memDeliveryRepo) GetByID(id uint) (*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.deliveries {
		if r.deliveries[i].ID == id {
			d := r.deliveries[i]
			r.preload(&d)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("delivery %d not found", id)
}

func (r *memDeliveryRepo) GetByRequestID(requestID string) (*models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.deliveries {
		if r.deliveries[i].RequestID == requestID {
			d := r.deliveries[i]
			r.preload(&d)
			return &d, nil
		}
	}
	return nil, fmt.Errorf("delivery %s not found", requestID)
}

func (r *memDeliveryRepo) ListDue(now time.Time, limit int) ([]models.WebhookDelivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WebhookDelivery
	for i := range r.deliveries {
		if len(out) >= limit {
			break
		}
		d := r.deliveries[i]
		if d.IsDue(now) {
			r.preload(&d)
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memDeliveryRepo) Claim(id uint, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.deliveries {
		if r.deliveries[i].ID != id {
			continue
		}
		// Same predicate as the real conditional UPDATE: the row must be
		// claimable and due, so a stale batch cannot attempt a freshly
		// rescheduled delivery early.
		if !r.deliveries[i].IsDue(now) {
			return false, nil
		}
		r.deliveries[i].Status = models.DeliveryStatusSending
		claimed := now
		r.deliveries[i].ClaimedAt = &claimed
		return true, nil
	}
	return false, nil
}

func (r *memDeliveryRepo) Update(delivery *models.WebhookDelivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.deliveries {
		if r.deliveries[i].ID == delivery.ID {
			d := *delivery
			d.Endpoint = models.WebhookEndpoint{}
			r.deliveries[i] = d
			return nil
		}
	}
	return fmt.Errorf("delivery %d not found", delivery.ID)
}

func (r *memDeliveryRepo) ReleaseStuckSending(maxAge time.Duration, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var released int64
	for i := range r.deliveries {
		d := &r.deliveries[i]
		if d.Status != models.DeliveryStatusSending || d.ClaimedAt == nil {
			continue
		}
		if now.Sub(*d.ClaimedAt) < maxAge {
			continue
		}
		d.Status = models.DeliveryStatusRetrying
		next := now
		d.NextAttemptAt = &next
		d.ClaimedAt = nil
		released++
	}
	return released, nil
}

func (r *memDeliveryRepo) CountByStatus(status models.DeliveryStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.deliveries {
		if r.deliveries[i].Status == status {
			n++
		}
	}
	return n, nil
}

func (r *memDeliveryRepo) preload(d *models.WebhookDelivery) {
	if r.endpoints == nil {
		return
	}
	if e, err := r.endpoints.GetByID(d.EndpointID); err == nil {
		d.Endpoint = *e
	}
}
