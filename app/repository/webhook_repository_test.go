package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/revflowhq/revflow/app/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: gives each connection its own database; keep the pool at one.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.WebhookEndpoint{}, &models.WebhookDelivery{}))
	return db
}

func seedEndpointAndDelivery(t *testing.T, db *gorm.DB) (*models.WebhookEndpoint, *models.WebhookDelivery) {
	t.Helper()
	endpoints := NewWebhookEndpointRepository(db)
	deliveries := NewWebhookDeliveryRepository(db)

	endpoint := &models.WebhookEndpoint{
		CustomerID: 1,
		URL:        "https://hooks.example.com/rcm",
		Secret:     "endpoint-secret",
		Active:     true,
	}
	require.NoError(t, endpoint.SetSubscribedEventTypes([]string{models.EventTypeClaimDenied}))
	require.NoError(t, endpoints.Create(endpoint))

	delivery := &models.WebhookDelivery{
		EndpointID:  endpoint.ID,
		CustomerID:  1,
		EventType:   models.EventTypeClaimDenied,
		PayloadJSON: `{"claim_id":"CLM-1"}`,
		Signature:   "00",
		Status:      models.DeliveryStatusPending,
		MaxAttempts: models.DefaultMaxDeliveryAttempts,
		RequestID:   "11111111-2222-3333-4444-555555555555",
	}
	require.NoError(t, deliveries.Create(delivery))
	return endpoint, delivery
}

// The worker sends to delivery.Endpoint.URL, so due rows must come back with
// the endpoint association populated; otherwise every attempt fails before
// any HTTP send happens.
func TestDeliveryQueriesLoadEndpoint(t *testing.T) {
	db := newTestDB(t)
	endpoint, delivery := seedEndpointAndDelivery(t, db)
	deliveries := NewWebhookDeliveryRepository(db)

	due, err := deliveries.ListDue(time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, endpoint.ID, due[0].Endpoint.ID)
	assert.Equal(t, endpoint.URL, due[0].Endpoint.URL)

	got, err := deliveries.GetByID(delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, endpoint.ID, got.Endpoint.ID)
	assert.Equal(t, endpoint.URL, got.Endpoint.URL)
}

func TestClaimLifecycle(t *testing.T) {
	db := newTestDB(t)
	_, delivery := seedEndpointAndDelivery(t, db)
	deliveries := NewWebhookDeliveryRepository(db)

	now := time.Now()
	claimed, err := deliveries.Claim(delivery.ID, now)
	require.NoError(t, err)
	assert.True(t, claimed, "pending delivery must be claimable")

	claimed, err = deliveries.Claim(delivery.ID, now)
	require.NoError(t, err)
	assert.False(t, claimed, "a sending delivery must not be claimable again")
}

func TestClaimRejectsNotYetDueRetry(t *testing.T) {
	db := newTestDB(t)
	_, delivery := seedEndpointAndDelivery(t, db)
	deliveries := NewWebhookDeliveryRepository(db)

	// Another worker just failed an attempt and rescheduled the row into the
	// future. A claim from a stale batch must lose.
	future := time.Now().Add(time.Minute)
	delivery.Status = models.DeliveryStatusRetrying
	delivery.NextAttemptAt = &future
	require.NoError(t, deliveries.Update(delivery))

	claimed, err := deliveries.Claim(delivery.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, claimed, "a retry scheduled in the future must not be claimable")

	claimed, err = deliveries.Claim(delivery.ID, future.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, claimed, "the same retry must be claimable once due")
}

func TestReleaseStuckSendingReschedules(t *testing.T) {
	db := newTestDB(t)
	_, delivery := seedEndpointAndDelivery(t, db)
	deliveries := NewWebhookDeliveryRepository(db)

	claimedAt := time.Now().Add(-time.Hour)
	claimed, err := deliveries.Claim(delivery.ID, claimedAt)
	require.NoError(t, err)
	require.True(t, claimed)

	now := time.Now()
	released, err := deliveries.ReleaseStuckSending(10*time.Minute, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	got, err := deliveries.GetByID(delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusRetrying, got.Status)
	require.NotNil(t, got.NextAttemptAt)
	assert.False(t, got.NextAttemptAt.After(now), "released delivery must be immediately due")
}
