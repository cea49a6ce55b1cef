package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/internal/pkg/signature"
)

// immediateBackoff keeps scheduled retries due on the very next cycle so
// tests can drive the full retry sequence with consecutive RunOnce calls.
func immediateBackoff() BackoffPolicy {
	return BackoffPolicy{Base: time.Nanosecond, Max: time.Nanosecond}
}

func newTestWorker(deliveries *memDeliveryRepo, backoff BackoffPolicy) *Worker {
	return NewWorker(deliveries, WorkerConfig{
		RequestTimeout: 2 * time.Second,
		Backoff:        backoff,
	})
}

func seedDelivery(t *testing.T, endpoints *memEndpointRepo, deliveries *memDeliveryRepo, url string) *models.WebhookDelivery {
	t.Helper()
	endpoint := &models.WebhookEndpoint{
		CustomerID: 1,
		URL:        url,
		Secret:     "endpoint-secret",
		Active:     true,
	}
	require.NoError(t, endpoint.SetSubscribedEventTypes([]string{models.EventTypeClaimDenied}))
	require.NoError(t, endpoints.Create(endpoint))

	d := NewDispatcher(endpoints, deliveries)
	created, err := d.Dispatch(context.Background(), 1, models.EventTypeClaimDenied, map[string]any{"claim_id": "CLM-9"})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return &created[0]
}

func TestWorkerDeliversAndSetsHeaders(t *testing.T) {
	var (
		mu       sync.Mutex
		received *http.Request
		body     []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		received = r.Clone(context.Background())
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)
	seeded := seedDelivery(t, endpoints, deliveries, server.URL)

	w := newTestWorker(deliveries, DefaultBackoff())
	attempted := w.RunOnce(context.Background())
	assert.Equal(t, 1, attempted)

	stored, err := deliveries.GetByRequestID(seeded.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, stored.Status)
	assert.Equal(t, 0, stored.AttemptCount)
	require.NotNil(t, stored.LastHTTPStatus)
	assert.Equal(t, http.StatusOK, *stored.LastHTTPStatus)
	require.NotNil(t, stored.DeliveredAt)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	assert.Equal(t, "application/json", received.Header.Get("Content-Type"))
	assert.Equal(t, seeded.RequestID, received.Header.Get(HeaderRequestID))
	assert.Equal(t, models.EventTypeClaimDenied, received.Header.Get(HeaderEventType))
	assert.True(t, signature.Verify(body, "endpoint-secret", received.Header.Get(HeaderSignature)))
}

func TestWorkerRetriesUntilTerminalFailure(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)
	seeded := seedDelivery(t, endpoints, deliveries, server.URL)

	w := newTestWorker(deliveries, immediateBackoff())

	// Drive more cycles than the attempt budget: the delivery must stop being
	// picked up once it turns terminal.
	for i := 0; i < models.DefaultMaxDeliveryAttempts+3; i++ {
		w.RunOnce(context.Background())
	}

	stored, err := deliveries.GetByRequestID(seeded.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusFailed, stored.Status)
	assert.Equal(t, models.DefaultMaxDeliveryAttempts, stored.AttemptCount)
	assert.Equal(t, int32(models.DefaultMaxDeliveryAttempts), requests.Load())
	assert.Nil(t, stored.NextAttemptAt)
	require.NotNil(t, stored.LastHTTPStatus)
	assert.Equal(t, http.StatusInternalServerError, *stored.LastHTTPStatus)
	assert.Contains(t, stored.LastError, "HTTP 500")
}

func TestWorkerRequestIDStableAcrossRetries(t *testing.T) {
	var (
		mu         sync.Mutex
		requestIDs []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requestIDs = append(requestIDs, r.Header.Get(HeaderRequestID))
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)
	seeded := seedDelivery(t, endpoints, deliveries, server.URL)

	w := newTestWorker(deliveries, immediateBackoff())
	for i := 0; i < 3; i++ {
		w.RunOnce(context.Background())
	}

	stored, err := deliveries.GetByRequestID(seeded.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.AttemptCount)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requestIDs, 3)
	for _, id := range requestIDs {
		assert.Equal(t, seeded.RequestID, id, "receiver must see the same idempotency key on every attempt")
	}
}

func TestWorkerNetworkErrorCountsAsAttempt(t *testing.T) {
	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)
	// Nothing listens here, so the send fails at connect time.
	seeded := seedDelivery(t, endpoints, deliveries, "http://127.0.0.1:1")

	w := newTestWorker(deliveries, DefaultBackoff())
	w.RunOnce(context.Background())

	stored, err := deliveries.GetByRequestID(seeded.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Nil(t, stored.LastHTTPStatus)
	assert.NotEmpty(t, stored.LastError)
	require.NotNil(t, stored.NextAttemptAt)
	assert.True(t, stored.NextAttemptAt.After(time.Now()), "retry must be scheduled in the future")
}

func TestWorkerRetryingNotDueIsSkipped(t *testing.T) {
	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)
	seeded := seedDelivery(t, endpoints, deliveries, "http://127.0.0.1:1")

	w := newTestWorker(deliveries, DefaultBackoff())
	w.RunOnce(context.Background())

	// The first failure scheduled a retry at least 30s out, so an immediate
	// second cycle must not attempt it again.
	attempted := w.RunOnce(context.Background())
	assert.Equal(t, 0, attempted)

	stored, err := deliveries.GetByRequestID(seeded.RequestID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.AttemptCount)
}

func TestWorkerReleasesStuckSending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)
	seeded := seedDelivery(t, endpoints, deliveries, server.URL)

	// Simulate a worker that claimed the row and crashed long ago.
	claimedAt := time.Now().Add(-time.Hour)
	ok, err := deliveries.Claim(seeded.ID, claimedAt)
	require.NoError(t, err)
	require.True(t, ok)

	w := newTestWorker(deliveries, DefaultBackoff())
	w.RunOnce(context.Background())

	stored, err := deliveries.GetByRequestID(seeded.RequestID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, stored.Status, "released delivery must be re-attempted in the same cycle")
}

func TestClaimIsExclusive(t *testing.T) {
	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)
	seeded := seedDelivery(t, endpoints, deliveries, "http://127.0.0.1:1")

	const racers = 16
	results := make(chan bool, racers)
	var start sync.WaitGroup
	start.Add(1)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start.Wait()
			ok, err := deliveries.Claim(seeded.ID, time.Now())
			assert.NoError(t, err)
			results <- ok
		}()
	}
	start.Done()
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one claimer may win")
}

func TestWorkerStartStop(t *testing.T) {
	endpoints := &memEndpointRepo{}
	deliveries := newMemDeliveryRepo(endpoints)

	w := NewWorker(deliveries, WorkerConfig{PollInterval: 10 * time.Millisecond})
	w.Start()
	w.Start() // second Start is a no-op
	time.Sleep(30 * time.Millisecond)
	w.Stop()
	w.Stop() // second Stop is a no-op
}
