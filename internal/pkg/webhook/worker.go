package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/revflowhq/revflow/app/models"
	"github.com/revflowhq/revflow/app/repository"
)

// Header names on outbound deliveries.
const (
	HeaderSignature = "X-Signature"
	HeaderRequestID = "X-Request-Id"
	HeaderEventType = "X-RevFlow-Event"
)

const workerUserAgent = "RevFlow-Webhook/1.0"

// WorkerConfig tunes the delivery worker. Zero values fall back to defaults.
type WorkerConfig struct {
	PollInterval   time.Duration
	RequestTimeout time.Duration
	BatchSize      int
	// StuckClaimAge is how long a delivery may sit in the sending state
	// before it is considered orphaned by a crashed worker and released.
	StuckClaimAge time.Duration
	Backoff       BackoffPolicy
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.StuckClaimAge <= 0 {
		c.StuckClaimAge = 10 * time.Minute
	}
	if c.Backoff.Base <= 0 {
		c.Backoff = DefaultBackoff()
	}
	return c
}

// Worker drains due webhook deliveries: claim, send, record. The claim is an
// atomic conditional update, so any number of workers can poll the same
// table and each due delivery is sent exactly once per attempt. The HTTP
// send is the only blocking call and is bounded by the request timeout; a
// timeout counts as a failed attempt like any network error.
type Worker struct {
	deliveries repository.WebhookDeliveryRepository
	client     *http.Client
	config     WorkerConfig

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	now func() time.Time
}

// NewWorker creates a delivery worker over the delivery repository.
func NewWorker(deliveries repository.WebhookDeliveryRepository, config WorkerConfig) *Worker {
	config = config.withDefaults()
	return &Worker{
		deliveries: deliveries,
		client:     &http.Client{Timeout: config.RequestTimeout},
		config:     config,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
}

// Start begins the poll loop.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return
	}

	w.running = true
	w.stopCh = make(chan struct{})
	log.Infof("[DeliveryWorker] Starting (poll=%s, timeout=%s, batch=%d)",
		w.config.PollInterval, w.config.RequestTimeout, w.config.BatchSize)

	w.wg.Add(1)
	go w.run()
}

// Stop stops the poll loop and waits for the in-flight cycle to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	log.Info("[DeliveryWorker] Stopping...")
	close(w.stopCh)
	w.running = false
	w.wg.Wait()
	log.Info("[DeliveryWorker] Stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(context.Background())
		}
	}
}

// RunOnce executes one poll cycle and returns the number of attempted
// deliveries. Exposed so operators (and tests) can drive cycles directly.
func (w *Worker) RunOnce(ctx context.Context) int {
	now := w.now()

	if released, err := w.deliveries.ReleaseStuckSending(w.config.StuckClaimAge, now); err != nil {
		log.Errorf("[DeliveryWorker] failed to release stuck deliveries: %v", err)
	} else if released > 0 {
		log.Warnf("[DeliveryWorker] released %d stuck deliveries", released)
	}

	due, err := w.deliveries.ListDue(now, w.config.BatchSize)
	if err != nil {
		log.Errorf("[DeliveryWorker] failed to list due deliveries: %v", err)
		return 0
	}

	attempted := 0
	for i := range due {
		delivery := &due[i]

		claimed, err := w.deliveries.Claim(delivery.ID, w.now())
		if err != nil {
			log.Errorf("[DeliveryWorker] failed to claim delivery %d: %v", delivery.ID, err)
			continue
		}
		if !claimed {
			// Another worker won the row; it will perform this attempt.
			continue
		}
		delivery.Status = models.DeliveryStatusSending

		w.attempt(ctx, delivery)
		attempted++
	}
	return attempted
}

// attempt performs one HTTP send for a claimed delivery and records the
// outcome. Delivery errors never propagate; they only drive the state
// machine toward retrying, delivered or failed.
func (w *Worker) attempt(ctx context.Context, delivery *models.WebhookDelivery) {
	endpoint, err := w.endpointFor(delivery)
	if err != nil {
		w.recordFailure(delivery, fmt.Sprintf("endpoint unavailable: %v", err), nil)
		return
	}

	status, err := w.send(ctx, delivery, endpoint.URL)
	if err != nil {
		w.recordFailure(delivery, err.Error(), nil)
		return
	}

	if status >= 200 && status < 300 {
		delivery.MarkDelivered(status, w.now())
		if err := w.deliveries.Update(delivery); err != nil {
			log.Errorf("[DeliveryWorker] failed to persist delivered state for %d: %v", delivery.ID, err)
		}
		log.Infof("[DeliveryWorker] delivered %s to endpoint %d (HTTP %d, attempt %d)",
			delivery.RequestID, delivery.EndpointID, status, delivery.AttemptCount+1)
		return
	}

	w.recordFailure(delivery, fmt.Sprintf("endpoint returned HTTP %d", status), &status)
}

func (w *Worker) send(ctx context.Context, delivery *models.WebhookDelivery, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader([]byte(delivery.PayloadJSON)))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", workerUserAgent)
	req.Header.Set(HeaderSignature, delivery.Signature)
	req.Header.Set(HeaderRequestID, delivery.RequestID)
	req.Header.Set(HeaderEventType, delivery.EventType)

	resp, err := w.client.Do(req)
	if err != nil {
		// Timeouts and network errors are the same thing here: one failed
		// attempt that proceeds to backoff.
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

func (w *Worker) recordFailure(delivery *models.WebhookDelivery, errMsg string, httpStatus *int) {
	nextDelay := w.config.Backoff.Delay(delivery.AttemptCount + 1)
	delivery.MarkAttemptFailed(errMsg, httpStatus, nextDelay, w.now())

	if err := w.deliveries.Update(delivery); err != nil {
		log.Errorf("[DeliveryWorker] failed to persist attempt outcome for %d: %v", delivery.ID, err)
		return
	}

	if delivery.Status == models.DeliveryStatusFailed {
		log.Errorf("[DeliveryWorker] delivery %s permanently failed after %d attempts: %s",
			delivery.RequestID, delivery.AttemptCount, errMsg)
	} else {
		log.Warnf("[DeliveryWorker] delivery %s attempt %d failed, retrying at %s: %s",
			delivery.RequestID, delivery.AttemptCount, delivery.NextAttemptAt.Format(time.RFC3339), errMsg)
	}
}

func (w *Worker) endpointFor(delivery *models.WebhookDelivery) (*models.WebhookEndpoint, error) {
	if delivery.Endpoint.ID != 0 {
		return &delivery.Endpoint, nil
	}
	full, err := w.deliveries.GetByID(delivery.ID)
	if err != nil {
		return nil, err
	}
	if full.Endpoint.ID == 0 {
		return nil, fmt.Errorf("delivery %d has no endpoint loaded", delivery.ID)
	}
	return &full.Endpoint, nil
}
