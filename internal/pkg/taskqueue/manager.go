package taskqueue

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/revflowhq/revflow/internal/pkg/env"
)

// Manager manages the global job queue and background tasks
type Manager struct {
	queue         *Queue
	archiveTicker *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

var (
	globalManager *Manager
	managerOnce   sync.Once
)

// GetManager returns the global job queue manager (singleton)
func GetManager() *Manager {
	managerOnce.Do(func() {
		workerCount := envInt("AUTOMATION_WORKER_COUNT", 5)

		globalManager = &Manager{
			queue:  NewQueue(workerCount),
			stopCh: make(chan struct{}),
		}
	})
	return globalManager
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[TaskQueue Manager] Starting job queue and background tasks")

	// Start the job queue
	m.queue.Start()

	// Periodically enqueue an audit archive sweep
	archiveInterval := time.Duration(envInt("AUDIT_ARCHIVE_INTERVAL_MINUTES", 60)) * time.Minute
	m.archiveTicker = time.NewTicker(archiveInterval)
	m.wg.Add(1)
	go m.archiveWorker()

	log.Info("[TaskQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[TaskQueue Manager] Stopping job queue and background tasks...")

	if m.archiveTicker != nil {
		m.archiveTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.stopCh = nil
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	// Stop the job queue
	m.queue.Stop()

	log.Info("[TaskQueue Manager] Stopped successfully")
}

// archiveWorker periodically enqueues an archive sweep for execution logs
// older than the retention window.
func (m *Manager) archiveWorker() {
	defer m.wg.Done()
	retentionDays := envInt("AUDIT_RETENTION_DAYS", 365)
	batchSize := envInt("AUDIT_ARCHIVE_BATCH_SIZE", 1000)
	log.Infof("[TaskQueue Manager] Started archive worker (retention: %d days)", retentionDays)

	for {
		select {
		case <-m.stopCh:
			log.Info("[TaskQueue Manager] Archive worker stopping")
			return
		case <-m.archiveTicker.C:
			payload := ArchiveAuditLogsJobPayload{
				RetentionDays: retentionDays,
				BatchSize:     batchSize,
			}
			if _, err := m.queue.EnqueueJob(JobTypeArchiveAuditLogs, payload.ToMap()); err != nil {
				log.Errorf("[TaskQueue Manager] Failed to enqueue archive job: %v", err)
			}
		}
	}
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func envInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
