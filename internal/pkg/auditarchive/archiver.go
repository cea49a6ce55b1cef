package auditarchive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/revflowhq/revflow/app/repository"
)

// ObjectStore is the storage slice the archiver needs.
type ObjectStore interface {
	Upload(ctx context.Context, objectKey string, body []byte) error
}

// Archiver exports old execution logs to object storage as NDJSON batches.
// The audit table is append-only, so the export never deletes rows; it gives
// compliance reviews a durable off-database copy of the trail.
type Archiver struct {
	logs  repository.ExecutionLogRepository
	store ObjectStore

	now func() time.Time
}

// NewArchiver creates an archiver over the execution log repository.
func NewArchiver(logs repository.ExecutionLogRepository, store ObjectStore) *Archiver {
	return &Archiver{logs: logs, store: store, now: time.Now}
}

// ArchiveOlderThan exports all execution logs older than the retention
// window, in id-ordered batches, and returns the number of exported rows.
func (a *Archiver) ArchiveOlderThan(ctx context.Context, retentionDays, batchSize int) (int, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	if batchSize <= 0 {
		batchSize = 1000
	}

	now := a.now()
	cutoff := now.AddDate(0, 0, -retentionDays)

	total := 0
	afterID := uint(0)
	for {
		batch, err := a.logs.ListExecutedBefore(cutoff, afterID, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list execution logs before %s: %w", cutoff.Format(time.RFC3339), err)
		}
		if len(batch) == 0 {
			break
		}

		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		for i := range batch {
			if err := encoder.Encode(&batch[i]); err != nil {
				return total, fmt.Errorf("failed to encode execution log %d: %w", batch[i].ID, err)
			}
		}

		key := ObjectKey(now, batch[0].ID, batch[len(batch)-1].ID)
		if err := a.store.Upload(ctx, key, buf.Bytes()); err != nil {
			return total, fmt.Errorf("failed to upload batch %s: %w", key, err)
		}

		total += len(batch)
		afterID = batch[len(batch)-1].ID

		if len(batch) < batchSize {
			break
		}
	}

	if total > 0 {
		log.Infof("[AuditArchive] Exported %d execution logs older than %s", total, cutoff.Format("2006-01-02"))
	}
	return total, nil
}
