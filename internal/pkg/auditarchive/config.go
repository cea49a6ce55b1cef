package auditarchive

import (
	"errors"
	"fmt"
	"time"

	"github.com/revflowhq/revflow/internal/pkg/env"
)

// Config holds audit archive object storage configuration
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	BucketName      string
	EndpointURL     string // Optional for S3-compatible services
	Enabled         bool
}

// LoadConfig loads archive configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnv("AUDIT_ARCHIVE_ENABLED", "false") == "true",
	}

	// Validate required fields if archiving is enabled
	if config.Enabled {
		if config.AccessKeyID == "" {
			return nil, errors.New("S3_ACCESS_KEY_ID is required when audit archiving is enabled")
		}
		if config.SecretAccessKey == "" {
			return nil, errors.New("S3_SECRET_ACCESS_KEY is required when audit archiving is enabled")
		}
		if config.BucketName == "" {
			return nil, errors.New("S3_BUCKET_NAME is required when audit archiving is enabled")
		}
	}

	return config, nil
}

// IsEnabled returns true if audit archiving is enabled
func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// GetBucketName returns the bucket name as configured (no automatic prefixing)
func (c *Config) GetBucketName() string {
	return c.BucketName
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	return env.GetEnv("APP_ENV", "dev")
}

// ObjectKey generates the object key for one exported batch.
// Format: audit/YYYY/MM/DD/executions-<firstID>-<lastID>.ndjson
func ObjectKey(exportedAt time.Time, firstID, lastID uint) string {
	return fmt.Sprintf("audit/%04d/%02d/%02d/executions-%d-%d.ndjson",
		exportedAt.Year(), exportedAt.Month(), exportedAt.Day(), firstID, lastID)
}
