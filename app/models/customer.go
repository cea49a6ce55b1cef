package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	CustomerStatusActive    = "active"
	CustomerStatusSuspended = "suspended"
)

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "rvf_"

// Customer is a tenant of the platform. Every automation rule, profile,
// webhook endpoint and audit row is scoped to a customer. Inbound webhook
// calls authenticate with the customer's API key.
type Customer struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"type:varchar(191);not null" json:"name"`
	Status          string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	APIKeyHash      string         `gorm:"type:char(64);uniqueIndex;default:''" json:"-"`
	APIKeyPrefix    string         `gorm:"type:varchar(20);default:''" json:"api_key_prefix"`
	APIKeyCreatedAt *time.Time     `json:"api_key_created_at,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsActive reports whether the customer may submit events and receive deliveries.
func (c *Customer) IsActive() bool {
	return c != nil && c.Status == CustomerStatusActive
}

// IssueAPIKey generates a new API key, stores its hash and prefix on the
// struct, and returns the raw secret. The raw key is shown to the operator
// once and never persisted.
func (c *Customer) IssueAPIKey() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	c.APIKeyHash = hash
	c.APIKeyPrefix = prefix
	c.APIKeyCreatedAt = &now
	return rawKey, nil
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	encoded := strings.ToLower(apiKeyEncoding.EncodeToString(b))
	rawKey := apiKeyPrefix + encoded
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	prefix := rawKey[:min(len(rawKey), 16)]
	return rawKey, prefix, HashAPIKey(rawKey), nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
