package domain

import (
	"strings"
	"time"
)

// BlacklistType is the kind of identifier a blacklist entry bars
type BlacklistType string

const (
	BlacklistEmail BlacklistType = "EMAIL"
	BlacklistPhone BlacklistType = "PHONE"
)

// BlacklistEntry represents a barred email or phone number
type BlacklistEntry struct {
	ID        int64         `json:"id" db:"id"`
	Type      BlacklistType `json:"type" db:"type"`
	Value     string        `json:"value" db:"value"`
	Reason    string        `json:"reason" db:"reason"`
	Active    bool          `json:"active" db:"active"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}

// NormalizeBlacklistValue is the case-insensitive match key for an entry value
func NormalizeBlacklistValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
