package accesskey

import "time"

// Default credential shape. Lengths exclude the "AK_"/"SK_" prefixes.
const (
	AccessKeyPrefix = "AK"
	SecretKeyPrefix = "SK"

	AccessKeyLength = 32
	SecretKeyLength = 64

	DefaultMaxAgeDays = 90
)

// AccessKey is the stored credential record. The raw secret is never
// persisted; only its digest is kept for verification.
type AccessKey struct {
	ID           string    `json:"access_key_id"`
	SecretDigest string    `json:"-"`
	OwnerID      int64     `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
	MaxAgeDays   int       `json:"max_age_days"`
	Active       bool      `json:"active"`
}

// Credential is the issued pair returned to the caller exactly once.
type Credential struct {
	AccessKeyID string `json:"access_key_id"`
	SecretKey   string `json:"secret_key"`
}

// IssueOptions tunes key issuance. The zero value applies defaults.
type IssueOptions struct {
	// MaxAgeDays is the expiry policy for the new key. Zero selects
	// DefaultMaxAgeDays; negative values are rejected.
	MaxAgeDays int
}
