package pricing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// CustomerKey derives the one-way customer identifier from an email address.
// The address is normalised first so case and whitespace variants collapse
// onto one customer.
func CustomerKey(email string) string {
	normalised := strings.ToLower(strings.TrimSpace(email))
	digest := sha256.Sum256([]byte(normalised))
	return hex.EncodeToString(digest[:])
}

// NewReferralCode mints a short shareable code. Codes are stored uppercase
// and compared case-insensitively.
func NewReferralCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:8])
}
