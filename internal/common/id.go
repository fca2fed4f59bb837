package common

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/google/uuid"
)

// BidID derives the deterministic record ID for a bid from its project name
// and purchaser. Both fields feed an md5 digest joined by "-", truncated to
// 16 hex characters. The recipe is part of the stored data contract: changing
// it breaks idempotent re-crawls against existing databases.
func BidID(projectName, purchaser string) string {
	sum := md5.Sum([]byte(projectName + "-" + purchaser))
	return hex.EncodeToString(sum[:])[:16]
}

// NewRunID generates a unique crawl run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}
