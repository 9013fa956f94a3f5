// Package idhash computes deterministic record identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeAgentID computes a deterministic agent_id using SHA256.
// Formula: SHA256(external_address|created_at)
// Returns hex-encoded hash (64 characters).
func ComputeAgentID(externalAddress string, createdAt int64) string {
	data := fmt.Sprintf("%s|%d", externalAddress, createdAt)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
