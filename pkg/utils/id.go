package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	// Counter for sequential fallback IDs
	idCounter uint64
)

// GenerateID generates a unique ID from a timestamp and an atomic counter
func GenerateID() string {
	count := atomic.AddUint64(&idCounter, 1)
	timestamp := time.Now().UnixNano()
	return fmt.Sprintf("%x-%x", timestamp, count)
}

// GenerateSessionID generates a session ID with a timestamp prefix
func GenerateSessionID() string {
	timestamp := time.Now().Format("20060102-150405")
	b := make([]byte, 4)
	_, err := rand.Read(b)
	if err != nil {
		count := atomic.AddUint64(&idCounter, 1)
		return fmt.Sprintf("sess-%s-%x", timestamp, count)
	}
	return fmt.Sprintf("sess-%s-%s", timestamp, hex.EncodeToString(b))
}

// GenerateArtifactID generates an artifact ID for a generated candidate,
// scoped by strategy name and iteration
func GenerateArtifactID(strategy string, iteration int) string {
	b := make([]byte, 4)
	_, err := rand.Read(b)
	if err != nil {
		return fmt.Sprintf("%s-%d-%s", strategy, iteration, GenerateID())
	}
	return fmt.Sprintf("%s-%d-%s", strategy, iteration, hex.EncodeToString(b))
}
