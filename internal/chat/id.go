package chat

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// NewID generates a unique conversation ID using a timestamp prefix and
// random suffix. Format: YYYYMMDD-HHMMSS-RANDOM (e.g. "20250830-143052-a1b2c3").
// Sorts chronologically and stays readable in exports and the store.
func NewID() string {
	now := time.Now()
	random := make([]byte, 3) // 6 hex chars
	rand.Read(random)
	return fmt.Sprintf("%s-%s",
		now.Format("20060102-150405"),
		hex.EncodeToString(random),
	)
}

// ShortID returns a shortened version of a conversation ID for display.
// Example: "20250830-143052-a1b2c3" -> "250830-1430"
func ShortID(id string) string {
	if len(id) < 15 {
		return id
	}
	return id[2:8] + "-" + id[9:13]
}
