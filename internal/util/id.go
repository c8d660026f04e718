package util

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns an identifier with a millisecond timestamp prefix and a short
// random suffix so that IDs minted within the same millisecond stay distinct.
func NewID(prefix string) string {
	suffix := uuid.NewString()[:8]
	if prefix == "" {
		return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), suffix)
}
