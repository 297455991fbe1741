package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewMessageID generates the identifier assigned to a message at
// normalization time. It combines the current epoch milliseconds with a
// random component so concurrent calls produce unique values without any
// shared counter. The identifier is independent of the provider's ExternalID.
func NewMessageID() string {
	return fmt.Sprintf("msg_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
