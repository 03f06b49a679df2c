package interfaces

import (
	"strings"

	"github.com/google/uuid"
)

// MaxClientOrderIDLength is the tightest client order id cap across the
// supported exchanges.
const MaxClientOrderIDLength = 36

// NewClientOrderID generates a client order id under the given exchange
// prefix, truncated to the common length cap. The uuid is stripped of
// dashes so the prefix keeps more entropy inside the cap.
func NewClientOrderID(prefix string) string {
	id := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(id) > MaxClientOrderIDLength {
		id = id[:MaxClientOrderIDLength]
	}
	return id
}
