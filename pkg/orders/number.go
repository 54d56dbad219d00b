package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const numberPrefix = "ORD"

// NewNumber returns a human readable order number such as
// ORD-20260304-3F2B8F.
func NewNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", numberPrefix, now.UTC().Format("20060102"), suffix)
}
