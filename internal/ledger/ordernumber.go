package ledger

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"
)

var orderNumberPattern = regexp.MustCompile(`^ORD-\d{8}-\d{3}$`)

// NewOrderNumber returns ORD-YYYYMMDD-NNN. The random suffix only has a
// thousand values per day; uniqueness comes from the orderNumber index.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%03d", now.Format("20060102"), rand.IntN(1000))
}

func ValidOrderNumber(s string) bool {
	return orderNumberPattern.MatchString(s)
}
