// Package order records confirmed orders as key-value snapshots.
package order

import (
	"fmt"
	"strings"
)

// DefaultNumberPrefix is prepended to every order display number.
const DefaultNumberPrefix = "MBL-"

// Number formats an order id for display as prefix plus a six digit,
// zero-padded suffix. Longer ids keep all their digits and negative ids
// use their magnitude.
func Number(id int64, prefix string) string {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultNumberPrefix
	}
	mag := uint64(id)
	if id < 0 {
		mag = uint64(-(id + 1)) + 1
	}
	return fmt.Sprintf("%s%06d", prefix, mag)
}
