// Package shipping resolves delivery fees for checkout destinations.
package shipping

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultFee is charged when the destination is unknown or empty.
const DefaultFee int64 = 5000

// Quote is a resolved delivery fee for a destination.
type Quote struct {
	Destination string `json:"destination"`
	Fee         int64  `json:"fee"`
	// Default is true when the fallback fee was applied.
	Default bool `json:"default"`
}

// Resolver quotes delivery fees.
type Resolver interface {
	Resolve(ctx context.Context, destination string) Quote
}

// FeeTable is a static destination → fee lookup with a fallback.
type FeeTable struct {
	fees     map[string]int64
	fallback int64
}

// NewFeeTable builds a table. Keys are normalised. A zero fallback means
// free delivery; a negative one selects DefaultFee.
func NewFeeTable(fees map[string]int64, fallback int64) *FeeTable {
	if fallback < 0 {
		fallback = DefaultFee
	}
	t := &FeeTable{fees: make(map[string]int64, len(fees)), fallback: fallback}
	for dest, fee := range fees {
		key := normalize(dest)
		if key == "" || fee < 0 {
			continue
		}
		t.fees[key] = fee
	}
	return t
}

// Resolve implements Resolver.
func (t *FeeTable) Resolve(_ context.Context, destination string) Quote {
	key := normalize(destination)
	if t == nil {
		return Quote{Destination: key, Fee: DefaultFee, Default: true}
	}
	if fee, ok := t.fees[key]; ok {
		return Quote{Destination: key, Fee: fee}
	}
	return Quote{Destination: key, Fee: t.fallback, Default: true}
}

// Fallback returns the fee applied to unknown destinations.
func (t *FeeTable) Fallback() int64 {
	if t == nil {
		return DefaultFee
	}
	return t.fallback
}

// Destinations lists configured destinations with their fees, sorted by name.
func (t *FeeTable) Destinations() []Quote {
	if t == nil {
		return nil
	}
	out := make([]Quote, 0, len(t.fees))
	for dest, fee := range t.fees {
		out = append(out, Quote{Destination: dest, Fee: fee})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Destination < out[j].Destination })
	return out
}

// ParseFees parses "lagos:5000,abuja:7500" pairs.
func ParseFees(csv string) (map[string]int64, error) {
	out := map[string]int64{}
	for _, pair := range strings.Split(csv, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		dest, amount, ok := strings.Cut(pair, ":")
		if !ok || normalize(dest) == "" {
			return nil, fmt.Errorf("shipping: malformed fee %q", pair)
		}
		fee, err := strconv.ParseInt(strings.TrimSpace(amount), 10, 64)
		if err != nil || fee < 0 {
			return nil, fmt.Errorf("shipping: invalid fee for %q", dest)
		}
		out[normalize(dest)] = fee
	}
	return out, nil
}

func normalize(destination string) string {
	return strings.Join(strings.Fields(strings.ToLower(destination)), " ")
}
