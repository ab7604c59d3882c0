package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// MatchingPolicy decides which lots a partial sell consumes first.
type MatchingPolicy string

const (
	// PolicyFIFO sells the oldest lots first. It is the default.
	PolicyFIFO MatchingPolicy = "fifo"
	// PolicyTaxOptimized sells loss lots first (highest cost first), then gain
	// lots oldest first.
	PolicyTaxOptimized MatchingPolicy = "tax_optimized"
)

func (p MatchingPolicy) String() string {
	return string(p)
}

// ParseMatchingPolicy parses a policy name. Empty means FIFO.
func ParseMatchingPolicy(s string) (MatchingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fifo":
		return PolicyFIFO, nil
	case "tax_optimized", "tax-optimized", "taxoptimized":
		return PolicyTaxOptimized, nil
	default:
		return "", fmt.Errorf("unknown matching policy: %q", s)
	}
}

// order returns lot indexes in the sequence the policy consumes them.
func (p MatchingPolicy) order(lots []*Lot, price decimal.Decimal) []int {
	idx := make([]int, len(lots))
	for i := range lots {
		idx[i] = i
	}
	if p != PolicyTaxOptimized {
		return idx
	}

	sort.SliceStable(idx, func(a, b int) bool {
		la, lb := lots[idx[a]], lots[idx[b]]
		lossA, lossB := la.UnitCost.GreaterThan(price), lb.UnitCost.GreaterThan(price)
		if lossA != lossB {
			return lossA
		}
		if lossA {
			return la.UnitCost.GreaterThan(lb.UnitCost)
		}
		return la.AcquiredOn.Before(lb.AcquiredOn)
	})
	return idx
}
