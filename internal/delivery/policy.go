package delivery

import (
	"strings"
	"time"

	"quire/internal/config"
)

// RedeliveryPolicy selects which destinations receive an edition that was
// already sent to some of them.
type RedeliveryPolicy string

const (
	// RedeliverPending resends only to destinations without a receipt.
	RedeliverPending RedeliveryPolicy = config.RedeliverPending
	// RedeliverAll resends to every configured destination.
	RedeliverAll RedeliveryPolicy = config.RedeliverAll

	DefaultRedeliveryPolicy = RedeliverPending
)

// ParsePolicy maps a config value to a policy, falling back to the default.
func ParsePolicy(value string) RedeliveryPolicy {
	switch RedeliveryPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case RedeliverAll:
		return RedeliverAll
	case RedeliverPending:
		return RedeliverPending
	default:
		return DefaultRedeliveryPolicy
	}
}

// Targets returns the destinations to send to given the receipts already
// recorded, preserving configured order.
func (p RedeliveryPolicy) Targets(destinations []string, confirmed map[string]time.Time) []string {
	out := make([]string, 0, len(destinations))
	for _, dest := range destinations {
		if p != RedeliverAll {
			if _, ok := confirmed[strings.ToLower(dest)]; ok {
				continue
			}
		}
		out = append(out, dest)
	}
	return out
}

// Complete reports whether every destination has a receipt.
func Complete(destinations []string, confirmed map[string]time.Time) bool {
	for _, dest := range destinations {
		if _, ok := confirmed[strings.ToLower(dest)]; !ok {
			return false
		}
	}
	return true
}
