// Package numerator defines the document numbering contract.
// Implementations live in the infrastructure layer.
package numerator

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/pkg/numerator"
)

// Config is the numbering configuration.
type Config = numerator.Config

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict bumps the sequence row for every number inside the caller's
	// transaction. No gaps: a rolled back document releases its number.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Faster, but leaves gaps when the process restarts.
	StrategyCached
)

// Generator hands out sequential document numbers per tenant.
type Generator interface {
	// Next returns the next number of cfg's sequence for period.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., TR-2026-00001)
	Next(ctx context.Context, tenantID id.ID, cfg Config, period time.Time) (string, error)
}

// DefaultConfig returns yearly five-digit numbering for prefix.
func DefaultConfig(prefix string) Config {
	return numerator.DefaultConfig(prefix)
}
