package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bound is one search dimension as it enters the fingerprint.
type Bound struct {
	Name string
	Low  decimal.Decimal
	High decimal.Decimal
	Step decimal.Decimal
}

// ConfigFields are the settings that determine the trial sequence of a run.
type ConfigFields struct {
	Symbol      string
	Bars        int
	Seed        uint64
	Trials      int
	Sampler     string
	MaxDrawdown decimal.Decimal
	Bounds      []Bound
}

// ComputeConfigHash computes a deterministic fingerprint of a search
// configuration using SHA256.
// Formula: SHA256(symbol|bars|seed|trials|sampler|max_drawdown|name:low:high:step;...)
// Decimals are rendered in canonical form so 0.10 and 0.1 hash alike.
// Returns hex-encoded hash (64 characters).
func ComputeConfigHash(f ConfigFields) string {
	bounds := make([]string, len(f.Bounds))
	for i, b := range f.Bounds {
		bounds[i] = fmt.Sprintf("%s:%s:%s:%s", b.Name, b.Low, b.High, b.Step)
	}

	data := fmt.Sprintf("%s|%d|%d|%d|%s|%s|%s",
		f.Symbol,
		f.Bars,
		f.Seed,
		f.Trials,
		f.Sampler,
		f.MaxDrawdown,
		strings.Join(bounds, ";"),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.New().String()
}
