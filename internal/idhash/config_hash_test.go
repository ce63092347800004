package idhash

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fields() ConfigFields {
	return ConfigFields{
		Symbol:      "VN30F1M",
		Bars:        1200,
		Seed:        42,
		Trials:      100,
		Sampler:     "tpe",
		MaxDrawdown: dec("0.20"),
		Bounds: []Bound{
			{Name: "step", Low: dec("0.1"), High: dec("2.0"), Step: dec("0.1")},
			{Name: "priceEncouragement", Low: dec("0.0"), High: dec("1.0"), Step: dec("0.01")},
		},
	}
}

func TestComputeConfigHash(t *testing.T) {
	h := ComputeConfigHash(fields())
	if len(h) != 64 {
		t.Errorf("expected 64 hex characters, got %d", len(h))
	}
	if h != ComputeConfigHash(fields()) {
		t.Error("hash is not deterministic")
	}
}

func TestComputeConfigHash_CanonicalDecimals(t *testing.T) {
	a := fields()
	b := fields()
	b.Bounds[0].Low = dec("0.10")
	b.MaxDrawdown = dec("0.2")

	if ComputeConfigHash(a) != ComputeConfigHash(b) {
		t.Error("equal decimals with different scale must hash alike")
	}
}

func TestComputeConfigHash_Sensitivity(t *testing.T) {
	base := ComputeConfigHash(fields())

	mutations := map[string]func(*ConfigFields){
		"seed":      func(f *ConfigFields) { f.Seed = 43 },
		"trials":    func(f *ConfigFields) { f.Trials = 101 },
		"symbol":    func(f *ConfigFields) { f.Symbol = "VN30F2M" },
		"sampler":   func(f *ConfigFields) { f.Sampler = "random" },
		"threshold": func(f *ConfigFields) { f.MaxDrawdown = dec("0.25") },
		"bound":     func(f *ConfigFields) { f.Bounds[1].High = dec("0.9") },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			f := fields()
			mutate(&f)
			if ComputeConfigHash(f) == base {
				t.Errorf("changing %s did not change the hash", name)
			}
		})
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if a == b {
		t.Error("run ids must be unique")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("run id %q is not a UUID: %v", a, err)
	}
}
