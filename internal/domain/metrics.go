package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// NAVPoint is one sample of the net-asset-value trajectory.
type NAVPoint struct {
	Index     int
	Timestamp time.Time
	NAV       decimal.Decimal
}

// InventoryPoint is the signed position (contracts) held after a bar.
type InventoryPoint struct {
	Index     int
	Timestamp time.Time
	Position  int64
}

// MetricsSnapshot holds risk metrics computed over one NAV trajectory.
// Sharpe and Sortino are annualized.
type MetricsSnapshot struct {
	Sharpe           decimal.Decimal
	Sortino          decimal.Decimal
	MaxDrawdown      decimal.Decimal // magnitude as a fraction of the running peak, >= 0
	MaxDrawdownIndex int             // trajectory index of the trough
	MaxDrawdownAt    time.Time       // timestamp of the trough
	RiskFreeReturn   decimal.Decimal // per-period risk-free return used
}
