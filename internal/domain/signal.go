package domain

import "github.com/shopspring/decimal"

// SignalKind tags which variant of Signal is populated.
type SignalKind string

// Signal kinds
const (
	SignalTargetWeights SignalKind = "TARGET_WEIGHTS"
	SignalOrders        SignalKind = "ORDERS"
)

// Order is an explicit trade instruction.
type Order struct {
	InstrumentID string
	Side         Side
	Shares       int64
}

// Signal is a strategy decision for one trading day.
// Only Weights or Orders is set, depending on Kind.
type Signal struct {
	Kind    SignalKind
	Weights map[string]decimal.Decimal // fraction of equity per instrument
	Orders  []Order
	Reason  string
}

// TargetWeights builds a target-weight signal.
func TargetWeights(weights map[string]decimal.Decimal, reason string) *Signal {
	return &Signal{Kind: SignalTargetWeights, Weights: weights, Reason: reason}
}

// Orders builds an explicit-order signal.
func Orders(orders []Order, reason string) *Signal {
	return &Signal{Kind: SignalOrders, Orders: orders, Reason: reason}
}
