package strategy

import (
	"sort"

	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// DefaultInvestFraction leaves headroom for commission and transfer fees
// so a fully invested target does not get rejected for cash.
var DefaultInvestFraction = decimal.RequireFromString("0.98")

// sma returns the simple average of values.
func sma(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// equalWeights splits fraction evenly across instruments.
func equalWeights(instruments []string, fraction decimal.Decimal) map[string]decimal.Decimal {
	weights := make(map[string]decimal.Decimal, len(instruments))
	if len(instruments) == 0 {
		return weights
	}
	each := fraction.Div(decimal.NewFromInt(int64(len(instruments))))
	for _, id := range instruments {
		weights[id] = each
	}
	return weights
}

// sortedUniverse returns a deduplicated, sorted copy of the universe.
func sortedUniverse(universe []string) []string {
	seen := make(map[string]struct{}, len(universe))
	out := make([]string, 0, len(universe))
	for _, id := range universe {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// sameHoldings reports whether the snapshot holds exactly the given instruments.
func sameHoldings(snapshot domain.PortfolioSnapshot, invested []string) bool {
	held := snapshot.Instruments()
	if len(held) != len(invested) {
		return false
	}
	for i := range held {
		if held[i] != invested[i] {
			return false
		}
	}
	return true
}
