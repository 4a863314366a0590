package cost

import (
	"github.com/shopspring/decimal"

	"ashare-quant-lab/internal/domain"
)

// Scenario ID constants
const (
	ScenarioZero        = "zero"
	ScenarioRealistic   = "realistic"
	ScenarioPessimistic = "pessimistic"
	ScenarioPreReform   = "pre_2023"
)

// Scenario returns a predefined cost configuration by name.
// Returns false for unknown names.
func Scenario(name string) (Config, bool) {
	switch name {
	case ScenarioZero:
		return Config{}, true
	case ScenarioRealistic:
		return Config{
			CommissionRate: decimal.RequireFromString("0.00025"),
			MinCommission:  decimal.RequireFromString("5"),
			StampTaxRate:   decimal.RequireFromString("0.0005"),
			SlippageRate:   decimal.RequireFromString("0.001"),
			TransferFeeRates: map[domain.Venue]decimal.Decimal{
				domain.VenueSSE:  decimal.RequireFromString("0.00001"),
				domain.VenueSZSE: decimal.RequireFromString("0.00001"),
			},
		}, true
	case ScenarioPessimistic:
		return Config{
			CommissionRate: decimal.RequireFromString("0.0003"),
			MinCommission:  decimal.RequireFromString("5"),
			StampTaxRate:   decimal.RequireFromString("0.0005"),
			SlippageRate:   decimal.RequireFromString("0.003"),
			TransferFeeRates: map[domain.Venue]decimal.Decimal{
				domain.VenueSSE:  decimal.RequireFromString("0.00001"),
				domain.VenueSZSE: decimal.RequireFromString("0.00001"),
			},
		}, true
	case ScenarioPreReform:
		// stamp tax 0.1%, transfer fee on Shanghai only
		return Config{
			CommissionRate: decimal.RequireFromString("0.00025"),
			MinCommission:  decimal.RequireFromString("5"),
			StampTaxRate:   decimal.RequireFromString("0.001"),
			SlippageRate:   decimal.RequireFromString("0.001"),
			TransferFeeRates: map[domain.Venue]decimal.Decimal{
				domain.VenueSSE: decimal.RequireFromString("0.00002"),
			},
		}, true
	default:
		return Config{}, false
	}
}
