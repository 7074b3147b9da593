package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"asd_commerce/internal/domain"
)

var (
	ErrNoCompetitorPrices = errors.New("no competitor prices")
	ErrNoCurrentPrice     = errors.New("product has no usable current_price")
)

const (
	StrategyClearance = "clearance"
	StrategyPremium   = "premium"
)

// CurrentPriceKey is the product attribute holding the price we sell at today.
const CurrentPriceKey = "current_price"

type PricingDecision struct {
	Price              float64 `json:"price"`
	CurrentPrice       float64 `json:"current_price"`
	AvgCompetitorPrice float64 `json:"avg_competitor_price"`
	InventoryLevel     int     `json:"inventory_level"`
	Strategy           string  `json:"strategy"`
	TrendSignals       int     `json:"trend_signals"`
}

// MakePricingDecision undercuts the market when stock is above the inventory
// threshold and prices above it otherwise, never crossing the current price
// in the wrong direction.
func (e *Engine) MakePricingDecision(
	product domain.Attributes,
	marketTrends domain.Attributes,
	competitorPrices map[string]float64,
	inventoryLevel int,
) (PricingDecision, error) {
	if len(competitorPrices) == 0 {
		return PricingDecision{}, ErrNoCompetitorPrices
	}
	current, ok := AsFloat(product[CurrentPriceKey])
	if !ok || current <= 0 {
		return PricingDecision{}, ErrNoCurrentPrice
	}

	names := make([]string, 0, len(competitorPrices))
	for name := range competitorPrices {
		names = append(names, name)
	}
	sort.Strings(names)
	prices := make([]float64, 0, len(names))
	for _, name := range names {
		p := competitorPrices[name]
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return PricingDecision{}, fmt.Errorf("invalid competitor price %s=%v", name, p)
		}
		prices = append(prices, p)
	}
	avg := stat.Mean(prices, nil)

	decision := PricingDecision{
		CurrentPrice:       current,
		AvgCompetitorPrice: avg,
		InventoryLevel:     inventoryLevel,
		TrendSignals:       countSignals(marketTrends),
	}
	if inventoryLevel > e.cfg.InventoryThreshold {
		decision.Strategy = StrategyClearance
		decision.Price = math.Min(avg*e.cfg.Discount, current)
	} else {
		decision.Strategy = StrategyPremium
		decision.Price = math.Max(avg*e.cfg.Markup, current)
	}

	e.logger.Debug().
		Str("strategy", decision.Strategy).
		Float64("avg_competitor_price", avg).
		Int("inventory", inventoryLevel).
		Float64("price", decision.Price).
		Msg("pricing decision")
	return decision, nil
}

// AsFloat converts the numeric shapes attribute maps carry after JSON or
// in-process writes.
func AsFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func countSignals(trends domain.Attributes) int {
	count := 0
	for _, v := range trends {
		switch items := v.(type) {
		case []string:
			count += len(items)
		case []any:
			count += len(items)
		}
	}
	return count
}
