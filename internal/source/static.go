package source

import (
	"context"
	"fmt"
)

const defaultInventoryLevel = 50

// Static answers every query with fixed records. It satisfies Catalog, CRM,
// MarketData and SalesDesk.
type Static struct {
	creds Credentials
}

func NewStatic(creds Credentials) *Static {
	if creds.Country == "" {
		creds.Country = "US"
	}
	return &Static{creds: creds}
}

func (s *Static) Credentials() Credentials {
	return s.creds
}

func (s *Static) TopSelling(ctx context.Context, category string) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []Product{
		{ASIN: "B08F7N", Name: "Top Product 1", Category: category, Price: 99.99},
		{ASIN: "C09G8M", Name: "Top Product 2", Category: category, Price: 149.99},
	}, nil
}

func (s *Static) Prices(ctx context.Context, product string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]float64{
		OwnPriceKey:         99.99,
		"competitor1_price": 109.99,
		"competitor2_price": 89.99,
	}, nil
}

func (s *Static) InventoryLevel(ctx context.Context, product string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return defaultInventoryLevel, nil
}

func (s *Static) CustomerProfiles(ctx context.Context) ([]CustomerProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []CustomerProfile{
		{ID: "C001", Name: "John Doe", Preferences: []string{"electronics", "books"}},
		{ID: "C002", Name: "Jane Smith", Preferences: []string{"fashion", "home decor"}},
	}, nil
}

func (s *Static) Campaign(ctx context.Context, segment string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Special offers on top products for %s customers!", segment), nil
}

func (s *Static) MarketTrends(ctx context.Context, industry string) (MarketTrends, error) {
	if err := ctx.Err(); err != nil {
		return MarketTrends{}, err
	}
	return MarketTrends{
		GrowingSegments:   []string{"Smart Home", "Wearables"},
		DecliningSegments: []string{"Traditional PCs", "Basic Cell Phones"},
	}, nil
}

func (s *Static) Competitors(ctx context.Context, category string) (map[string]Competitor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return map[string]Competitor{
		"Competitor A": {MarketShare: 0.3, TopProduct: "Product X"},
		"Competitor B": {MarketShare: 0.25, TopProduct: "Product Y"},
	}, nil
}

func (s *Static) GlobalTrends(ctx context.Context) (TrendReport, error) {
	if err := ctx.Err(); err != nil {
		return TrendReport{}, err
	}
	return TrendReport{
		EmergingTechnologies:   []string{"AI", "5G", "Quantum Computing"},
		ConsumerBehaviorShifts: []string{"Increased online shopping", "Focus on sustainability"},
	}, nil
}

func (s *Static) Leads(ctx context.Context, product string) ([]Lead, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []Lead{
		{ID: "L001", Name: "Company A", InterestLevel: "High"},
		{ID: "L002", Name: "Company B", InterestLevel: "Medium"},
	}, nil
}

func (s *Static) Negotiate(ctx context.Context, product string) (Negotiation, error) {
	if err := ctx.Err(); err != nil {
		return Negotiation{}, err
	}
	return Negotiation{FinalPrice: 89.99, Discount: 0.1}, nil
}

func (s *Static) CloseDeal(ctx context.Context, product string) (Deal, error) {
	if err := ctx.Err(); err != nil {
		return Deal{}, err
	}
	return Deal{Product: product, Quantity: 100, TotalValue: 8999}, nil
}
