// Package source is where agents get their market data from. Static serves
// fixed placeholder records until a real marketplace client is plugged in.
package source

import (
	"context"
	"strings"

	"asd_commerce/internal/domain"
)

// OwnPriceKey is the pricing attribute holding our own storefront price.
const OwnPriceKey = "amazon_price"

type Credentials struct {
	AccessKey  string
	SecretKey  string
	PartnerTag string
	Country    string
}

// Configured reports whether real credentials were supplied rather than the
// YOUR_* placeholders shipped in the sample config.
func (c Credentials) Configured() bool {
	for _, v := range []string{c.AccessKey, c.SecretKey, c.PartnerTag} {
		v = strings.TrimSpace(v)
		if v == "" || strings.HasPrefix(v, "YOUR_") {
			return false
		}
	}
	return true
}

type Product struct {
	ASIN     string  `json:"asin"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
}

func (p Product) Attributes() domain.Attributes {
	return domain.Attributes{"asin": p.ASIN, "name": p.Name, "category": p.Category, "price": p.Price}
}

type CustomerProfile struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Preferences []string `json:"preferences"`
}

func (c CustomerProfile) Attributes() domain.Attributes {
	return domain.Attributes{"id": c.ID, "name": c.Name, "preferences": append([]string(nil), c.Preferences...)}
}

type MarketTrends struct {
	GrowingSegments   []string `json:"growing_segments"`
	DecliningSegments []string `json:"declining_segments"`
}

func (m MarketTrends) Attributes() domain.Attributes {
	return domain.Attributes{
		"growing_segments":   append([]string(nil), m.GrowingSegments...),
		"declining_segments": append([]string(nil), m.DecliningSegments...),
	}
}

type Competitor struct {
	MarketShare float64 `json:"market_share"`
	TopProduct  string  `json:"top_product"`
}

type TrendReport struct {
	EmergingTechnologies   []string `json:"emerging_technologies"`
	ConsumerBehaviorShifts []string `json:"consumer_behavior_shifts"`
}

func (t TrendReport) Attributes() domain.Attributes {
	return domain.Attributes{
		"emerging_technologies":    append([]string(nil), t.EmergingTechnologies...),
		"consumer_behavior_shifts": append([]string(nil), t.ConsumerBehaviorShifts...),
	}
}

type Lead struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	InterestLevel string `json:"interest_level"`
}

func (l Lead) Attributes() domain.Attributes {
	return domain.Attributes{"id": l.ID, "name": l.Name, "interest_level": l.InterestLevel}
}

type Negotiation struct {
	FinalPrice float64 `json:"final_price"`
	Discount   float64 `json:"discount"`
}

func (n Negotiation) Attributes() domain.Attributes {
	return domain.Attributes{"final_price": n.FinalPrice, "discount": n.Discount}
}

type Deal struct {
	Product    string  `json:"product"`
	Quantity   int     `json:"quantity"`
	TotalValue float64 `json:"total_value"`
}

func (d Deal) Attributes() domain.Attributes {
	return domain.Attributes{"product": d.Product, "quantity": d.Quantity, "total_value": d.TotalValue}
}

type Catalog interface {
	TopSelling(ctx context.Context, category string) ([]Product, error)
	Prices(ctx context.Context, product string) (map[string]float64, error)
	InventoryLevel(ctx context.Context, product string) (int, error)
}

type CRM interface {
	CustomerProfiles(ctx context.Context) ([]CustomerProfile, error)
	Campaign(ctx context.Context, segment string) (string, error)
}

type MarketData interface {
	MarketTrends(ctx context.Context, industry string) (MarketTrends, error)
	Competitors(ctx context.Context, category string) (map[string]Competitor, error)
	GlobalTrends(ctx context.Context) (TrendReport, error)
}

type SalesDesk interface {
	Leads(ctx context.Context, product string) ([]Lead, error)
	Negotiate(ctx context.Context, product string) (Negotiation, error)
	CloseDeal(ctx context.Context, product string) (Deal, error)
}
