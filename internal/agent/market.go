package agent

import (
	"context"
	"fmt"
	"strings"

	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
)

// GlobalTrendsID is the node the Trend Analysis behavior writes to.
const GlobalTrendsID = "global"

type Market struct {
	base
}

func NewMarket(deps Deps) *Market {
	return &Market{base: newBase(domain.AgentTypeMarket, deps)}
}

func (m *Market) Execute(ctx context.Context, description string) (string, error) {
	switch {
	case strings.Contains(description, "Market Research"):
		industry, err := Subject(description, "for ", " and")
		if err != nil {
			return "", err
		}
		return m.research(ctx, industry)
	case strings.Contains(description, "Competitor Monitoring"):
		category, err := Between(description, "for ")
		if err != nil {
			return "", err
		}
		return m.monitorCompetitors(ctx, category)
	case strings.Contains(description, "Trend Analysis"):
		return m.analyzeTrends(ctx)
	default:
		return "", m.unsupported(description)
	}
}

func (m *Market) research(ctx context.Context, industry string) (string, error) {
	trends, err := m.Market.MarketTrends(ctx, industry)
	if err != nil {
		return "", fmt.Errorf("market trends for %s: %w", industry, err)
	}
	attrs := trends.Attributes()
	attrs["industry"] = industry
	if err := m.Graph.AddNode(ctx, domain.NodeTypeMarketTrends, graph.ScopedID(domain.NodeTypeMarketTrends, industry), attrs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Researched market trends for %s", industry), nil
}

func (m *Market) monitorCompetitors(ctx context.Context, category string) (string, error) {
	competitors, err := m.Market.Competitors(ctx, category)
	if err != nil {
		return "", fmt.Errorf("competitors for %s: %w", category, err)
	}
	attrs := make(domain.Attributes, len(competitors))
	for name, c := range competitors {
		attrs[name] = map[string]any{
			"market_share": c.MarketShare,
			"top_product":  c.TopProduct,
		}
	}
	competitorID := graph.ScopedID(domain.NodeTypeCompetitorInfo, category)
	if err := m.Graph.AddNode(ctx, domain.NodeTypeCompetitorInfo, competitorID, attrs); err != nil {
		return "", err
	}
	if err := m.Graph.AddEdge(ctx, competitorID, category, "competes_with"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Monitored competitors for %s", category), nil
}

func (m *Market) analyzeTrends(ctx context.Context) (string, error) {
	report, err := m.Market.GlobalTrends(ctx)
	if err != nil {
		return "", fmt.Errorf("global trends: %w", err)
	}
	if err := m.Graph.AddNode(ctx, domain.NodeTypeTrendAnalysis, GlobalTrendsID, report.Attributes()); err != nil {
		return "", err
	}
	return "Analyzed global market trends", nil
}
