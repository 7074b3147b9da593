package agent

import (
	"context"
	"fmt"
	"strings"

	"asd_commerce/internal/decision"
	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
)

type Sales struct {
	base
}

func NewSales(deps Deps) *Sales {
	return &Sales{base: newBase(domain.AgentTypeSales, deps)}
}

func (s *Sales) Execute(ctx context.Context, description string) (string, error) {
	switch {
	case strings.Contains(description, "Lead Generation"):
		product, err := Between(description, "for ")
		if err != nil {
			return "", err
		}
		return s.generateLeads(ctx, product)
	case strings.Contains(description, "Price Negotiation"):
		product, err := Subject(description, "for ", " based")
		if err != nil {
			return "", err
		}
		return s.negotiate(ctx, product)
	case strings.Contains(description, "Deal Closing"):
		product, err := Subject(description, "for ", " and")
		if err != nil {
			return "", err
		}
		return s.closeDeal(ctx, product)
	case strings.Contains(description, "Alert about stock availability"):
		product, err := Between(description, "for ")
		if err != nil {
			return "", err
		}
		return s.alertStock(ctx, product)
	default:
		return "", s.unsupported(description)
	}
}

func (s *Sales) generateLeads(ctx context.Context, product string) (string, error) {
	leads, err := s.Sales.Leads(ctx, product)
	if err != nil {
		return "", fmt.Errorf("leads for %s: %w", product, err)
	}
	for _, lead := range leads {
		if err := s.Graph.AddNode(ctx, domain.NodeTypeLead, lead.ID, lead.Attributes()); err != nil {
			return "", err
		}
		if err := s.Graph.AddEdge(ctx, lead.ID, product, "interested_in"); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Generated leads for %s", product), nil
}

func (s *Sales) negotiate(ctx context.Context, product string) (string, error) {
	result, err := s.Sales.Negotiate(ctx, product)
	if err != nil {
		return "", fmt.Errorf("negotiate %s: %w", product, err)
	}
	nodeID := graph.ScopedID(domain.NodeTypeNegotiationResult, product)
	if err := s.Graph.AddNode(ctx, domain.NodeTypeNegotiationResult, nodeID, result.Attributes()); err != nil {
		return "", err
	}
	if err := s.Graph.AddEdge(ctx, nodeID, product, "negotiated_for"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Negotiated price for %s", product), nil
}

func (s *Sales) closeDeal(ctx context.Context, product string) (string, error) {
	deal, err := s.Sales.CloseDeal(ctx, product)
	if err != nil {
		return "", fmt.Errorf("close deal for %s: %w", product, err)
	}
	nodeID := graph.ScopedID(domain.NodeTypeDealResult, product)
	if err := s.Graph.AddNode(ctx, domain.NodeTypeDealResult, nodeID, deal.Attributes()); err != nil {
		return "", err
	}
	if err := s.Graph.AddEdge(ctx, nodeID, product, "sold"); err != nil {
		return "", err
	}
	if s.Store != nil {
		if err := s.Store.RecordSale(ctx, domain.SaleRecord{
			Product:    deal.Product,
			Quantity:   deal.Quantity,
			TotalValue: deal.TotalValue,
		}); err != nil {
			return "", fmt.Errorf("update sales metrics: %w", err)
		}
	}
	s.logger.Info().
		Str("product", deal.Product).
		Int("quantity", deal.Quantity).
		Float64("total_value", deal.TotalValue).
		Msgf("Updated sales metrics: Sold %d units of %s", deal.Quantity, deal.Product)
	return fmt.Sprintf("Closed deal for %s", product), nil
}

// alertStock tells whoever listens on stock.alert how much of product is left,
// preferring the level the Product agent last recorded.
func (s *Sales) alertStock(ctx context.Context, product string) (string, error) {
	level, ok := s.recordedLevel(product)
	if !ok {
		var err error
		level, err = s.Catalog.InventoryLevel(ctx, product)
		if err != nil {
			return "", fmt.Errorf("inventory for %s: %w", product, err)
		}
	}
	s.publish(domain.EventStockAlert, domain.StockAlertPayload{
		Product:   product,
		Level:     level,
		Requested: string(domain.AgentTypeProduct),
	})
	s.logAction(ctx, "stock_alert", "stock availability broadcast", map[string]any{
		"product": product,
		"level":   level,
	})
	return fmt.Sprintf("Alerted about stock availability for %s. Current level: %d", product, level), nil
}

func (s *Sales) recordedLevel(product string) (int, bool) {
	attrs, err := s.Graph.NodeAttributes(graph.ScopedID(domain.NodeTypeInventory, product))
	if err != nil {
		return 0, false
	}
	level, ok := decision.AsFloat(attrs["level"])
	if !ok {
		return 0, false
	}
	return int(level), true
}
