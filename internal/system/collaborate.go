package system

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"asd_commerce/internal/agent"
	"asd_commerce/internal/decision"
	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
	"asd_commerce/internal/source"
)

const decisionActor = "decision_engine"

var ErrUnknownPrompt = errors.New("unrecognised collaboration prompt")

const (
	PromptPPC        = "Product-Price-Customer (PPC) Analysis"
	PromptSales      = "Sales Strategy Development"
	PromptAutonomous = "Autonomous Decision-Making"
)

type plannedTask struct {
	priority    int
	agentType   domain.AgentType
	description string
}

// Collaborate fans a free-text prompt out into tasks for several agents. The
// queue is not drained here; the autonomous prompt additionally takes a
// pricing decision from whatever the graph holds right now.
func (s *System) Collaborate(ctx context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, PromptPPC):
		product, err := agent.Subject(prompt, "analyze ", " features")
		if err != nil {
			return "", err
		}
		if err := s.enqueue(ctx, []plannedTask{
			{1, domain.AgentTypeProduct, fmt.Sprintf("Pricing Analysis: Analyze prices of %s across different online retailers", product)},
			{2, domain.AgentTypeCustomer, fmt.Sprintf("Sentiment Analysis: Analyze customer reviews for %s", product)},
			{3, domain.AgentTypeMarket, fmt.Sprintf("Market Research: Research market trends for %s", firstWord(product))},
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Initiated PPC Analysis for %s", product), nil

	case strings.Contains(prompt, PromptSales):
		product, err := agent.Between(prompt, "for ")
		if err != nil {
			return "", err
		}
		if err := s.enqueue(ctx, []plannedTask{
			{1, domain.AgentTypeSales, fmt.Sprintf("Lead Generation: Generate leads for %s", product)},
			{2, domain.AgentTypeMarket, fmt.Sprintf("Competitor Monitoring: Monitor competitor prices and product offerings for %s", product)},
			{3, domain.AgentTypeCustomer, "Customer Profiling: Create customer profiles based on purchase history and provide personalized product recommendations"},
		}); err != nil {
			return "", err
		}
		return fmt.Sprintf("Initiated Sales Strategy Development for %s", product), nil

	case strings.Contains(prompt, PromptAutonomous):
		product, err := agent.Between(prompt, "for ")
		if err != nil {
			return "", err
		}
		if err := s.enqueue(ctx, []plannedTask{
			{1, domain.AgentTypeProduct, fmt.Sprintf("Inventory Management: Update inventory levels for %s and alert Sales Agent (SA) about stock availability", product)},
			{2, domain.AgentTypeSales, fmt.Sprintf("Price Negotiation: Negotiate prices with customers for %s based on inventory levels and market trends", product)},
		}); err != nil {
			return "", err
		}
		if _, err := s.DecidePricing(ctx, product); err != nil {
			return "", err
		}
		return fmt.Sprintf("Made autonomous decisions for %s", product), nil

	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPrompt, agent.TrimText(prompt, 80))
	}
}

func (s *System) enqueue(ctx context.Context, tasks []plannedTask) error {
	for _, t := range tasks {
		if _, err := s.queue.AddTask(ctx, t.priority, t.agentType, t.description); err != nil {
			return fmt.Errorf("enqueue %s task: %w", t.agentType, err)
		}
	}
	return nil
}

// DecidePricing prices product from the graph: its pricing node supplies the
// own-store and competitor prices, the global trend node the market signals
// and the inventory node the stock level.
func (s *System) DecidePricing(ctx context.Context, product string) (decision.PricingDecision, error) {
	result, payload, err := s.decidePricing(product)
	if err != nil {
		_ = s.store.LogDecision(ctx, domain.DecisionLog{
			TaskID:  agent.TaskIDFrom(ctx),
			Actor:   decisionActor,
			Action:  "pricing_failed",
			Reason:  err.Error(),
			Payload: mustJSON(map[string]string{"product": product}),
		})
		s.logger.Warn().Err(err).Str("product", product).Msg("pricing decision failed")
		return decision.PricingDecision{}, fmt.Errorf("pricing decision for %s: %w", product, err)
	}

	_ = s.store.LogDecision(ctx, domain.DecisionLog{
		TaskID:  agent.TaskIDFrom(ctx),
		Actor:   decisionActor,
		Action:  "pricing_decision",
		Reason:  fmt.Sprintf("%s pricing at inventory level %d", result.Strategy, result.InventoryLevel),
		Payload: mustJSON(payload),
	})
	s.publish(domain.EventPricingDecision, payload)
	s.metrics.PricingDecision(ctx, result.Strategy, result.Price)
	s.logger.Info().
		Str("product", product).
		Str("strategy", result.Strategy).
		Float64("price", result.Price).
		Msgf("Autonomous pricing decision for %s: $%.2f", product, result.Price)
	return result, nil
}

func (s *System) decidePricing(product string) (decision.PricingDecision, domain.PricingDecisionPayload, error) {
	var payload domain.PricingDecisionPayload

	pricing, err := s.graph.Node(product)
	if err != nil {
		return decision.PricingDecision{}, payload, err
	}
	if pricing.Type != domain.NodeTypePricingInfo {
		return decision.PricingDecision{}, payload, fmt.Errorf("%w: no %s node for %q", graph.ErrNodeNotFound, domain.NodeTypePricingInfo, product)
	}
	trends, err := s.graph.NodeAttributes(agent.GlobalTrendsID)
	if err != nil {
		return decision.PricingDecision{}, payload, err
	}

	competitorPrices := make(map[string]float64)
	productInfo := domain.Attributes{}
	for key, raw := range pricing.Attributes {
		price, ok := decision.AsFloat(raw)
		if !ok || !strings.HasSuffix(key, "_price") {
			continue
		}
		if key == source.OwnPriceKey {
			productInfo[decision.CurrentPriceKey] = price
			continue
		}
		competitorPrices[key] = price
	}

	result, err := s.engine.MakePricingDecision(productInfo, trends, competitorPrices, s.inventoryLevel(product))
	if err != nil {
		return decision.PricingDecision{}, payload, err
	}
	payload = domain.PricingDecisionPayload{
		Product:          product,
		Price:            result.Price,
		CurrentPrice:     result.CurrentPrice,
		CompetitorPrices: competitorPrices,
		InventoryLevel:   result.InventoryLevel,
		Strategy:         result.Strategy,
		Competitors:      s.competitorNames(product),
	}
	return result, payload, nil
}

func (s *System) inventoryLevel(product string) int {
	attrs, err := s.graph.NodeAttributes(graph.ScopedID(domain.NodeTypeInventory, product))
	if err != nil {
		return s.cfg.DefaultInventoryLevel
	}
	level, ok := decision.AsFloat(attrs["level"])
	if !ok {
		return s.cfg.DefaultInventoryLevel
	}
	return int(level)
}

// competitorNames lists the competitors monitored for the product's brand,
// falling back to the full product name.
func (s *System) competitorNames(product string) []string {
	attrs, err := s.graph.NodeAttributes(graph.ScopedID(domain.NodeTypeCompetitorInfo, firstWord(product)))
	if err != nil {
		attrs, err = s.graph.NodeAttributes(graph.ScopedID(domain.NodeTypeCompetitorInfo, product))
		if err != nil {
			return nil
		}
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		if name == graph.TypeKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return s
	}
	return fields[0]
}
