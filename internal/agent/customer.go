package agent

import (
	"context"
	"fmt"
	"strings"

	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
)

type Customer struct {
	base
}

func NewCustomer(deps Deps) *Customer {
	return &Customer{base: newBase(domain.AgentTypeCustomer, deps)}
}

func (c *Customer) Execute(ctx context.Context, description string) (string, error) {
	switch {
	case strings.Contains(description, "Customer Profiling"):
		return c.profile(ctx)
	case strings.Contains(description, "Sentiment Analysis"):
		product, err := Between(description, "for ")
		if err != nil {
			return "", err
		}
		return c.sentiment(ctx, product)
	case strings.Contains(description, "Personalized Marketing"):
		segment, err := Subject(description, "for ", " based")
		if err != nil {
			return "", err
		}
		return c.campaign(ctx, segment)
	default:
		return "", c.unsupported(description)
	}
}

func (c *Customer) profile(ctx context.Context) (string, error) {
	profiles, err := c.CRM.CustomerProfiles(ctx)
	if err != nil {
		return "", fmt.Errorf("load customer profiles: %w", err)
	}
	for _, profile := range profiles {
		if err := c.Graph.AddNode(ctx, domain.NodeTypeCustomerProfile, profile.ID, profile.Attributes()); err != nil {
			return "", err
		}
		for _, pref := range profile.Preferences {
			if err := c.Graph.AddEdge(ctx, profile.ID, graph.ScopedID(domain.NodeTypeCategory, pref), "prefers"); err != nil {
				return "", err
			}
		}
	}
	return "Created customer profiles and added to knowledge graph", nil
}

func (c *Customer) sentiment(ctx context.Context, product string) (string, error) {
	review := fmt.Sprintf("This is a great product! I love my new %s.", product)
	scores := c.Sentiment.AnalyzeSentiment(review)
	sentimentID := graph.ScopedID(domain.NodeTypeSentiment, product)
	if err := c.Graph.AddNode(ctx, domain.NodeTypeSentiment, sentimentID, domain.Attributes{
		"product":  product,
		"neg":      scores.Neg,
		"neu":      scores.Neu,
		"pos":      scores.Pos,
		"compound": scores.Compound,
	}); err != nil {
		return "", err
	}
	if err := c.Graph.AddEdge(ctx, sentimentID, product, "about"); err != nil {
		return "", err
	}
	return fmt.Sprintf("Sentiment analysis for %s: neg=%.3f neu=%.3f pos=%.3f compound=%.4f",
		product, scores.Neg, scores.Neu, scores.Pos, scores.Compound), nil
}

func (c *Customer) campaign(ctx context.Context, segment string) (string, error) {
	message, err := c.CRM.Campaign(ctx, segment)
	if err != nil {
		return "", fmt.Errorf("campaign for %s: %w", segment, err)
	}
	if err := c.Graph.AddNode(ctx, domain.NodeTypeMarketingCampaign, graph.ScopedID(domain.NodeTypeMarketingCampaign, segment), domain.Attributes{
		"segment": segment,
		"message": message,
	}); err != nil {
		return "", err
	}
	return fmt.Sprintf("Generated personalized marketing campaign for %s", segment), nil
}
