package agent

import (
	"context"
	"fmt"
	"strings"

	"asd_commerce/internal/domain"
	"asd_commerce/internal/graph"
)

type Product struct {
	base
}

func NewProduct(deps Deps) *Product {
	return &Product{base: newBase(domain.AgentTypeProduct, deps)}
}

func (p *Product) Execute(ctx context.Context, description string) (string, error) {
	switch {
	case strings.Contains(description, "Product Research"):
		category, err := Between(description, "in ")
		if err != nil {
			return "", err
		}
		return p.research(ctx, category)
	case strings.Contains(description, "Pricing Analysis"):
		product, err := Subject(description, "of ", " across")
		if err != nil {
			return "", err
		}
		return p.analyzePrices(ctx, product)
	case strings.Contains(description, "Inventory Management"):
		product, err := Subject(description, "for ", " and")
		if err != nil {
			return "", err
		}
		return p.manageInventory(ctx, product)
	default:
		return "", p.unsupported(description)
	}
}

func (p *Product) research(ctx context.Context, category string) (string, error) {
	products, err := p.Catalog.TopSelling(ctx, category)
	if err != nil {
		return "", fmt.Errorf("research %s: %w", category, err)
	}
	categoryID := graph.ScopedID(domain.NodeTypeCategory, category)
	if err := p.Graph.AddNode(ctx, domain.NodeTypeCategory, categoryID, domain.Attributes{"name": category}); err != nil {
		return "", err
	}
	for _, product := range products {
		if err := p.Graph.AddNode(ctx, domain.NodeTypeProduct, product.ASIN, product.Attributes()); err != nil {
			return "", err
		}
		if err := p.Graph.AddEdge(ctx, product.ASIN, categoryID, "in_category"); err != nil {
			return "", err
		}
	}
	p.logger.Debug().Str("category", category).Int("products", len(products)).Msg("products researched")
	return fmt.Sprintf("Researched top-selling products in %s", category), nil
}

func (p *Product) analyzePrices(ctx context.Context, product string) (string, error) {
	prices, err := p.Catalog.Prices(ctx, product)
	if err != nil {
		return "", fmt.Errorf("price %s: %w", product, err)
	}
	attrs := make(domain.Attributes, len(prices))
	for retailer, price := range prices {
		attrs[retailer] = price
	}
	if err := p.Graph.AddNode(ctx, domain.NodeTypePricingInfo, product, attrs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Analyzed prices for %s", product), nil
}

func (p *Product) manageInventory(ctx context.Context, product string) (string, error) {
	level, err := p.Catalog.InventoryLevel(ctx, product)
	if err != nil {
		return "", fmt.Errorf("inventory for %s: %w", product, err)
	}
	alert := "Alert about stock availability for " + product
	if err := p.mayDelegate(ctx, domain.AgentTypeSales, alert); err != nil {
		return "", err
	}
	inventoryID := graph.ScopedID(domain.NodeTypeInventory, product)
	if err := p.Graph.AddNode(ctx, domain.NodeTypeInventory, inventoryID, domain.Attributes{
		"product": product,
		"level":   level,
	}); err != nil {
		return "", err
	}
	if err := p.Graph.AddEdge(ctx, inventoryID, product, "stock_of"); err != nil {
		return "", err
	}
	if err := p.handOff(ctx, domain.AgentTypeSales, 1, alert); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated inventory for %s. Current level: %d", product, level), nil
}
