package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type AgentType string

const (
	AgentTypeProduct  AgentType = "Product"
	AgentTypeCustomer AgentType = "Customer"
	AgentTypeMarket   AgentType = "Market"
	AgentTypeSales    AgentType = "Sales"
)

var AgentTypes = []AgentType{AgentTypeProduct, AgentTypeCustomer, AgentTypeMarket, AgentTypeSales}

func (t AgentType) Valid() bool {
	for _, known := range AgentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseAgentType accepts agent names case-insensitively.
func ParseAgentType(s string) (AgentType, bool) {
	for _, known := range AgentTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(known)) {
			return known, true
		}
	}
	return "", false
}

type TaskStatus string

const (
	TaskStatusQueued TaskStatus = "queued"
	TaskStatusDone   TaskStatus = "done"
	TaskStatusFailed TaskStatus = "failed"
)

type NodeType string

const (
	NodeTypeProduct           NodeType = "Product"
	NodeTypePricingInfo       NodeType = "PricingInfo"
	NodeTypeInventory         NodeType = "Inventory"
	NodeTypeCustomerProfile   NodeType = "CustomerProfile"
	NodeTypeSentiment         NodeType = "Sentiment"
	NodeTypeMarketingCampaign NodeType = "MarketingCampaign"
	NodeTypeMarketTrends      NodeType = "MarketTrends"
	NodeTypeCompetitorInfo    NodeType = "CompetitorInfo"
	NodeTypeTrendAnalysis     NodeType = "TrendAnalysis"
	NodeTypeLead              NodeType = "Lead"
	NodeTypeNegotiationResult NodeType = "NegotiationResult"
	NodeTypeDealResult        NodeType = "DealResult"
	NodeTypeCategory          NodeType = "Category"
)

const (
	EventTaskCompleted   = "task.completed"
	EventTaskFailed      = "task.failed"
	EventStockAlert      = "stock.alert"
	EventPricingDecision = "pricing.decision"
)

type Task struct {
	ID          string     `json:"id"`
	Priority    int        `json:"priority"`
	AgentType   AgentType  `json:"agent_type"`
	Description string     `json:"description"`
	Seq         int64      `json:"seq"`
	Status      TaskStatus `json:"status"`
	Result      string     `json:"result,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Attributes is the free-form property bag carried by a graph node.
type Attributes map[string]any

type Node struct {
	ID         string     `json:"id"`
	Type       NodeType   `json:"type"`
	Attributes Attributes `json:"attributes"`
}

type Edge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
}

type GraphSnapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

type Event struct {
	ID        string          `json:"id"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type DecisionLog struct {
	ID        int64           `json:"id"`
	TaskID    string          `json:"task_id,omitempty"`
	Actor     string          `json:"actor"`
	Action    string          `json:"action"`
	Reason    string          `json:"reason"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type SaleRecord struct {
	ID         int64     `json:"id"`
	Product    string    `json:"product"`
	Quantity   int       `json:"quantity"`
	TotalValue float64   `json:"total_value"`
	CreatedAt  time.Time `json:"created_at"`
}

type SalesTotal struct {
	Product    string  `json:"product"`
	Deals      int     `json:"deals"`
	Quantity   int     `json:"quantity"`
	TotalValue float64 `json:"total_value"`
}

type ExportLog struct {
	ID        int64     `json:"id"`
	Actor     string    `json:"actor"`
	Path      string    `json:"path"`
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type StockAlertPayload struct {
	Product   string `json:"product"`
	Level     int    `json:"level"`
	Requested string `json:"requested_by"`
}

type PricingDecisionPayload struct {
	Product          string             `json:"product"`
	Price            float64            `json:"price"`
	CurrentPrice     float64            `json:"current_price"`
	CompetitorPrices map[string]float64 `json:"competitor_prices"`
	InventoryLevel   int                `json:"inventory_level"`
	Strategy         string             `json:"strategy"`
	Competitors      []string           `json:"competitors,omitempty"`
}

type TaskEventPayload struct {
	TaskID    string    `json:"task_id"`
	AgentType AgentType `json:"agent_type"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
}
