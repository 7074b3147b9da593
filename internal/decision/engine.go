// Package decision combines sales forecasting, review sentiment and pricing
// rules into the decisions the system takes on behalf of the agents.
package decision

import (
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

type Config struct {
	InventoryThreshold int
	Discount           float64
	Markup             float64
	SentimentCacheTTL  time.Duration
}

func (c Config) withDefaults() Config {
	if c.InventoryThreshold <= 0 {
		c.InventoryThreshold = 100
	}
	if c.Discount <= 0 {
		c.Discount = 0.9
	}
	if c.Markup <= 0 {
		c.Markup = 1.1
	}
	if c.SentimentCacheTTL <= 0 {
		c.SentimentCacheTTL = 10 * time.Minute
	}
	return c
}

type Engine struct {
	cfg       Config
	forecast  *Forecaster
	sentiment *cache.Cache
	logger    zerolog.Logger
}

func New(cfg Config, logger zerolog.Logger) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:       cfg,
		forecast:  NewForecaster(),
		sentiment: cache.New(cfg.SentimentCacheTTL, 2*cfg.SentimentCacheTTL),
		logger:    logger.With().Str("component", "decision").Logger(),
	}
}

func (e *Engine) Config() Config {
	return e.cfg
}

// TrainSalesModel fits the forecasting model on historical observations.
func (e *Engine) TrainSalesModel(features [][]float64, sales []float64) error {
	if err := e.forecast.Train(features, sales); err != nil {
		return err
	}
	e.logger.Debug().Int("samples", len(sales)).Msg("sales model trained")
	return nil
}

func (e *Engine) PredictSales(features [][]float64) ([]float64, error) {
	return e.forecast.Predict(features)
}

func (e *Engine) AnalyzeSentiment(text string) SentimentScores {
	if cached, ok := e.sentiment.Get(text); ok {
		return cached.(SentimentScores)
	}
	scores := PolarityScores(text)
	e.sentiment.Set(text, scores, cache.DefaultExpiration)
	return scores
}
