package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stock is a company seen at least once on the feed.
// Created Unclassified, company refreshed on re-sighting, never deleted.
type Stock struct {
	ID                     int64     `json:"id"`
	Ticker                 string    `json:"ticker"`
	Company                string    `json:"company"`
	Category               string    `json:"category"`
	ClassificationAttempts int       `json:"classification_attempts"`
	CreatedAt              time.Time `json:"created_at"`
}

// StockSnapshot is the state of a stock in a given game week.
// Unique per (StockID, Week).
type StockSnapshot struct {
	StockID         int64           `json:"stock_id"`
	Week            int             `json:"week"`
	RatingFrom      string          `json:"rating_from"`
	RatingTo        string          `json:"rating_to"`
	TargetFrom      decimal.Decimal `json:"target_from"`
	TargetTo        decimal.Decimal `json:"target_to"`
	Price           decimal.Decimal `json:"price"`
	Action          string          `json:"action"`
	MarketSentiment Sentiment       `json:"market_sentiment,omitempty"`
	SignalStrength  float64         `json:"signal_strength"`
	NewsTitle       string          `json:"news_title"`
	NewsSummary     string          `json:"news_summary"`
	CreatedAt       time.Time       `json:"created_at"`
}

// RatingRecord pairs a feed item with its generated week-1 snapshot.
// Snapshot.StockID is filled in by the store after the stock upsert.
type RatingRecord struct {
	Ticker   string
	Company  string
	Snapshot StockSnapshot
}

// Baseline is a stock joined with its week-1 snapshot
type Baseline struct {
	Stock    Stock
	Snapshot StockSnapshot
}

// CategoryAssignment is one row of a batch category update
type CategoryAssignment struct {
	StockID  int64
	Category string
}

// WeekForecast is the model's market outlook for one simulated week
type WeekForecast struct {
	Week            int       `json:"week"`
	MarketSentiment Sentiment `json:"market_sentiment"`
	SignalStrength  float64   `json:"signal_strength"`
}

const (
	// BaselineWeek holds the snapshot derived from the feed
	BaselineWeek = 1
	// FirstSimulatedWeek .. LastSimulatedWeek are produced by the simulator
	FirstSimulatedWeek = 2
	LastSimulatedWeek  = 5
)
