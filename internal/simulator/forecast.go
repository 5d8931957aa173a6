package simulator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/llm"
)

const forecastWeeks = contracts.LastSimulatedWeek - contracts.FirstSimulatedWeek + 1

type forecastItem struct {
	Week            int      `json:"week" validate:"gte=2,lte=5"`
	MarketSentiment string   `json:"market_sentiment" validate:"required,oneof=positive neutral negative"`
	SignalStrength  *float64 `json:"signal_strength" validate:"required,gte=0,lte=1"`
}

func forecastPrompt(b contracts.Baseline) string {
	return fmt.Sprintf(`You are an API that only returns JSON.

Given the stock %s (%s), with a current price of %s and a rating of %s, simulate the market behavior for the next %d weeks.

For each week, return:
- week: number (%d to %d)
- market_sentiment: "positive", "neutral" or "negative"
- signal_strength: number (between 0.0 and 1.0)

Respond ONLY with a valid JSON array like:
[
  {"week": 2, "market_sentiment": "positive", "signal_strength": 0.82},
  {"week": 3, "market_sentiment": "neutral", "signal_strength": 0.45},
  {"week": 4, "market_sentiment": "negative", "signal_strength": 0.72},
  {"week": 5, "market_sentiment": "positive", "signal_strength": 0.66}
]`,
		b.Stock.Company, b.Stock.Ticker,
		contracts.FormatMoney(b.Snapshot.Price), orDefault(b.Snapshot.RatingTo, "n/a"),
		forecastWeeks, contracts.FirstSimulatedWeek, contracts.LastSimulatedWeek)
}

// ParseForecast decodes and validates a model forecast. It returns exactly
// one entry per simulated week, sorted by week.
func ParseForecast(raw string, validate *validator.Validate) ([]contracts.WeekForecast, error) {
	var items []forecastItem
	if err := json.Unmarshal([]byte(llm.StripCodeFence(raw)), &items); err != nil {
		return nil, fmt.Errorf("invalid forecast JSON: %w", err)
	}

	if len(items) != forecastWeeks {
		return nil, fmt.Errorf("forecast has %d entries, want %d", len(items), forecastWeeks)
	}

	seen := make(map[int]bool, len(items))
	out := make([]contracts.WeekForecast, 0, len(items))

	for i, item := range items {
		item.MarketSentiment = strings.ToLower(strings.TrimSpace(item.MarketSentiment))
		if err := validate.Struct(item); err != nil {
			return nil, fmt.Errorf("forecast entry %d: %w", i, err)
		}
		if seen[item.Week] {
			return nil, fmt.Errorf("forecast repeats week %d", item.Week)
		}
		seen[item.Week] = true

		out = append(out, contracts.WeekForecast{
			Week:            item.Week,
			MarketSentiment: contracts.Sentiment(item.MarketSentiment),
			SignalStrength:  *item.SignalStrength,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Week < out[j].Week })
	return out, nil
}
