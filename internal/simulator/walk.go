package simulator

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"github.com/wonny/stockgame/internal/contracts"
)

const (
	stepMin    = 0.05
	stepMax    = 0.10
	neutralMax = 0.01
)

var (
	targetUp   = decimal.NewFromFloat(1.05)
	targetDown = decimal.NewFromFloat(0.95)
)

// uniform draws from [lo, hi) rounded to 2 decimals
func uniform(rng *rand.Rand, lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(lo + rng.Float64()*(hi-lo)).Round(2)
}

// Change returns the fractional price move for one week
func Change(sentiment contracts.Sentiment, strength float64, rng *rand.Rand) decimal.Decimal {
	s := decimal.NewFromFloat(strength)

	switch sentiment {
	case contracts.SentimentPositive:
		return s.Mul(uniform(rng, stepMin, stepMax))
	case contracts.SentimentNegative:
		return s.Mul(uniform(rng, stepMin, stepMax)).Neg()
	default:
		return uniform(rng, -neutralMax, neutralMax)
	}
}

// NextPrice applies change to prev: round2(prev × (1 + change))
func NextPrice(prev, change decimal.Decimal) decimal.Decimal {
	return prev.Mul(decimal.NewFromInt(1).Add(change)).Round(2)
}

// TargetFactor is 1.05 when the price rose, 0.95 when it fell, 1 otherwise
func TargetFactor(prev, next decimal.Decimal) decimal.Decimal {
	switch next.Cmp(prev) {
	case 1:
		return targetUp
	case -1:
		return targetDown
	default:
		return decimal.NewFromInt(1)
	}
}

// walker produces successive weeks from a baseline
type walker struct {
	baseline contracts.StockSnapshot
	prev     contracts.StockSnapshot
	company  string
	compound bool
	rng      *rand.Rand
}

func newWalker(b contracts.Baseline, compound bool, rng *rand.Rand) *walker {
	return &walker{
		baseline: b.Snapshot,
		prev:     b.Snapshot,
		company:  b.Stock.Company,
		compound: compound,
		rng:      rng,
	}
}

// next derives the snapshot for f.Week from the previous week only
func (w *walker) next(f contracts.WeekForecast) contracts.StockSnapshot {
	change := Change(f.MarketSentiment, f.SignalStrength, w.rng)
	price := NextPrice(w.prev.Price, change)
	factor := TargetFactor(w.prev.Price, price)

	base := w.baseline
	if w.compound {
		base = w.prev
	}

	snap := contracts.StockSnapshot{
		StockID:         w.baseline.StockID,
		Week:            f.Week,
		RatingFrom:      w.baseline.RatingFrom,
		RatingTo:        w.baseline.RatingTo,
		TargetFrom:      base.TargetFrom.Mul(factor).Round(2),
		TargetTo:        base.TargetTo.Mul(factor).Round(2),
		Price:           price,
		Action:          w.baseline.Action,
		MarketSentiment: f.MarketSentiment,
		SignalStrength:  f.SignalStrength,
	}
	snap.NewsTitle, snap.NewsSummary = weeklyNews(w.company, w.prev.Price, snap)

	w.prev = snap
	return snap
}

// Project computes weeks from forecasts without persisting them
func Project(b contracts.Baseline, forecasts []contracts.WeekForecast, compound bool, rng *rand.Rand) []contracts.StockSnapshot {
	w := newWalker(b, compound, rng)
	out := make([]contracts.StockSnapshot, 0, len(forecasts))
	for _, f := range forecasts {
		out = append(out, w.next(f))
	}
	return out
}
