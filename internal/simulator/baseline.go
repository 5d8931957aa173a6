package simulator

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/stockgame/internal/contracts"
)

var (
	bandLow  = decimal.NewFromFloat(0.85)
	bandHigh = decimal.NewFromFloat(1.10)
	two      = decimal.NewFromInt(2)
)

// InitialSnapshot builds the week-1 snapshot for a feed event. The price is
// drawn from [0.85, 1.10] × the average of the two targets. StockID is left
// for the store to fill in.
func InitialSnapshot(event contracts.RatingEvent, rng *rand.Rand) (contracts.StockSnapshot, error) {
	from, to, err := parseTargets(event)
	if err != nil {
		return contracts.StockSnapshot{}, err
	}

	avg := from.Add(to).Div(two)
	lo := avg.Mul(bandLow)
	hi := avg.Mul(bandHigh)

	price := avg.Mul(uniform(rng, 0.85, 1.10)).Round(2)
	if price.LessThan(lo) {
		price = lo.RoundCeil(2)
	}
	if price.GreaterThan(hi) {
		price = hi.RoundFloor(2)
	}

	snap := contracts.StockSnapshot{
		Week:       contracts.BaselineWeek,
		RatingFrom: event.RatingFrom,
		RatingTo:   event.RatingTo,
		TargetFrom: from,
		TargetTo:   to,
		Price:      price,
		Action:     event.Action,
		NewsTitle:  recommendationTitle(event.Brokerage),
	}
	snap.NewsSummary = recommendationSummary(event, from, to)

	return snap, nil
}

// parseTargets accepts one missing side and mirrors the other
func parseTargets(event contracts.RatingEvent) (decimal.Decimal, decimal.Decimal, error) {
	from, errFrom := contracts.ParsePrice(event.TargetFrom)
	to, errTo := contracts.ParsePrice(event.TargetTo)

	switch {
	case errFrom == nil && errTo == nil:
		return from, to, nil
	case errFrom != nil && errTo != nil:
		return decimal.Zero, decimal.Zero, fmt.Errorf("no usable target for %s: %w", event.Ticker, errors.Join(errFrom, errTo))
	case errFrom != nil:
		return to, to, nil
	default:
		return from, from, nil
	}
}

func recommendationTitle(brokerage string) string {
	brokerage = strings.TrimSpace(brokerage)
	if brokerage == "" {
		brokerage = "Analysts"
	}
	return "Recommendation by " + brokerage
}

func recommendationSummary(event contracts.RatingEvent, from, to decimal.Decimal) string {
	var b strings.Builder

	who := strings.TrimSpace(event.Brokerage)
	if who == "" {
		who = "An analyst"
	}
	fmt.Fprintf(&b, "%s %s %s (%s).", who, strings.TrimSpace(orDefault(event.Action, "updated")), event.Company, event.Ticker)

	if event.RatingFrom != "" || event.RatingTo != "" {
		fmt.Fprintf(&b, " Rating: %s to %s.", orDefault(event.RatingFrom, "n/a"), orDefault(event.RatingTo, "n/a"))
	}
	fmt.Fprintf(&b, " Price target: %s to %s.", contracts.FormatMoney(from), contracts.FormatMoney(to))

	return b.String()
}

func weeklyNews(company string, prev decimal.Decimal, s contracts.StockSnapshot) (string, string) {
	var verb string
	switch s.Price.Cmp(prev) {
	case 1:
		verb = "gains"
	case -1:
		verb = "slips"
	default:
		verb = "holds steady"
	}

	title := fmt.Sprintf("%s %s in week %d", company, verb, s.Week)
	summary := fmt.Sprintf("Market sentiment is %s (signal %.2f). Price moved from %s to %s; target range now %s to %s.",
		s.MarketSentiment, s.SignalStrength,
		contracts.FormatMoney(prev), contracts.FormatMoney(s.Price),
		contracts.FormatMoney(s.TargetFrom), contracts.FormatMoney(s.TargetTo))

	return title, summary
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
