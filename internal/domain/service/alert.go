package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AlertThresholdPercent 价格变动达到该百分比（绝对值）才产生提醒
const AlertThresholdPercent = 2.0

var (
	hundred   = decimal.NewFromInt(100)
	threshold = decimal.NewFromFloat(AlertThresholdPercent)
)

// IsSignificantMove reports |pct| >= AlertThresholdPercent.
func IsSignificantMove(pct float64) bool {
	return decimal.NewFromFloat(pct).Abs().GreaterThanOrEqual(threshold)
}

// PercentChange returns (next-prev)/prev*100; zero when prev is not positive.
func PercentChange(prev, next float64) float64 {
	p := decimal.NewFromFloat(prev)
	if !p.IsPositive() {
		return 0
	}
	f, _ := decimal.NewFromFloat(next).Sub(p).Div(p).Mul(hundred).Float64()
	return f
}

// MoveColor -1 red, 0 neutral, +1 green (pure decision)
func MoveColor(pct float64) int {
	switch {
	case pct >= AlertThresholdPercent:
		return +1
	case pct <= -AlertThresholdPercent:
		return -1
	default:
		return 0
	}
}

// PriceAlertText builds the title and message of a price alert, e.g.
// "BTC Price Alert" / "BTC has increased by 2.50%".
func PriceAlertText(symbol string, pct float64) (title, message string) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	verb := "increased"
	if pct < 0 {
		verb = "decreased"
	}
	abs := decimal.NewFromFloat(pct).Abs().StringFixed(2)
	return sym + " Price Alert", sym + " has " + verb + " by " + abs + "%"
}

var severeConditions = []string{"thunderstorm", "tornado", "squall", "extreme"}

// SevereWeatherAlert returns the alert text for severe conditions, "" otherwise.
func SevereWeatherAlert(conditions string) string {
	c := strings.ToLower(strings.TrimSpace(conditions))
	for _, s := range severeConditions {
		if strings.Contains(c, s) {
			return "Severe weather: " + strings.TrimSpace(conditions)
		}
	}
	return ""
}
