package models

import "math"

// PriceTrend is the direction of a crop's market price.
type PriceTrend string

const (
	PriceRising  PriceTrend = "Rising"
	PriceStable  PriceTrend = "Stable"
	PriceFalling PriceTrend = "Falling"
)

// RevenueTolerance is the rounding slack allowed when revenue shares are summed.
const RevenueTolerance = 1.0

type CurrentPrice struct {
	Price  float64 `json:"price"`
	Unit   string  `json:"unit"`
	Source string  `json:"source"`
}

type PricePoint struct {
	Month string  `json:"month"`
	Price float64 `json:"price"`
}

type RevenueShare struct {
	Crop       string  `json:"crop"`
	Percentage float64 `json:"percentage"`
}

// FinancialData is a market snapshot for one crop.
type FinancialData struct {
	CropName            string         `json:"cropName"`
	CurrentPrice        CurrentPrice   `json:"currentPrice"`
	PriceTrend          PriceTrend     `json:"priceTrend" jsonschema:"enum=Rising,enum=Stable,enum=Falling"`
	MarketInsights      string         `json:"marketInsights" jsonschema_description:"Market insights in 2-3 bullet points."`
	HistoricalData      []PricePoint   `json:"historicalData"`
	RevenueContribution []RevenueShare `json:"revenueContribution" jsonschema_description:"Projected revenue contribution compared to other staple crops. The selected crop comes first."`
}

// RevenueTotal sums the revenue contribution percentages.
func (f *FinancialData) RevenueTotal() float64 {
	total := 0.0
	for _, r := range f.RevenueContribution {
		total += r.Percentage
	}
	return total
}

func (f *FinancialData) Validate() error {
	if !oneOf(f.PriceTrend, PriceRising, PriceStable, PriceFalling) {
		return invalid("FinancialData", "priceTrend", "unexpected value %q", f.PriceTrend)
	}
	if f.CurrentPrice.Price < 0 {
		return invalid("FinancialData", "currentPrice.price", "cannot be negative")
	}
	if len(f.RevenueContribution) == 0 {
		return invalid("FinancialData", "revenueContribution", "is empty")
	}
	for _, r := range f.RevenueContribution {
		if !inRange(r.Percentage, 0, 100) {
			return invalid("FinancialData", "revenueContribution", "%s share %.2f is outside [0,100]", r.Crop, r.Percentage)
		}
	}
	if total := f.RevenueTotal(); math.Abs(total-100) > RevenueTolerance {
		return invalid("FinancialData", "revenueContribution", "percentages sum to %.2f, expected 100", total)
	}
	return nil
}
