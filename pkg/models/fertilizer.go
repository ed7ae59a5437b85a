package models

import "math"

// NutrientAmounts holds one value per nutrient. Units depend on context:
// kg/ha for per-hectare amounts, kg for field totals.
type NutrientAmounts struct {
	N  float64 `json:"n"`
	P  float64 `json:"p"`
	K  float64 `json:"k"`
	S  float64 `json:"s"`
	Zn float64 `json:"zn"`
	Fe float64 `json:"fe"`
}

// Scale returns every amount multiplied by factor.
func (a NutrientAmounts) Scale(factor float64) NutrientAmounts {
	return NutrientAmounts{
		N:  a.N * factor,
		P:  a.P * factor,
		K:  a.K * factor,
		S:  a.S * factor,
		Zn: a.Zn * factor,
		Fe: a.Fe * factor,
	}
}

func (a NutrientAmounts) fields() []struct {
	name  string
	value float64
} {
	return []struct {
		name  string
		value float64
	}{{"n", a.N}, {"p", a.P}, {"k", a.K}, {"s", a.S}, {"zn", a.Zn}, {"fe", a.Fe}}
}

// SustainabilityScore rates the eco-impact of a fertilizer plan.
type SustainabilityScore struct {
	Score    float64 `json:"score" jsonschema_description:"Score from 0 to 100"`
	Feedback string  `json:"feedback" jsonschema_description:"Feedback in 1-2 bullet points."`
}

// FertilizerRecommendation is the nutrient plan for one field.
type FertilizerRecommendation struct {
	Reasoning                     string              `json:"reasoning" jsonschema_description:"Reasoning in 2-4 bullet points."`
	DiseaseIntegrationExplanation string              `json:"diseaseIntegrationExplanation" jsonschema_description:"Explanation of disease-based adjustments in 1-2 bullet points."`
	WeatherIntegrationExplanation string              `json:"weatherIntegrationExplanation" jsonschema_description:"Explanation of weather-based adjustments in 1-2 bullet points."`
	NutrientAmounts               NutrientAmounts     `json:"nutrientAmounts" jsonschema_description:"Required nutrients in kg/ha."`
	TotalFertilizer               NutrientAmounts     `json:"totalFertilizer" jsonschema_description:"Total kg of each nutrient for the entire field."`
	ApplicationSchedule           string              `json:"applicationSchedule" jsonschema_description:"Schedule in bullet points."`
	TotalCost                     float64             `json:"totalCost" jsonschema_description:"Estimated total cost in INR."`
	SustainabilityScore           SustainabilityScore `json:"sustainabilityScore"`
	SmartPurchaseLinks            string              `json:"smartPurchaseLinks" jsonschema_description:"Purchase suggestions in 2-3 bullet points. No URLs."`
}

// DefaultTotalsTolerance is the relative slack allowed between reported totals and amounts × area.
const DefaultTotalsTolerance = 0.01

func (r *FertilizerRecommendation) Validate() error {
	if !inRange(r.SustainabilityScore.Score, 0, 100) {
		return invalid("FertilizerRecommendation", "sustainabilityScore.score", "%.2f is outside [0,100]", r.SustainabilityScore.Score)
	}
	for _, f := range r.NutrientAmounts.fields() {
		if f.value < 0 {
			return invalid("FertilizerRecommendation", "nutrientAmounts."+f.name, "cannot be negative")
		}
	}
	if r.TotalCost < 0 {
		return invalid("FertilizerRecommendation", "totalCost", "cannot be negative")
	}
	return nil
}

// CheckTotals verifies totalFertilizer[x] ≈ nutrientAmounts[x] × area for every nutrient.
// tolerance is relative to the expected total, with an absolute floor of 0.01 kg.
func (r *FertilizerRecommendation) CheckTotals(area, tolerance float64) error {
	expected := r.NutrientAmounts.Scale(area).fields()
	for i, got := range r.TotalFertilizer.fields() {
		want := expected[i].value
		slack := math.Max(math.Abs(want)*tolerance, 0.01)
		if math.Abs(got.value-want) > slack {
			return invalid("FertilizerRecommendation", "totalFertilizer."+got.name, "%.3f kg does not match %.3f kg/ha × %.3f ha", got.value, r.amount(i), area)
		}
	}
	return nil
}

func (r *FertilizerRecommendation) amount(i int) float64 {
	return r.NutrientAmounts.fields()[i].value
}

// ScaleTotals sets totalFertilizer to nutrientAmounts × area.
func (r *FertilizerRecommendation) ScaleTotals(area float64) {
	r.TotalFertilizer = r.NutrientAmounts.Scale(area)
}
