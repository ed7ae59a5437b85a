package models

// WeatherRecommendations holds per-activity guidance, each 1-2 bullet points.
type WeatherRecommendations struct {
	Irrigation string `json:"irrigation" jsonschema_description:"Recommendations in 1-2 bullet points."`
	Fertilizer string `json:"fertilizer" jsonschema_description:"Recommendations in 1-2 bullet points."`
	Pesticide  string `json:"pesticide" jsonschema_description:"Recommendations in 1-2 bullet points."`
}

// WeatherAdvisoryData is a short-range forecast with farming guidance.
type WeatherAdvisoryData struct {
	Summary         string                 `json:"summary"`
	Temperature     string                 `json:"temperature"`
	Precipitation   string                 `json:"precipitation"`
	Wind            string                 `json:"wind"`
	Impact          string                 `json:"impact" jsonschema_description:"Impact analysis in 2-3 bullet points."`
	Recommendations WeatherRecommendations `json:"recommendations"`
}

func (w *WeatherAdvisoryData) Validate() error {
	if blank(w.Summary) {
		return invalid("WeatherAdvisoryData", "summary", "is empty")
	}
	rec := w.Recommendations
	if blank(rec.Irrigation) && blank(rec.Fertilizer) && blank(rec.Pesticide) {
		return invalid("WeatherAdvisoryData", "recommendations", "are all empty")
	}
	return nil
}
