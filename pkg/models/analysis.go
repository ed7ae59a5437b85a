package models

import "strings"

// Severity of a leaf diagnosis.
type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
	SeverityUnknown  Severity = "Unknown"
)

// DiagnosisHealthy is the diagnosis the leaf prompt asks for when nothing is wrong.
const DiagnosisHealthy = "Healthy"

// LeafAnalysisResult is the diagnosis of a single leaf photo.
// Explanation and treatment fields are bullet-formatted ("- ..." per line).
type LeafAnalysisResult struct {
	Diagnosis           string   `json:"diagnosis" jsonschema_description:"Name of the disease or deficiency, e.g. 'Septoria leaf spot', 'Zinc deficiency' or 'Healthy'"`
	Confidence          float64  `json:"confidence" jsonschema_description:"Confidence between 0.0 and 1.0"`
	Severity            Severity `json:"severity" jsonschema:"enum=Mild,enum=Moderate,enum=Severe,enum=Unknown"`
	InfectedAreaPercent float64  `json:"infectedAreaPercent" jsonschema_description:"Percentage (0 to 100) of the leaf area visibly affected. 0 when healthy."`
	Explanation         string   `json:"explanation" jsonschema_description:"2-3 bullet points. Each point starts with '-'."`
	ChemicalTreatment   string   `json:"chemicalTreatment" jsonschema_description:"Chemical recommendations as bullet points. Mention products available in India."`
	OrganicTreatment    string   `json:"organicTreatment" jsonschema_description:"Organic recommendations as bullet points suited to Indian conditions."`
}

// IsHealthyDiagnosis reports whether a diagnosis string means no disease or deficiency.
func IsHealthyDiagnosis(diagnosis string) bool {
	return strings.EqualFold(strings.TrimSpace(diagnosis), DiagnosisHealthy)
}

// IsHealthy reports whether the leaf was diagnosed as healthy.
func (a *LeafAnalysisResult) IsHealthy() bool {
	return a != nil && IsHealthyDiagnosis(a.Diagnosis)
}

func (a *LeafAnalysisResult) Validate() error {
	if blank(a.Diagnosis) {
		return invalid("LeafAnalysisResult", "diagnosis", "is empty")
	}
	if !inRange(a.Confidence, 0, 1) {
		return invalid("LeafAnalysisResult", "confidence", "%.3f is outside [0,1]", a.Confidence)
	}
	if !oneOf(a.Severity, SeverityMild, SeverityModerate, SeveritySevere, SeverityUnknown) {
		return invalid("LeafAnalysisResult", "severity", "unexpected value %q", a.Severity)
	}
	if !inRange(a.InfectedAreaPercent, 0, 100) {
		return invalid("LeafAnalysisResult", "infectedAreaPercent", "%.2f is outside [0,100]", a.InfectedAreaPercent)
	}
	if a.IsHealthy() && a.InfectedAreaPercent != 0 {
		return invalid("LeafAnalysisResult", "infectedAreaPercent", "must be 0 for a healthy leaf, got %.2f", a.InfectedAreaPercent)
	}
	return nil
}
