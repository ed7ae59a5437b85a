package models

import "fmt"

// RiskLevel grades how threatening a pest is.
type RiskLevel string

const (
	RiskHigh     RiskLevel = "High"
	RiskModerate RiskLevel = "Moderate"
	RiskLow      RiskLevel = "Low"
)

func validRisk(r RiskLevel) bool {
	return oneOf(r, RiskHigh, RiskModerate, RiskLow)
}

// PestOnMap is one predicted pest threat near the user.
type PestOnMap struct {
	Name string    `json:"name" jsonschema_description:"Pest name, e.g. 'Aphids'"`
	Risk RiskLevel `json:"risk" jsonschema:"enum=High,enum=Moderate,enum=Low"`
}

func (p *PestOnMap) Validate() error {
	if blank(p.Name) {
		return invalid("PestOnMap", "name", "is empty")
	}
	if !validRisk(p.Risk) {
		return invalid("PestOnMap", "risk", "unexpected value %q", p.Risk)
	}
	return nil
}

// PestList is the decoded array returned by the pest prediction prompt.
type PestList []PestOnMap

func (l PestList) Validate() error {
	for i := range l {
		if err := l[i].Validate(); err != nil {
			return fmt.Errorf("pest %d: %w", i, err)
		}
	}
	return nil
}

// PestInfo is the detail card for a single pest. Descriptive fields are bullet-formatted.
type PestInfo struct {
	Name            string    `json:"name"`
	Description     string    `json:"description" jsonschema_description:"A brief description of the pest in bullet points."`
	Risk            RiskLevel `json:"risk" jsonschema:"enum=High,enum=Moderate,enum=Low" jsonschema_description:"The typical risk level this pest poses to crops."`
	Damage          string    `json:"damage" jsonschema_description:"The damage it causes to plants in bullet points."`
	Prevention      string    `json:"prevention" jsonschema_description:"Key preventative measures in bullet points."`
	OrganicControl  string    `json:"organicControl" jsonschema_description:"Effective organic control methods in bullet points."`
	ChemicalControl string    `json:"chemicalControl" jsonschema_description:"Common chemical control methods or pesticides in India in bullet points."`
}

func (p *PestInfo) Validate() error {
	if !validRisk(p.Risk) {
		return invalid("PestInfo", "risk", "unexpected value %q", p.Risk)
	}
	return nil
}
