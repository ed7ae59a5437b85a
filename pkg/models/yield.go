package models

const (
	// YieldUnitTonsPerHectare is the unit every prediction is reported in. The model's
	// own spelling of the unit is not trusted and gets overwritten.
	YieldUnitTonsPerHectare = "tons/hectare"

	// NoLossReason is the loss reason reported for a healthy crop.
	NoLossReason = "No loss expected from disease or deficiency."
)

// YieldPredictionData is a forecasted harvest for one crop.
type YieldPredictionData struct {
	Crop                 string   `json:"crop"`
	ExpectedYield        float64  `json:"expectedYield" jsonschema_description:"Expected yield under ideal conditions in tons/hectare."`
	YieldUnit            string   `json:"yieldUnit" jsonschema:"enum=tons/hectare"`
	PotentialLossPercent float64  `json:"potentialLossPercent" jsonschema_description:"Potential yield loss percentage (0 to 100)."`
	LossReason           string   `json:"lossReason"`
	MitigationAdvice     []string `json:"mitigationAdvice"`
}

// NetYield is the expected yield after the potential loss is applied.
func (y *YieldPredictionData) NetYield() float64 {
	return y.ExpectedYield * (1 - y.PotentialLossPercent/100)
}

// ApplyHealthy forces the zero-loss path used for healthy crops.
func (y *YieldPredictionData) ApplyHealthy() {
	y.PotentialLossPercent = 0
	y.LossReason = NoLossReason
}

func (y *YieldPredictionData) Validate() error {
	if y.ExpectedYield < 0 {
		return invalid("YieldPredictionData", "expectedYield", "cannot be negative")
	}
	if !inRange(y.PotentialLossPercent, 0, 100) {
		return invalid("YieldPredictionData", "potentialLossPercent", "%.2f is outside [0,100]", y.PotentialLossPercent)
	}
	return nil
}
