package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// SessionContext is everything the chat assistant knows about the user's farm and
// where they are in the app. A change to any field restarts the conversation.
type SessionContext struct {
	Analysis       *LeafAnalysisResult       `json:"analysis,omitempty"`
	Soil           *SoilData                 `json:"soil,omitempty"`
	Recommendation *FertilizerRecommendation `json:"recommendation,omitempty"`
	Prediction     *YieldPredictionData      `json:"prediction,omitempty"`
	ActiveView     View                      `json:"activeView"`
	Language       Language                  `json:"language"`
}

// HasReport reports whether the context carries a complete agro-report.
func (c SessionContext) HasReport() bool {
	return c.Analysis != nil && c.Soil != nil && c.Recommendation != nil
}

// Fingerprint returns a stable digest of the canonical JSON encoding of c.
// Two contexts with equal fingerprints produce the same system instruction.
func (c SessionContext) Fingerprint() string {
	data, err := json.Marshal(c)
	if err != nil {
		// Only unsupported float values (NaN, Inf) can fail; treat them as a distinct context.
		data = []byte(err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
