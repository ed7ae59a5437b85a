package prompts

import (
	"fmt"
	"strings"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

var viewActivity = map[models.View]string{
	models.ViewDashboard: "The user is currently on the 'Analytics Dashboard', preparing to upload a leaf image and enter soil data.",
	models.ViewReport:    "The user is currently viewing their generated 'Agro-Report'. They might have questions about the results.",
	models.ViewPest:      "The user is currently looking at the 'Pest Prediction Map'. They might ask about pest control or risks in their area.",
	models.ViewWeather:   "The user is on the 'Weather Advisory' page. They may have questions about how the forecast impacts their farm.",
	models.ViewYield:     "The user is viewing the 'Yield Predictor' based on their latest analysis. They may ask about improving their yield.",
	models.ViewCommunity: "The user is in the 'Community Hub', possibly contributing data or viewing the leaderboard.",
	models.ViewBot:       "The user is currently interacting with you in the 'Agro Bot' chat.",
}

const (
	unknownActivity = "The user's current context is unknown."
	noReport        = "The user has not generated an Agro-Report yet. Answer their general farming questions. You can gently encourage them to perform an analysis for more personalized advice based on their specific conditions."
)

// ActivityContext describes what the user is doing on view.
func ActivityContext(view models.View) string {
	if s, ok := viewActivity[view]; ok {
		return s
	}
	return unknownActivity
}

// ReportContext summarizes the agro-report the assistant may draw on.
func ReportContext(sc models.SessionContext) string {
	if !sc.HasReport() {
		return noReport
	}

	a, soil, rec := sc.Analysis, sc.Soil, sc.Recommendation

	var b strings.Builder
	b.WriteString("You have access to the user's latest Agro-Report. Use this information to answer their questions.\n")
	b.WriteString("Here is the data:\n")
	fmt.Fprintf(&b, "- Leaf Health Summary: Diagnosis: %s, Severity: %s.\n", a.Diagnosis, a.Severity)
	fmt.Fprintf(&b, "- Soil Profile: Crop: %s, pH: %v, N: %vppm, P: %vppm, K: %vppm, S: %vppm, Zn: %vppm, Fe: %vppm.\n",
		soil.Crop, soil.PH, soil.N, soil.P, soil.K, soil.S, soil.Zn, soil.Fe)
	fmt.Fprintf(&b, "- Fertilizer Prescription: %s. Recommended rates (kg/ha) - N: %v, P: %v, K: %v.\n",
		strings.TrimSpace(rec.Reasoning), rec.NutrientAmounts.N, rec.NutrientAmounts.P, rec.NutrientAmounts.K)
	fmt.Fprintf(&b, "- Treatments: Chemical: %s, Organic: %s.", strings.TrimSpace(a.ChemicalTreatment), strings.TrimSpace(a.OrganicTreatment))

	if p := sc.Prediction; p != nil {
		fmt.Fprintf(&b, "\n- Yield Forecast: Forecasted net yield is %.2f %s. This is based on a potential loss of %v%% due to %s.",
			p.NetYield(), p.YieldUnit, p.PotentialLossPercent, p.LossReason)
	}
	return b.String()
}

// DeriveSystemInstruction builds the assistant's system instruction from the session context.
// It is deterministic: equal contexts produce identical instructions.
func DeriveSystemInstruction(sc models.SessionContext) string {
	lang := LanguageName(sc.Language)

	var b strings.Builder
	b.WriteString("You are Agro Bot, a friendly and knowledgeable AI assistant for farmers, specializing in Indian agriculture.\n\n")
	fmt.Fprintf(&b, "**CRITICAL INSTRUCTION:** The user has selected **%s** as their language of communication. It is a STRICT and ABSOLUTE requirement that you respond ONLY in **%s**. For example, if the user asks a question in another language, your entire response must still be in %s. Do not use any other language for any part of your response.\n\n", lang, lang, lang)
	b.WriteString("Your goal is to provide concise, practical, and helpful advice on farming, crop diseases, soil health, and sustainable practices. Use simple language.\n\n")
	fmt.Fprintf(&b, "Current User Context: %s\n\n", ActivityContext(sc.ActiveView))
	b.WriteString(ReportContext(sc))
	return b.String()
}
