package prompts

import (
	"fmt"
	"strings"

	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

const (
	persona     = "You are AgroVision AI"
	bulletRule  = "Each point MUST start with a '-'. DO NOT write paragraphs."
	notAnalyzed = "Not analyzed"
	riskValues  = "'High', 'Moderate', or 'Low'"
)

// FertilizerPrices are the per-kilogram INR prices the cost estimate assumes.
var FertilizerPrices = map[string]float64{
	"N":  65,
	"P":  50,
	"K":  40,
	"S":  25,
	"Zn": 150,
	"Fe": 120,
}

// withGrounding attaches map grounding at loc. The output schema moves into the
// prompt because grounded requests cannot also carry a server-side schema.
func withGrounding(req *llm.Request, loc models.Location) *llm.Request {
	req.Grounding = &loc
	if req.Schema != nil {
		req.SchemaInPrompt = true
		req.Prompt = strings.TrimRight(req.Prompt, "\n ") + "\n\n" + llm.SchemaInstruction(req.Schema)
	}
	return req
}

// LeafAnalysis asks for a diagnosis of a single leaf photo.
func LeafAnalysis(img llm.InlineImage) *llm.Request {
	prompt := persona + `, an expert agronomist specializing in Indian agriculture. Analyze this plant leaf image. Identify the primary disease OR nutrient deficiency. Prioritize common diseases first, but also consider deficiencies for Sulphur, Zinc, and Iron. Also, estimate the percentage of the leaf area that is infected. Respond ONLY with a valid JSON object following this exact schema:
{
  "diagnosis": "string (name of the disease or deficiency, e.g., 'Septoria leaf spot', 'Zinc deficiency', or 'Healthy')",
  "confidence": "number (0.0 to 1.0)",
  "severity": "string ('Mild', 'Moderate', 'Severe', or 'Unknown')",
  "infectedAreaPercent": "number (0 to 100, estimate of the percentage of the leaf area that is visibly affected. If healthy, this should be 0.)",
  "explanation": "string (A concise, easy-to-understand explanation in 2-3 bullet points. Each point MUST start with a '-'. Do not write a paragraph.)",
  "chemicalTreatment": "string (Specific chemical recommendations in bullet points. Each point MUST start with a '-'. Mention products available in India.)",
  "organicTreatment": "string (Specific organic recommendations in bullet points. Each point MUST start with a '-'. Suggest practices suitable for Indian conditions.)"
}`

	return &llm.Request{
		Capability: llm.CapabilityLeafAnalysis,
		Tier:       llm.TierFast,
		Prompt:     prompt,
		Images:     []llm.InlineImage{img},
		Modality:   llm.ModalityText,
	}
}

// HeatmapColor is the fill the heatmap contract demands: pure red at 50% opacity.
const HeatmapColor = "#FF0000"

// Heatmap asks the image model for a segmentation overlay of the diseased areas.
func Heatmap(img llm.InlineImage) *llm.Request {
	prompt := `You are a pixel-perfect image segmentation model. Your SOLE function is to generate a precise, filled heatmap of diseased areas on a plant leaf.

**ABSOLUTE RULES (FAILURE TO COMPLY WILL INVALIDATE THE RESULT):**

1.  **SINGLE LEAF:** Only segment the single most prominent leaf in the image. Ignore every other leaf, stem or object.
2.  **IDENTIFY & FILL:** You must identify ALL pixels on that leaf corresponding to disease symptoms (lesions, spots, blight, rust). You will then create a new PNG image of the exact same dimensions as the input.
3.  **FILL, DO NOT OUTLINE:** You MUST completely FILL the identified symptom areas. Outlining, bordering, or tracing the edges of symptoms is STRICTLY FORBIDDEN. The output must be solid, filled shapes.
4.  **EXACT COLOR:** The fill color MUST be a semi-transparent red with the hex code ` + "`" + HeatmapColor + "`" + ` and 50% opacity. No other color is acceptable.
5.  **TRANSPARENT BACKGROUND:** All non-diseased parts of the image (healthy leaf tissue, background, stems) MUST be 100% transparent.
6.  **PIXEL PRECISION:** The boundaries of the filled shapes must exactly match the boundaries of the symptoms.
7.  **IGNORE ARTIFACTS:** Ignore image noise, shadows, water droplets, glare and highlights. Only color genuine disease symptoms.

Your final output must be ONLY the raw PNG image. Do not provide any text, explanation, or code.`

	return &llm.Request{
		Capability: llm.CapabilityHeatmap,
		Tier:       llm.TierImage,
		Prompt:     prompt,
		Images:     []llm.InlineImage{img},
		Modality:   llm.ModalityImage,
	}
}

func writeSoil(b *strings.Builder, soil models.SoilData) {
	fmt.Fprintf(b, "- Crop: %s\n", soil.Crop)
	fmt.Fprintf(b, "- Nitrogen (N): %v ppm\n", soil.N)
	fmt.Fprintf(b, "- Phosphorus (P): %v ppm\n", soil.P)
	fmt.Fprintf(b, "- Potassium (K): %v ppm\n", soil.K)
	fmt.Fprintf(b, "- Sulphur (S): %v ppm\n", soil.S)
	fmt.Fprintf(b, "- Zinc (Zn): %v ppm\n", soil.Zn)
	fmt.Fprintf(b, "- Iron (Fe): %v ppm\n", soil.Fe)
	fmt.Fprintf(b, "- pH: %v\n", soil.PH)
	fmt.Fprintf(b, "- Field Area: %v hectares\n", soil.Area)
}

func healthStatus(analysis *models.LeafAnalysisResult) (diagnosis, severity string) {
	if analysis == nil {
		return notAnalyzed, notAnalyzed
	}
	return analysis.Diagnosis, string(analysis.Severity)
}

// FertilizerRecommendation asks for a weather-aware nutrient plan. analysis may be nil
// when no leaf has been diagnosed yet.
func FertilizerRecommendation(soil models.SoilData, analysis *models.LeafAnalysisResult, loc models.Location) *llm.Request {
	var b strings.Builder

	b.WriteString(persona + ", a world-class soil scientist and agronomist with expertise in Indian farming conditions.\n")
	b.WriteString("Your task is to generate a precise, weather-aware fertilizer recommendation.\n\n")

	b.WriteString("CRITICAL INSTRUCTIONS:\n")
	b.WriteString("- Use crop-specific nutrient requirement models (e.g., for Wheat, Rice, Maize).\n")
	b.WriteString("- Auto-scale the fertilizer amounts based on the provided field area (kg/ha -> total kg).\n")
	b.WriteString("- The sustainability score should reflect the eco-impact. Warn if nutrient use is excessive or unbalanced.\n")
	b.WriteString("- Adjust the fertilizer plan based on the crop's health. Explain this adjustment in the 'diseaseIntegrationExplanation' field.\n")
	b.WriteString("- Use Google Maps to get up-to-date, local context. Incorporate a short-term (24-48 hour) weather forecast for the user's location and adjust the schedule or amounts for significant weather events (e.g., heavy rain, extreme heat). Explain this adjustment in the 'weatherIntegrationExplanation' field.\n")
	b.WriteString("- ALL descriptive outputs MUST be formatted as concise bullet points. " + bulletRule + "\n\n")

	b.WriteString("User Location:\n")
	fmt.Fprintf(&b, "- Latitude: %v\n- Longitude: %v\n\n", loc.Latitude, loc.Longitude)

	b.WriteString("Soil Data:\n")
	writeSoil(&b, soil)
	b.WriteString("\n")

	diagnosis, severity := healthStatus(analysis)
	b.WriteString("Crop Health Status (from image analysis):\n")
	fmt.Fprintf(&b, "- Diagnosis: %s\n- Severity: %s\n\n", diagnosis, severity)

	b.WriteString("Response Instructions:\n")
	b.WriteString("1.  reasoning: 2-4 bullet points explaining the general recommendation based SOLELY on the soil data and crop type.\n")
	b.WriteString("2.  diseaseIntegrationExplanation: 1-2 bullet points explaining how the 'Crop Health Status' influenced the nutrient amounts. If the plant is healthy, state that no disease-related adjustments were needed.\n")
	b.WriteString("3.  weatherIntegrationExplanation: 1-2 bullet points explaining how the short-term weather forecast influenced the application plan. If no significant weather is expected, state that no weather-related adjustments were needed.\n")
	b.WriteString("4.  nutrientAmounts: required N, P, K, S, Zn, Fe in kg/ha.\n")
	b.WriteString("5.  totalFertilizer: total N, P, K, S, Zn, Fe for the entire field area (nutrientAmounts multiplied by the field area).\n")
	b.WriteString("6.  applicationSchedule: a simple schedule as a list of bullet points.\n")
	fmt.Fprintf(&b, "7.  totalCost: estimated total cost in INR (₹). Assume: N=₹%v/kg, P=₹%v/kg, K=₹%v/kg, S=₹%v/kg, Zn=₹%v/kg, Fe=₹%v/kg.\n",
		FertilizerPrices["N"], FertilizerPrices["P"], FertilizerPrices["K"], FertilizerPrices["S"], FertilizerPrices["Zn"], FertilizerPrices["Fe"])
	b.WriteString("8.  sustainabilityScore.score: a score from 0 to 100.\n")
	b.WriteString("9.  sustainabilityScore.feedback: 1-2 bullet points explaining the score.\n")
	b.WriteString("10. smartPurchaseLinks: 2-3 bullet points on where to purchase these fertilizers in India, such as local agricultural cooperatives, government fertilizer depots or major online agri-tech platforms. Do not provide actual URLs.\n")

	return withGrounding(&llm.Request{
		Capability: llm.CapabilityFertilizer,
		Tier:       llm.TierFast,
		Prompt:     b.String(),
		Schema:     SchemaFor[models.FertilizerRecommendation](),
		SchemaName: "fertilizer_recommendation",
		Modality:   llm.ModalityText,
	}, loc)
}

// WeatherAdvisory asks for a 3-day farming advisory. crop may be empty.
func WeatherAdvisory(loc models.Location, crop models.CropType) *llm.Request {
	var b strings.Builder

	b.WriteString(persona + ", an expert agricultural meteorologist specializing in Indian climate zones.\n")
	fmt.Fprintf(&b, "The user's location is latitude: %v, longitude: %v.\n", loc.Latitude, loc.Longitude)
	b.WriteString("Use Google Maps data to understand the local geography and typical weather patterns to provide an accurate 3-day farming advisory.\n\n")

	if crop != "" {
		fmt.Fprintf(&b, "The user is specifically growing %s. Tailor the impact analysis and all recommendations specifically for this crop.\n\n", crop)
	} else {
		b.WriteString("Analyze the potential impact of this weather on typical crops in the region (focus on Indian crops).\n\n")
	}

	b.WriteString("Instructions:\n")
	b.WriteString("1.  Create a brief, human-readable summary of the upcoming weather.\n")
	b.WriteString("2.  Provide key metrics: Temperature (min/max range in Celsius), Precipitation (chance and amount in mm), and Wind (speed in km/h and direction).\n")
	b.WriteString("3.  For the 'impact' field, analyze the potential impact of this weather on crops as 2-3 concise bullet points. " + bulletRule + "\n")
	b.WriteString("4.  For each field in 'recommendations' (irrigation, fertilizer, pesticide), provide specific, actionable advice as 1-2 concise bullet points. " + bulletRule + " Be practical (e.g., \"Delay nitrogen fertilizer application if heavy rain is expected to prevent runoff.\").\n")

	return withGrounding(&llm.Request{
		Capability: llm.CapabilityWeatherAdvisory,
		Tier:       llm.TierFast,
		Prompt:     b.String(),
		Schema:     SchemaFor[models.WeatherAdvisoryData](),
		SchemaName: "weather_advisory",
		Modality:   llm.ModalityText,
	}, loc)
}

// YieldPrediction asks for the expected yield and the loss caused by the diagnosis.
func YieldPrediction(soil models.SoilData, analysis models.LeafAnalysisResult, loc models.Location) *llm.Request {
	var b strings.Builder

	b.WriteString(persona + ", a senior agronomist specializing in crop yield forecasting for Indian agriculture.\n")
	b.WriteString("Based on the provided soil data, crop health analysis, and location, predict the potential yield and impact of the identified issue.\n")
	fmt.Fprintf(&b, "Use Google Maps data to find typical yields for this crop (%s) in this region of India (latitude: %v, longitude: %v) to ground your 'expectedYield' prediction.\n\n",
		soil.Crop, loc.Latitude, loc.Longitude)

	b.WriteString("Soil and Crop Data:\n")
	writeSoil(&b, soil)
	b.WriteString("\n")

	b.WriteString("Crop Health Analysis:\n")
	fmt.Fprintf(&b, "- Diagnosis: %s\n- Severity: %s\n\n", analysis.Diagnosis, analysis.Severity)

	b.WriteString("Instructions:\n")
	b.WriteString("1.  State the crop being analyzed.\n")
	fmt.Fprintf(&b, "2.  Estimate the expected yield in '%s' for this crop under ideal conditions, considering its type and typical yields in India.\n", models.YieldUnitTonsPerHectare)
	fmt.Fprintf(&b, "3.  Estimate the potential percentage of yield loss due to the diagnosed issue and its severity. If the plant is '%s', this should be 0.\n", models.DiagnosisHealthy)
	fmt.Fprintf(&b, "4.  Explain the reason for the potential loss in a single, concise sentence. If the plant is '%s', state '%s'.\n", models.DiagnosisHealthy, models.NoLossReason)
	b.WriteString("5.  Provide a list of 2-3 concise, actionable mitigation strategies to minimize the predicted loss.\n")

	return withGrounding(&llm.Request{
		Capability: llm.CapabilityYieldPrediction,
		Tier:       llm.TierFast,
		Prompt:     b.String(),
		Schema:     SchemaFor[models.YieldPredictionData](),
		SchemaName: "yield_prediction",
		Modality:   llm.ModalityText,
	}, loc)
}

// FinancialData asks for a market price summary of one crop.
func FinancialData(crop string) *llm.Request {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert agricultural market analyst for India. Provide a concise financial and market price summary for the following crop: %q.\n", crop)
	b.WriteString("Focus on current, actionable information relevant to a farmer.\n\n")

	b.WriteString("Instructions:\n")
	b.WriteString("1.  currentPrice: the most relevant current price, such as the government's Minimum Support Price (MSP), with its unit (e.g., \"per quintal\") and source.\n")
	b.WriteString("2.  priceTrend: 'Rising', 'Stable', or 'Falling'.\n")
	b.WriteString("3.  marketInsights: 2-3 concise, actionable bullet points for the farmer. " + bulletRule + "\n")
	b.WriteString("4.  historicalData: prices for the last 3 months to visualize a trend.\n")
	b.WriteString("5.  revenueContribution: the projected revenue contribution of the selected crop compared to 2-3 other common Indian staple crops (like Wheat, Rice), assuming a diversified farm. The percentages must add up to 100 and the selected crop comes first.\n\n")
	b.WriteString("Respond ONLY with a valid JSON object.")

	return &llm.Request{
		Capability: llm.CapabilityFinancialData,
		Tier:       llm.TierFast,
		Prompt:     b.String(),
		Schema:     SchemaFor[models.FinancialData](),
		SchemaName: "financial_data",
		Modality:   llm.ModalityText,
	}
}

// PestPredictionCount is how many pest threats the prediction prompt asks for.
const PestPredictionCount = 5

// PestPredictions asks for the most likely pest threats near loc for crop.
func PestPredictions(loc models.Location, crop models.CropType) *llm.Request {
	var b strings.Builder

	fmt.Fprintf(&b, "You are an expert entomologist for Indian agriculture. Based on the user's location (latitude: %v, longitude: %v) and their crop (%s), predict the %d most likely pest threats right now.\n",
		loc.Latitude, loc.Longitude, crop, PestPredictionCount)
	b.WriteString("Use Google Maps data to find recent, local pest reports or agricultural advisories to make your predictions more accurate and location-specific.\n")
	b.WriteString("Consider common pests for that crop, seasonality, and general regional risks in India.\n")
	fmt.Fprintf(&b, "Return a JSON array of exactly %d items. Each risk must be one of %s.\n", PestPredictionCount, riskValues)

	return withGrounding(&llm.Request{
		Capability: llm.CapabilityPestPredictions,
		Tier:       llm.TierFast,
		Prompt:     b.String(),
		Schema:     SchemaFor[models.PestList](),
		SchemaName: "pest_predictions",
		Modality:   llm.ModalityText,
	}, loc)
}

// PestInformation asks for the detail card of a named pest.
func PestInformation(name string) *llm.Request {
	var b strings.Builder

	b.WriteString(persona + ", an expert entomologist and plant pathologist specializing in Indian agriculture.\n")
	fmt.Fprintf(&b, "Provide detailed information about the following pest: %q.\n\n", name)
	b.WriteString("Instruction: For all descriptive text fields ('description', 'damage', 'prevention', 'organicControl', 'chemicalControl'), the output MUST be a string of concise bullet points. " + bulletRule + "\n")
	fmt.Fprintf(&b, "The 'risk' field must be one of %s.\n\n", riskValues)
	b.WriteString("Respond ONLY with a valid JSON object.")

	return &llm.Request{
		Capability: llm.CapabilityPestInfo,
		Tier:       llm.TierFast,
		Prompt:     b.String(),
		Schema:     SchemaFor[models.PestInfo](),
		SchemaName: "pest_info",
		Modality:   llm.ModalityText,
	}
}

// CommunityCaption asks for a short thank-you for a user-contributed, labeled leaf photo.
func CommunityCaption(img llm.InlineImage, label string) *llm.Request {
	var b strings.Builder

	fmt.Fprintf(&b, "%s. A user has contributed an image of a plant leaf and labeled it as %q.\n", persona, label)
	b.WriteString("1. Briefly thank the user for their contribution.\n")
	b.WriteString("2. Based on the image, provide a short, encouraging confirmation. If the label seems plausible, agree with it. If it's unclear, just say it's a valuable addition for analysis.\n")
	fmt.Fprintf(&b, "Example response: \"Thank you for contributing! This looks like a classic case of %s. This data helps improve our AI for everyone.\"\n", label)
	b.WriteString("Keep the response to 1-2 sentences. Reply with plain text only.")

	return &llm.Request{
		Capability: llm.CapabilityCommunityCaption,
		Tier:       llm.TierFast,
		Prompt:     b.String(),
		Images:     []llm.InlineImage{img},
		Modality:   llm.ModalityText,
	}
}
