package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
	"github.com/agrovision-ai/agrovision-engine/pkg/services"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// FieldRequest carries the soil test, the optional leaf diagnosis and the user's location.
type FieldRequest struct {
	Soil     models.SoilData            `json:"soil"`
	Analysis *models.LeafAnalysisResult `json:"analysis,omitempty"`
	Location *models.Location           `json:"location,omitempty"`
}

// LocatedCropRequest is used by the weather and pest prediction endpoints.
type LocatedCropRequest struct {
	Location *models.Location `json:"location,omitempty"`
	Crop     string           `json:"crop"`
}

// CommunityRequest is a labeled photo shared with the community.
type CommunityRequest struct {
	ImagePayload
	Label string `json:"label"`
}

// StoresRequest asks for stores near a location that sell what a recommendation needs.
type StoresRequest struct {
	Location       *models.Location                 `json:"location,omitempty"`
	Recommendation *models.FertilizerRecommendation `json:"recommendation,omitempty"`
}

// LeafReportResponse is a diagnosis with its optional heatmap overlay.
type LeafReportResponse struct {
	Analysis *models.LeafAnalysisResult `json:"analysis"`
	Heatmap  *ImagePayload              `json:"heatmap,omitempty"`
}

// CaptionResponse wraps the community caption text.
type CaptionResponse struct {
	Text string `json:"text"`
}

// ============================================================================
// Handler
// ============================================================================

// AdvisoryHandler exposes the advisory capabilities over HTTP.
type AdvisoryHandler struct {
	service services.AdvisoryService
	logger  *zap.Logger
}

// NewAdvisoryHandler creates a new advisory handler.
func NewAdvisoryHandler(service services.AdvisoryService, logger *zap.Logger) *AdvisoryHandler {
	return &AdvisoryHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the advisory handler's routes on the given mux.
func (h *AdvisoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/leaf/analyze", h.AnalyzeLeaf)
	mux.HandleFunc("POST /api/leaf/heatmap", h.GenerateHeatmap)
	mux.HandleFunc("POST /api/leaf/report", h.LeafReport)
	mux.HandleFunc("POST /api/fertilizer/recommendation", h.FertilizerRecommendation)
	mux.HandleFunc("POST /api/field/analyze", h.AnalyzeField)
	mux.HandleFunc("POST /api/weather/advisory", h.WeatherAdvisory)
	mux.HandleFunc("POST /api/yield/prediction", h.YieldPrediction)
	mux.HandleFunc("GET /api/market/{crop}", h.MarketData)
	mux.HandleFunc("POST /api/pests/predictions", h.PestPredictions)
	mux.HandleFunc("GET /api/pests/{name}", h.PestInformation)
	mux.HandleFunc("POST /api/community/contribution", h.CommunityContribution)
	mux.HandleFunc("POST /api/stores/nearby", h.NearbyStores)
}

// respond writes data, or the classified error when err is set.
func (h *AdvisoryHandler) respond(w http.ResponseWriter, data any, err error) {
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	writeOK(w, h.logger, http.StatusOK, data)
}

// AnalyzeLeaf handles POST /api/leaf/analyze
func (h *AdvisoryHandler) AnalyzeLeaf(w http.ResponseWriter, r *http.Request) {
	var req ImagePayload
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	img, ok := decodeImage(w, req, h.logger)
	if !ok {
		return
	}
	result, err := h.service.AnalyzeLeaf(r.Context(), img)
	h.respond(w, result, err)
}

// GenerateHeatmap handles POST /api/leaf/heatmap
func (h *AdvisoryHandler) GenerateHeatmap(w http.ResponseWriter, r *http.Request) {
	var req ImagePayload
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	img, ok := decodeImage(w, req, h.logger)
	if !ok {
		return
	}
	heatmap, err := h.service.GenerateHeatmap(r.Context(), img)
	h.respond(w, NewImagePayload(heatmap), err)
}

// LeafReport handles POST /api/leaf/report
func (h *AdvisoryHandler) LeafReport(w http.ResponseWriter, r *http.Request) {
	var req ImagePayload
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	img, ok := decodeImage(w, req, h.logger)
	if !ok {
		return
	}
	report, err := h.service.AnalyzeLeafWithHeatmap(r.Context(), img)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	h.respond(w, LeafReportResponse{Analysis: report.Analysis, Heatmap: NewImagePayload(report.Heatmap)}, nil)
}

// FertilizerRecommendation handles POST /api/fertilizer/recommendation
func (h *AdvisoryHandler) FertilizerRecommendation(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	rec, err := h.service.GetFertilizerRecommendation(r.Context(), req.Soil, req.Analysis, req.Location)
	h.respond(w, rec, err)
}

// AnalyzeField handles POST /api/field/analyze
func (h *AdvisoryHandler) AnalyzeField(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	report, err := h.service.AnalyzeField(r.Context(), req.Soil, req.Analysis, req.Location)
	h.respond(w, report, err)
}

// WeatherAdvisory handles POST /api/weather/advisory
func (h *AdvisoryHandler) WeatherAdvisory(w http.ResponseWriter, r *http.Request) {
	var req LocatedCropRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	advisory, err := h.service.GetWeatherAdvisory(r.Context(), req.Location, req.Crop)
	h.respond(w, advisory, err)
}

// YieldPrediction handles POST /api/yield/prediction
func (h *AdvisoryHandler) YieldPrediction(w http.ResponseWriter, r *http.Request) {
	var req FieldRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	prediction, err := h.service.GetYieldPrediction(r.Context(), req.Soil, req.Analysis, req.Location)
	h.respond(w, prediction, err)
}

// MarketData handles GET /api/market/{crop}
func (h *AdvisoryHandler) MarketData(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.GetFinancialMarketData(r.Context(), r.PathValue("crop"))
	h.respond(w, data, err)
}

// PestPredictions handles POST /api/pests/predictions
func (h *AdvisoryHandler) PestPredictions(w http.ResponseWriter, r *http.Request) {
	var req LocatedCropRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	pests, err := h.service.GetPestPredictions(r.Context(), req.Location, req.Crop)
	h.respond(w, pests, err)
}

// PestInformation handles GET /api/pests/{name}
func (h *AdvisoryHandler) PestInformation(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.GetPestInformation(r.Context(), r.PathValue("name"))
	h.respond(w, info, err)
}

// CommunityContribution handles POST /api/community/contribution
func (h *AdvisoryHandler) CommunityContribution(w http.ResponseWriter, r *http.Request) {
	var req CommunityRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	img, ok := decodeImage(w, req.ImagePayload, h.logger)
	if !ok {
		return
	}
	text, err := h.service.GetCommunityContributionResponse(r.Context(), img, req.Label)
	h.respond(w, CaptionResponse{Text: text}, err)
}

// NearbyStores handles POST /api/stores/nearby
func (h *AdvisoryHandler) NearbyStores(w http.ResponseWriter, r *http.Request) {
	var req StoresRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	found, err := h.service.FindNearbyStores(r.Context(), req.Location, req.Recommendation)
	h.respond(w, found, err)
}
