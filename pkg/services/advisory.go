package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agrovision-ai/agrovision-engine/pkg/apperrors"
	"github.com/agrovision-ai/agrovision-engine/pkg/llm"
	"github.com/agrovision-ai/agrovision-engine/pkg/logging"
	"github.com/agrovision-ai/agrovision-engine/pkg/metrics"
	"github.com/agrovision-ai/agrovision-engine/pkg/models"
	"github.com/agrovision-ai/agrovision-engine/pkg/prompts"
	"github.com/agrovision-ai/agrovision-engine/pkg/retry"
	"github.com/agrovision-ai/agrovision-engine/pkg/stores"
)

// DefaultRequestTimeout bounds a single provider attempt.
const DefaultRequestTimeout = 45 * time.Second

// Precondition messages shown to the user.
const (
	MsgSelectImage         = "Please select an image file first."
	MsgInvalidImageType    = "Please upload a JPEG, PNG or WebP image."
	MsgLocationUnavailable = "Could not retrieve location. Please enable location services."
	MsgAnalysisRequired    = "Please analyze a leaf image first."
	MsgRecommendationFirst = "Please generate a fertilizer recommendation first."
	MsgCropRequired        = "Please select a supported crop."
	MsgPestNameRequired    = "Please choose a pest."
	MsgLabelRequired       = "Please upload an image and select a diagnosis label."
)

// LeafReport is a diagnosis with its optional heatmap overlay.
type LeafReport struct {
	Analysis *models.LeafAnalysisResult `json:"analysis"`
	Heatmap  *llm.InlineImage           `json:"heatmap,omitempty"`
}

// FieldReport combines the fertilizer plan with the supplementary yield forecast.
// YieldError is set when the forecast was attempted and failed.
type FieldReport struct {
	Recommendation *models.FertilizerRecommendation            `json:"recommendation"`
	Yield          *models.Grounded[models.YieldPredictionData] `json:"yield,omitempty"`
	YieldError     string                                      `json:"yieldError,omitempty"`
}

// AdvisoryService is the request façade: one method per capability. Every error it
// returns is a classified *llm.Error whose Message can be shown directly.
type AdvisoryService interface {
	AnalyzeLeaf(ctx context.Context, img llm.InlineImage) (*models.LeafAnalysisResult, error)
	GenerateHeatmap(ctx context.Context, img llm.InlineImage) (*llm.InlineImage, error)
	AnalyzeLeafWithHeatmap(ctx context.Context, img llm.InlineImage) (*LeafReport, error)
	GetFertilizerRecommendation(ctx context.Context, soil models.SoilData, analysis *models.LeafAnalysisResult, loc *models.Location) (*models.FertilizerRecommendation, error)
	GetWeatherAdvisory(ctx context.Context, loc *models.Location, crop string) (*models.Grounded[models.WeatherAdvisoryData], error)
	GetYieldPrediction(ctx context.Context, soil models.SoilData, analysis *models.LeafAnalysisResult, loc *models.Location) (*models.Grounded[models.YieldPredictionData], error)
	GetFinancialMarketData(ctx context.Context, crop string) (*models.FinancialData, error)
	GetPestPredictions(ctx context.Context, loc *models.Location, crop string) (*models.Grounded[[]models.PestOnMap], error)
	GetPestInformation(ctx context.Context, name string) (*models.PestInfo, error)
	GetCommunityContributionResponse(ctx context.Context, img llm.InlineImage, label string) (string, error)
	AnalyzeField(ctx context.Context, soil models.SoilData, analysis *models.LeafAnalysisResult, loc *models.Location) (*FieldReport, error)
	FindNearbyStores(ctx context.Context, loc *models.Location, rec *models.FertilizerRecommendation) ([]models.NearbyStore, error)
}

// AdvisoryConfig tunes the façade. Zero values select the defaults.
type AdvisoryConfig struct {
	// Retry is the rate-limit policy; nil uses retry.LLMConfig().
	Retry          *retry.Config
	RequestTimeout time.Duration
	Pool           llm.WorkerPoolConfig
}

type advisoryService struct {
	provider  llm.Provider
	directory *stores.Directory
	retryCfg  retry.Config
	timeout   time.Duration
	pool      *llm.WorkerPool
	metrics   *metrics.Recorder
	logger    *zap.Logger
}

// NewAdvisoryService creates the request façade over provider.
func NewAdvisoryService(
	provider llm.Provider,
	directory *stores.Directory,
	cfg AdvisoryConfig,
	recorder *metrics.Recorder,
	logger *zap.Logger,
) AdvisoryService {
	retryCfg := retry.LLMConfig()
	if cfg.Retry != nil {
		retryCfg = cfg.Retry
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &advisoryService{
		provider:  provider,
		directory: directory,
		retryCfg:  *retryCfg,
		timeout:   cfg.RequestTimeout,
		pool:      llm.NewWorkerPool(cfg.Pool, logger),
		metrics:   recorder,
		logger:    logger.Named("advisory"),
	}
}

var _ AdvisoryService = (*advisoryService)(nil)

// generate runs one provider request inside the rate-limit retry loop, with a
// bounded timeout per attempt. Errors come back classified.
func (s *advisoryService) generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	cfg := s.retryCfg
	cfg.ShouldRetry = llm.IsRateLimit
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.metrics.IncRetry(string(req.Capability))
		s.logger.Warn("Rate limited by AI provider, retrying",
			append(llm.LogFields(ctx),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", cfg.MaxRetries),
				zap.Duration("delay", delay),
				zap.String("error", logging.SanitizeError(err)))...)
	}

	return retry.DoWithResult(ctx, &cfg, func() (*llm.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.provider.Generate(callCtx, req)
		if err != nil {
			return nil, llm.ClassifyError(err)
		}
		return resp, nil
	})
}

// call sends req, decodes the reply and records the outcome.
func call[T any](ctx context.Context, s *advisoryService, req *llm.Request, decode func(*llm.Response) (T, error)) (T, *llm.Response, error) {
	ctx = llm.WithCapability(ctx, req.Capability)
	start := time.Now()

	var out T
	resp, err := s.generate(ctx, req)
	if err == nil {
		out, err = decode(resp)
	}

	if err != nil {
		classified := llm.ClassifyError(err)
		s.metrics.ObserveRequest(string(req.Capability), string(classified.Type), time.Since(start))
		s.logger.Error("AI request failed",
			append(llm.LogFields(ctx),
				zap.String("error_type", string(classified.Type)),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("error", logging.SanitizeError(classified)))...)
		var zero T
		return zero, resp, classified
	}

	s.metrics.ObserveRequest(string(req.Capability), metrics.OutcomeOK, time.Since(start))
	s.logger.Debug("AI request completed",
		append(llm.LogFields(ctx), zap.Duration("elapsed", time.Since(start)))...)
	return out, resp, nil
}

func sourcesOf(resp *llm.Response) []models.GroundingChunk {
	if resp == nil {
		return nil
	}
	var out []models.GroundingChunk
	for _, c := range resp.Sources {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return out
}

// Preconditions

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

func checkImage(img llm.InlineImage) error {
	if len(img.Data) == 0 {
		return llm.NewPreconditionError(MsgSelectImage, nil)
	}
	if !allowedImageTypes[strings.ToLower(img.MIMEType)] {
		return llm.NewPreconditionError(MsgInvalidImageType, nil)
	}
	return nil
}

func checkLocation(loc *models.Location) (models.Location, error) {
	if loc == nil {
		return models.Location{}, llm.NewPreconditionError(MsgLocationUnavailable, nil)
	}
	if err := loc.Validate(); err != nil {
		return models.Location{}, llm.NewPreconditionError(validationMessage(err), errors.Join(err, apperrors.ErrInvalidInput))
	}
	return *loc, nil
}

func checkSoil(soil *models.SoilData) error {
	if c, ok := models.ParseCropType(string(soil.Crop)); ok {
		soil.Crop = c
	}
	if err := soil.Validate(); err != nil {
		return llm.NewPreconditionError(validationMessage(err), errors.Join(err, apperrors.ErrInvalidInput))
	}
	return nil
}

func checkCrop(crop string) (models.CropType, error) {
	c, ok := models.ParseCropType(crop)
	if !ok {
		return "", llm.NewPreconditionError(MsgCropRequired, nil)
	}
	return c, nil
}

// validationMessage turns a model validation failure into user-facing text.
func validationMessage(err error) string {
	var ve *models.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	if ve.Field == "area" {
		return ve.Reason
	}
	return fmt.Sprintf("Invalid %s: %s", ve.Field, ve.Reason)
}

// Capabilities

func (s *advisoryService) AnalyzeLeaf(ctx context.Context, img llm.InlineImage) (*models.LeafAnalysisResult, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	out, _, err := call(ctx, s, prompts.LeafAnalysis(img), llm.Decode[models.LeafAnalysisResult])
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateHeatmap fails hard when the model returns no image; that failure is not retried.
func (s *advisoryService) GenerateHeatmap(ctx context.Context, img llm.InlineImage) (*llm.InlineImage, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	out, _, err := call(ctx, s, prompts.Heatmap(img), llm.ExtractImage)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeLeafWithHeatmap diagnoses the leaf and, unless it is healthy, adds a heatmap.
// A heatmap failure is logged and dropped; the diagnosis still stands.
func (s *advisoryService) AnalyzeLeafWithHeatmap(ctx context.Context, img llm.InlineImage) (*LeafReport, error) {
	analysis, err := s.AnalyzeLeaf(ctx, img)
	if err != nil {
		return nil, err
	}

	report := &LeafReport{Analysis: analysis}
	if analysis.IsHealthy() {
		return report, nil
	}

	heatmap, err := s.GenerateHeatmap(ctx, img)
	if err != nil {
		s.logger.Warn("Heatmap generation failed; returning diagnosis without overlay",
			zap.String("diagnosis", analysis.Diagnosis),
			zap.String("error_type", string(llm.GetErrorType(err))))
		return report, nil
	}
	report.Heatmap = heatmap
	return report, nil
}

// GetFertilizerRecommendation returns a plan whose field totals are always
// the per-hectare amounts multiplied by the field area.
func (s *advisoryService) GetFertilizerRecommendation(
	ctx context.Context,
	soil models.SoilData,
	analysis *models.LeafAnalysisResult,
	loc *models.Location,
) (*models.FertilizerRecommendation, error) {
	where, err := checkLocation(loc)
	if err != nil {
		return nil, err
	}
	if err := checkSoil(&soil); err != nil {
		return nil, err
	}

	rec, _, err := call(ctx, s, prompts.FertilizerRecommendation(soil, analysis, where), llm.Decode[models.FertilizerRecommendation])
	if err != nil {
		return nil, err
	}

	if err := rec.CheckTotals(soil.Area, models.DefaultTotalsTolerance); err != nil {
		s.logger.Debug("Correcting fertilizer totals from per-hectare amounts",
			zap.Float64("area_ha", soil.Area),
			zap.String("mismatch", err.Error()))
	}
	rec.ScaleTotals(soil.Area)
	return &rec, nil
}

// GetWeatherAdvisory returns a grounded 3-day advisory. crop may be empty.
func (s *advisoryService) GetWeatherAdvisory(ctx context.Context, loc *models.Location, crop string) (*models.Grounded[models.WeatherAdvisoryData], error) {
	where, err := checkLocation(loc)
	if err != nil {
		return nil, err
	}
	var cropType models.CropType
	if strings.TrimSpace(crop) != "" {
		if cropType, err = checkCrop(crop); err != nil {
			return nil, err
		}
	}

	advisory, resp, err := call(ctx, s, prompts.WeatherAdvisory(where, cropType), llm.Decode[models.WeatherAdvisoryData])
	if err != nil {
		return nil, err
	}
	return &models.Grounded[models.WeatherAdvisoryData]{Data: advisory, Sources: sourcesOf(resp)}, nil
}

// GetYieldPrediction requires a prior diagnosis. A healthy crop always reports zero loss.
func (s *advisoryService) GetYieldPrediction(
	ctx context.Context,
	soil models.SoilData,
	analysis *models.LeafAnalysisResult,
	loc *models.Location,
) (*models.Grounded[models.YieldPredictionData], error) {
	if analysis == nil {
		return nil, llm.NewPreconditionError(MsgAnalysisRequired, nil)
	}
	where, err := checkLocation(loc)
	if err != nil {
		return nil, err
	}
	if err := checkSoil(&soil); err != nil {
		return nil, err
	}

	prediction, resp, err := call(ctx, s, prompts.YieldPrediction(soil, *analysis, where), llm.Decode[models.YieldPredictionData])
	if err != nil {
		return nil, err
	}

	prediction.YieldUnit = models.YieldUnitTonsPerHectare
	if prediction.Crop == "" {
		prediction.Crop = string(soil.Crop)
	}
	if analysis.IsHealthy() {
		prediction.ApplyHealthy()
	}
	return &models.Grounded[models.YieldPredictionData]{Data: prediction, Sources: sourcesOf(resp)}, nil
}

func (s *advisoryService) GetFinancialMarketData(ctx context.Context, crop string) (*models.FinancialData, error) {
	cropType, err := checkCrop(crop)
	if err != nil {
		return nil, err
	}
	data, _, err := call(ctx, s, prompts.FinancialData(string(cropType)), llm.Decode[models.FinancialData])
	if err != nil {
		return nil, err
	}
	if data.CropName == "" {
		data.CropName = string(cropType)
	}
	return &data, nil
}

func (s *advisoryService) GetPestPredictions(ctx context.Context, loc *models.Location, crop string) (*models.Grounded[[]models.PestOnMap], error) {
	where, err := checkLocation(loc)
	if err != nil {
		return nil, err
	}
	cropType, err := checkCrop(crop)
	if err != nil {
		return nil, err
	}

	pests, resp, err := call(ctx, s, prompts.PestPredictions(where, cropType), llm.Decode[models.PestList])
	if err != nil {
		return nil, err
	}
	if len(pests) != prompts.PestPredictionCount {
		s.logger.Debug("Unexpected pest prediction count",
			zap.Int("expected", prompts.PestPredictionCount),
			zap.Int("got", len(pests)))
	}
	return &models.Grounded[[]models.PestOnMap]{Data: []models.PestOnMap(pests), Sources: sourcesOf(resp)}, nil
}

// GetPestInformation falls back to the requested name when the model omits it.
func (s *advisoryService) GetPestInformation(ctx context.Context, name string) (*models.PestInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, llm.NewPreconditionError(MsgPestNameRequired, nil)
	}
	info, _, err := call(ctx, s, prompts.PestInformation(name), llm.Decode[models.PestInfo])
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(info.Name) == "" {
		info.Name = name
	}
	return &info, nil
}

func (s *advisoryService) GetCommunityContributionResponse(ctx context.Context, img llm.InlineImage, label string) (string, error) {
	if err := checkImage(img); err != nil {
		return "", err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return "", llm.NewPreconditionError(MsgLabelRequired, nil)
	}
	text, _, err := call(ctx, s, prompts.CommunityCaption(img, label), llm.ExtractText)
	return text, err
}

// AnalyzeField requests the fertilizer plan and, when a diagnosis exists, the yield
// forecast concurrently. Only the recommendation is required; a yield failure is
// reported in the result.
func (s *advisoryService) AnalyzeField(
	ctx context.Context,
	soil models.SoilData,
	analysis *models.LeafAnalysisResult,
	loc *models.Location,
) (*FieldReport, error) {
	if _, err := checkLocation(loc); err != nil {
		return nil, err
	}
	if err := checkSoil(&soil); err != nil {
		return nil, err
	}

	items := []llm.WorkItem[any]{{
		ID: "recommendation",
		Execute: func(ctx context.Context) (any, error) {
			return s.GetFertilizerRecommendation(ctx, soil, analysis, loc)
		},
	}}
	if analysis != nil {
		items = append(items, llm.WorkItem[any]{
			ID: "yield",
			Execute: func(ctx context.Context) (any, error) {
				return s.GetYieldPrediction(ctx, soil, analysis, loc)
			},
		})
	}

	results := llm.Process(ctx, s.pool, items, nil)

	if err := results[0].Err; err != nil {
		return nil, llm.ClassifyError(err)
	}
	report := &FieldReport{Recommendation: results[0].Result.(*models.FertilizerRecommendation)}

	if len(results) > 1 {
		if err := results[1].Err; err != nil {
			report.YieldError = llm.UserMessage(err)
			s.logger.Warn("Yield prediction unavailable for field report",
				zap.String("error_type", string(llm.GetErrorType(err))))
		} else {
			report.Yield = results[1].Result.(*models.Grounded[models.YieldPredictionData])
		}
	}
	return report, nil
}

// FindNearbyStores lists stores near loc that sell what rec calls for.
func (s *advisoryService) FindNearbyStores(ctx context.Context, loc *models.Location, rec *models.FertilizerRecommendation) ([]models.NearbyStore, error) {
	where, err := checkLocation(loc)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, llm.NewPreconditionError(MsgRecommendationFirst, nil)
	}
	if s.directory == nil {
		return []models.NearbyStore{}, nil
	}
	return s.directory.Nearby(where, rec), nil
}
