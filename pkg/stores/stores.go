// Package stores finds fertilizer retailers near the user that sell what a
// recommendation calls for.
package stores

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"slices"
	"sort"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/agrovision-ai/agrovision-engine/pkg/models"
)

//go:embed stores.yaml
var defaultDirectory []byte

const (
	// EarthRadiusKm is the mean Earth radius used by Distance.
	EarthRadiusKm = 6371.0

	// DefaultRadiusKm is the search radius when none is configured.
	DefaultRadiusKm = 10.0
)

// Directory is an immutable list of stores. Safe for concurrent use.
type Directory struct {
	stores   []models.FertilizerStore
	radiusKm float64
	logger   *zap.Logger
}

// NewDirectory wraps an in-memory store list. A non-positive radius uses DefaultRadiusKm.
func NewDirectory(stores []models.FertilizerStore, radiusKm float64, logger *zap.Logger) *Directory {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	return &Directory{
		stores:   stores,
		radiusKm: radiusKm,
		logger:   logger.Named("stores"),
	}
}

// Load reads the store directory from path, or the built-in directory when path is empty.
func Load(path string, radiusKm float64, logger *zap.Logger) (*Directory, error) {
	data := defaultDirectory
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read store directory: %w", err)
		}
	}

	stores, err := parse(data)
	if err != nil {
		return nil, err
	}

	d := NewDirectory(stores, radiusKm, logger)
	d.logger.Info("Loaded store directory",
		zap.Int("stores", len(stores)),
		zap.Float64("radius_km", d.radiusKm),
		zap.Bool("builtin", path == ""))
	return d, nil
}

func parse(data []byte) ([]models.FertilizerStore, error) {
	var stores []models.FertilizerStore
	if err := yaml.Unmarshal(data, &stores); err != nil {
		return nil, fmt.Errorf("parse store directory: %w", err)
	}
	for i, s := range stores {
		loc := models.Location{Latitude: s.Lat, Longitude: s.Lon}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("store %d (%s): %w", i, s.Name, err)
		}
	}
	return stores, nil
}

// Stores returns a copy of every store in the directory.
func (d *Directory) Stores() []models.FertilizerStore {
	return slices.Clone(d.stores)
}

// RadiusKm is the configured search radius.
func (d *Directory) RadiusKm() float64 {
	return d.radiusKm
}

// Distance is the great-circle distance in kilometres between a and b (Haversine).
func Distance(a, b models.Location) float64 {
	dLat := toRadians(b.Latitude - a.Latitude)
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Latitude))*math.Cos(toRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// RequiredProducts maps the nutrients a recommendation calls for to product categories.
// Phosphorus is satisfied by either SSP or DAP.
func RequiredProducts(rec *models.FertilizerRecommendation) []models.FertilizerProduct {
	if rec == nil {
		return nil
	}
	amounts := rec.NutrientAmounts

	var products []models.FertilizerProduct
	if amounts.N > 0 {
		products = append(products, models.ProductUrea)
	}
	if amounts.P > 0 {
		products = append(products, models.ProductSSP, models.ProductDAP)
	}
	if amounts.K > 0 {
		products = append(products, models.ProductMOP)
	}
	if amounts.S > 0 || amounts.Zn > 0 || amounts.Fe > 0 {
		products = append(products, models.ProductMicronutrients)
	}
	return products
}

// MapLink returns a Google Maps link for a coordinate.
func MapLink(lat, lon float64) string {
	return fmt.Sprintf("https://maps.google.com/?q=%v,%v", lat, lon)
}

// Nearby returns stores within the search radius of loc that sell at least one
// product the recommendation needs, nearest first.
func (d *Directory) Nearby(loc models.Location, rec *models.FertilizerRecommendation) []models.NearbyStore {
	required := RequiredProducts(rec)
	if len(required) == 0 {
		return []models.NearbyStore{}
	}

	result := []models.NearbyStore{}
	for _, s := range d.stores {
		dist := Distance(loc, models.Location{Latitude: s.Lat, Longitude: s.Lon})
		if dist > d.radiusKm || !sellsAny(s, required) {
			continue
		}
		result = append(result, models.NearbyStore{
			FertilizerStore: s,
			Distance:        dist,
			MapLink:         MapLink(s.Lat, s.Lon),
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Distance < result[j].Distance
	})

	d.logger.Debug("Nearby store search",
		zap.Int("matched", len(result)),
		zap.Int("required_products", len(required)))
	return result
}

func sellsAny(s models.FertilizerStore, required []models.FertilizerProduct) bool {
	for _, p := range required {
		if slices.Contains(s.Products, p) {
			return true
		}
	}
	return false
}
