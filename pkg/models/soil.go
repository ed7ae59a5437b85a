package models

import "strings"

// CropType is one of the crops the advisory prompts are tuned for.
type CropType string

const (
	CropWheat     CropType = "Wheat"
	CropRice      CropType = "Rice"
	CropMaize     CropType = "Maize"
	CropSugarcane CropType = "Sugarcane"
	CropCotton    CropType = "Cotton"
	CropSoybean   CropType = "Soybean"
	CropMustard   CropType = "Mustard"
	CropTomato    CropType = "Tomato"
	CropPotato    CropType = "Potato"
)

// AllCrops lists the supported crops in display order.
var AllCrops = []CropType{
	CropWheat, CropRice, CropMaize, CropSugarcane, CropCotton,
	CropSoybean, CropMustard, CropTomato, CropPotato,
}

// ParseCropType matches a crop name case-insensitively.
func ParseCropType(s string) (CropType, bool) {
	for _, c := range AllCrops {
		if strings.EqualFold(strings.TrimSpace(s), string(c)) {
			return c, true
		}
	}
	return "", false
}

// SoilData holds one soil test for a field. Nutrient readings are in ppm, area in hectares.
type SoilData struct {
	Crop CropType `json:"crop"`
	N    float64  `json:"n"`
	P    float64  `json:"p"`
	K    float64  `json:"k"`
	PH   float64  `json:"ph"`
	S    float64  `json:"s"`
	Zn   float64  `json:"zn"`
	Fe   float64  `json:"fe"`
	Area float64  `json:"area"`
}

// Validate checks the soil readings before they are sent anywhere.
func (s *SoilData) Validate() error {
	if _, ok := ParseCropType(string(s.Crop)); !ok {
		return invalid("SoilData", "crop", "unsupported crop %q", s.Crop)
	}
	if s.Area <= 0 {
		return invalid("SoilData", "area", "Please enter a valid area in hectares.")
	}
	if !inRange(s.PH, 0, 14) {
		return invalid("SoilData", "ph", "pH %.2f is outside 0-14", s.PH)
	}
	readings := []struct {
		field string
		value float64
	}{{"n", s.N}, {"p", s.P}, {"k", s.K}, {"s", s.S}, {"zn", s.Zn}, {"fe", s.Fe}}
	for _, r := range readings {
		if r.value < 0 {
			return invalid("SoilData", r.field, "reading cannot be negative")
		}
	}
	return nil
}

// Location is a WGS84 coordinate, usually the user's geolocation fix.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects coordinates outside the valid latitude/longitude ranges.
func (l *Location) Validate() error {
	if !inRange(l.Latitude, -90, 90) {
		return invalid("Location", "latitude", "%.6f is outside -90..90", l.Latitude)
	}
	if !inRange(l.Longitude, -180, 180) {
		return invalid("Location", "longitude", "%.6f is outside -180..180", l.Longitude)
	}
	return nil
}
