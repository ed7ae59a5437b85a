package models

// FertilizerProduct is a product category sold by agro stores.
type FertilizerProduct string

const (
	ProductUrea           FertilizerProduct = "Urea"
	ProductSSP            FertilizerProduct = "SSP"
	ProductMOP            FertilizerProduct = "MOP"
	ProductDAP            FertilizerProduct = "DAP"
	ProductMicronutrients FertilizerProduct = "Micronutrients"
)

// FertilizerStore is one entry of the store directory.
type FertilizerStore struct {
	Name        string              `json:"name" yaml:"name"`
	Lat         float64             `json:"lat" yaml:"lat"`
	Lon         float64             `json:"lon" yaml:"lon"`
	Products    []FertilizerProduct `json:"products" yaml:"products"`
	Phone       string              `json:"phone" yaml:"phone"`
	Rating      float64             `json:"rating" yaml:"rating"`
	ReviewCount int                 `json:"reviewCount" yaml:"review_count"`
}

// NearbyStore is a directory entry annotated for a particular user location.
type NearbyStore struct {
	FertilizerStore
	Distance float64 `json:"distance"`
	MapLink  string  `json:"mapLink"`
}
