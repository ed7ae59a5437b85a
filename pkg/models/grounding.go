package models

// SourceLink is a cited page or place.
type SourceLink struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

// GroundingChunk is a citation returned alongside a location-grounded answer.
type GroundingChunk struct {
	Web  *SourceLink `json:"web,omitempty"`
	Maps *SourceLink `json:"maps,omitempty"`
}

// Valid reports whether the chunk carries at least one citation.
func (g GroundingChunk) Valid() bool {
	return g.Web != nil || g.Maps != nil
}

// Grounded pairs a decoded answer with the citations the provider returned for it.
type Grounded[T any] struct {
	Data    T                `json:"data"`
	Sources []GroundingChunk `json:"groundingChunks,omitempty"`
}
