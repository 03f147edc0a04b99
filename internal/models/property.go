package models

// Property is one structured listing row after field normalization.
type Property struct {
	ID         string   `json:"property_id"`
	Location   string   `json:"location"`
	BHK        float64  `json:"bhk"`
	Price      float64  `json:"price"`
	Furnishing string   `json:"furnishing"`
	Amenities  []string `json:"amenities"`
	Nearby     []string `json:"nearby"`
}
