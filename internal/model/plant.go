package model

// Plant is a tracked plant. Exactly one of OwnerID (private plant) and
// HouseholdID (shared plant) is set. Dates are epoch milliseconds.
type Plant struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	CommonName       *string  `json:"commonName"`
	Confidence       *float64 `json:"confidence"`
	GbifURL          *string  `json:"gbifUrl"`
	ImageURL         *string  `json:"imageUrl"`
	OwnerID          *string  `json:"ownerId"`
	HouseholdID      *string  `json:"householdId"`
	WateringDays     int      `json:"wateringDays"`
	NextWateringDate int64    `json:"nextWateringDate"`
	LastWatered      *int64   `json:"lastWatered"`
	TimesWatered     int      `json:"timesWatered"`
	CreatedAt        int64    `json:"createdAt"`
}

// IsShared reports whether the plant belongs to a household.
func (p *Plant) IsShared() bool {
	return p.HouseholdID != nil && *p.HouseholdID != ""
}

// PlantCareInfo is a row of the static care reference table.
type PlantCareInfo struct {
	Name         string `json:"name"`
	CommonName   string `json:"commonName"`
	WateringDays int    `json:"wateringDays"`
	Sunlight     string `json:"sunlight"`
	OxygenOutput string `json:"oxygenOutput,omitempty"`
}
