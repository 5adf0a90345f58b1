package model

// Household is a group of users sharing plants. JoinCode is a 6-digit string.
type Household struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	JoinCode string   `json:"joinCode"`
	Members  []string `json:"members"`
}

// HasMember reports whether userID is in Members.
func (h *Household) HasMember(userID string) bool {
	for _, m := range h.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Activity is one watering event on a household plant. Append-only.
type Activity struct {
	ID        string `json:"id"`
	PlantName string `json:"plantName"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}
