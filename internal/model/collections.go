package model

// Document collection names.
const (
	CollUsers      = "users"
	CollHouseholds = "households"
	CollPlants     = "plants"
	CollActivities = "activities" // sub-collection of a household
)
