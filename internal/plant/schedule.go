package plant

import "github.com/dukerupert/plantcare/internal/model"

// DayMillis is one day in epoch milliseconds.
const DayMillis int64 = 86_400_000

// DefaultWateringDays applies when a plant has no positive interval.
const DefaultWateringDays = 7

// IntervalMillis is the watering interval in milliseconds.
func IntervalMillis(days int) int64 {
	if days <= 0 {
		days = DefaultWateringDays
	}
	return int64(days) * DayMillis
}

// Threshold is the earliest time a previously watered plant may be watered
// again: the last third of its interval.
func Threshold(p *model.Plant) int64 {
	return p.NextWateringDate - IntervalMillis(p.WateringDays)/3
}

// CanWater reports whether watering at now is allowed. A plant that has never
// been watered can always be watered.
func CanWater(p *model.Plant, now int64) bool {
	return p.LastWatered == nil || now >= Threshold(p)
}

// RemainingDays is the number of whole days until next, never negative.
func RemainingDays(next, now int64) int64 {
	if next <= now {
		return 0
	}
	return (next - now) / DayMillis
}

// RescheduleDate is the next watering date after changing the interval to
// newDays. Shortening takes effect at once; lengthening never moves the date
// past what was already remaining.
func RescheduleDate(p *model.Plant, newDays int, now int64) int64 {
	days := int64(newDays)
	if remaining := RemainingDays(p.NextWateringDate, now); remaining > 0 && remaining < days {
		days = remaining
	}
	return now + days*DayMillis
}

// IsDue reports whether the plant needs water at now.
func IsDue(p *model.Plant, now int64) bool {
	return p.NextWateringDate <= now
}
