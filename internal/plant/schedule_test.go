package plant

import (
	"testing"

	"github.com/dukerupert/plantcare/internal/model"
)

const t0 int64 = 1_700_000_000_000

func int64Ptr(v int64) *int64 { return &v }

func TestIntervalMillis(t *testing.T) {
	tests := []struct {
		days int
		want int64
	}{
		{3, 3 * DayMillis},
		{7, 7 * DayMillis},
		{0, 7 * DayMillis},
		{-2, 7 * DayMillis},
	}
	for _, tt := range tests {
		if got := IntervalMillis(tt.days); got != tt.want {
			t.Errorf("IntervalMillis(%d) = %d, want %d", tt.days, got, tt.want)
		}
	}
}

func TestCanWaterBoundary(t *testing.T) {
	// A 9-day interval puts the threshold exactly 3 days before the due date.
	p := &model.Plant{WateringDays: 9, NextWateringDate: t0 + 9*DayMillis, LastWatered: int64Ptr(t0)}
	threshold := t0 + 6*DayMillis
	if got := Threshold(p); got != threshold {
		t.Fatalf("Threshold = %d, want %d", got, threshold)
	}

	if !CanWater(p, threshold) {
		t.Error("watering exactly at the threshold must be allowed")
	}
	if CanWater(p, threshold-1) {
		t.Error("watering one millisecond before the threshold must be rejected")
	}
	if !CanWater(p, t0+20*DayMillis) {
		t.Error("overdue plant must be waterable")
	}
}

func TestCanWaterSevenDayInterval(t *testing.T) {
	// One third of seven days is 2d8h, so the guard opens at T+4d16h.
	p := &model.Plant{WateringDays: 7, NextWateringDate: t0 + 7*DayMillis, LastWatered: int64Ptr(t0)}
	threshold := t0 + 7*DayMillis - 7*DayMillis/3
	if got := Threshold(p); got != threshold {
		t.Fatalf("Threshold = %d, want %d", got, threshold)
	}
	if threshold != t0+4*DayMillis+16*3_600_000 {
		t.Fatalf("threshold = T+%dms, want T+4d16h", threshold-t0)
	}

	if !CanWater(p, threshold) {
		t.Error("watering exactly at the threshold must be allowed")
	}
	if CanWater(p, threshold-1) {
		t.Error("watering one millisecond before the threshold must be rejected")
	}
	// A flat three days before the due date is still too early.
	if CanWater(p, t0+4*DayMillis) {
		t.Error("T+4d is before the 7-day threshold")
	}
}

func TestCanWaterNeverWatered(t *testing.T) {
	p := &model.Plant{WateringDays: 7, NextWateringDate: t0 + 7*DayMillis}
	if !CanWater(p, t0) {
		t.Error("a never-watered plant can always be watered")
	}
}

func TestCanWaterDefaultInterval(t *testing.T) {
	// Zero days falls back to a 7-day interval for the guard.
	p := &model.Plant{WateringDays: 0, NextWateringDate: t0 + 7*DayMillis, LastWatered: int64Ptr(t0)}
	if got, want := Threshold(p), t0+7*DayMillis-7*DayMillis/3; got != want {
		t.Errorf("Threshold = %d, want %d", got, want)
	}
}

func TestRemainingDays(t *testing.T) {
	tests := []struct {
		name      string
		next, now int64
		want      int64
	}{
		{"overdue", t0 - DayMillis, t0, 0},
		{"due now", t0, t0, 0},
		{"partial day", t0 + DayMillis/2, t0, 0},
		{"two and a half", t0 + 5*DayMillis/2, t0, 2},
		{"exact", t0 + 4*DayMillis, t0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingDays(tt.next, tt.now); got != tt.want {
				t.Errorf("RemainingDays = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRescheduleDate(t *testing.T) {
	p := &model.Plant{WateringDays: 7, NextWateringDate: t0 + 5*DayMillis}

	tests := []struct {
		name    string
		plant   *model.Plant
		newDays int
		want    int64
	}{
		{"shorten takes effect", p, 3, t0 + 3*DayMillis},
		{"lengthen clamps to remaining", p, 10, t0 + 5*DayMillis},
		{"same as remaining", p, 5, t0 + 5*DayMillis},
		{"overdue uses new interval", &model.Plant{WateringDays: 7, NextWateringDate: t0 - DayMillis}, 10, t0 + 10*DayMillis},
		{"less than a day left uses new interval", &model.Plant{WateringDays: 7, NextWateringDate: t0 + DayMillis/2}, 4, t0 + 4*DayMillis},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RescheduleDate(tt.plant, tt.newDays, t0)
			if got != tt.want {
				t.Errorf("RescheduleDate = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRescheduleNeverDefers(t *testing.T) {
	for remaining := int64(1); remaining <= 30; remaining++ {
		p := &model.Plant{WateringDays: 7, NextWateringDate: t0 + remaining*DayMillis}
		for newDays := 1; newDays <= 30; newDays++ {
			got := RescheduleDate(p, newDays, t0)
			if got > p.NextWateringDate {
				t.Fatalf("remaining %d, newDays %d: rescheduled past previous due date", remaining, newDays)
			}
			if got > t0+int64(newDays)*DayMillis {
				t.Fatalf("remaining %d, newDays %d: rescheduled past new interval", remaining, newDays)
			}
		}
	}
}

func TestIsDue(t *testing.T) {
	p := &model.Plant{NextWateringDate: t0}
	if !IsDue(p, t0) {
		t.Error("plant is due at its next watering date")
	}
	if IsDue(p, t0-1) {
		t.Error("plant is not due before its next watering date")
	}
}
