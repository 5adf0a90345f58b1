// Package plant tracks plants and their watering schedules. A plant is either
// private to its owner or shared by a household.
package plant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/model"
)

// NewPlant is the input to Add. Exactly one of OwnerID and HouseholdID must
// be set.
type NewPlant struct {
	Name         string
	CommonName   *string
	Confidence   *float64
	GbifURL      *string
	ImageURL     *string
	OwnerID      *string
	HouseholdID  *string
	WateringDays int
}

type Manager struct {
	docs   docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(docs docstore.Store, logger *slog.Logger) *Manager {
	return &Manager{
		docs:   docs,
		logger: logger.With("component", "plant"),
		now:    time.Now,
	}
}

func isSet(s *string) bool {
	return s != nil && *s != ""
}

func (m *Manager) Add(ctx context.Context, np NewPlant) (*model.Plant, error) {
	name := strings.TrimSpace(np.Name)
	if name == "" {
		return nil, ErrBlankName
	}
	if np.WateringDays <= 0 {
		return nil, ErrInvalidWateringDays
	}
	if isSet(np.OwnerID) == isSet(np.HouseholdID) {
		return nil, ErrOwnership
	}

	now := m.now().UnixMilli()
	p := &model.Plant{
		ID:               m.docs.NewID(),
		Name:             name,
		CommonName:       np.CommonName,
		Confidence:       np.Confidence,
		GbifURL:          np.GbifURL,
		ImageURL:         np.ImageURL,
		WateringDays:     np.WateringDays,
		NextWateringDate: now + IntervalMillis(np.WateringDays),
		CreatedAt:        now,
	}
	if isSet(np.OwnerID) {
		p.OwnerID = np.OwnerID
	} else {
		p.HouseholdID = np.HouseholdID
	}

	if err := m.docs.Set(ctx, model.CollPlants, p.ID, p); err != nil {
		return nil, fmt.Errorf("add plant: %w", err)
	}
	m.logger.Info("plant added", "plant_id", p.ID, "shared", p.IsShared())
	return p, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*model.Plant, error) {
	snap, err := m.docs.Get(ctx, model.CollPlants, id)
	if err != nil {
		return nil, err
	}
	return decodePlant(snap)
}

func decodePlant(snap *docstore.Snapshot) (*model.Plant, error) {
	var p model.Plant
	if err := snap.DataTo(&p); err != nil {
		return nil, err
	}
	p.ID = snap.ID
	return &p, nil
}

func decodePlants(snaps []docstore.Snapshot) ([]model.Plant, error) {
	return docstore.Decode(snaps, func(p *model.Plant, id string) { p.ID = id })
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.docs.Delete(ctx, model.CollPlants, id); err != nil {
		return fmt.Errorf("delete plant: %w", err)
	}
	m.logger.Info("plant deleted", "plant_id", id)
	return nil
}

// MarkWatered records a watering by actorID and pushes the schedule out by
// one interval. Household plants also get an activity entry.
func (m *Manager) MarkWatered(ctx context.Context, p *model.Plant, actorID string) (*model.Plant, error) {
	now := m.now().UnixMilli()
	if !CanWater(p, now) {
		return nil, ErrTooEarly
	}

	watered := *p
	watered.NextWateringDate = now + IntervalMillis(p.WateringDays)
	watered.LastWatered = &now
	watered.TimesWatered = p.TimesWatered + 1

	if err := m.docs.Set(ctx, model.CollPlants, watered.ID, &watered); err != nil {
		return nil, fmt.Errorf("save watering: %w", err)
	}
	m.logger.Info("plant watered", "plant_id", watered.ID, "user_id", actorID, "times_watered", watered.TimesWatered)

	if !watered.IsShared() {
		return &watered, nil
	}

	activity := model.Activity{
		ID:        m.docs.NewID(),
		PlantName: watered.Name,
		UserID:    actorID,
		Timestamp: now,
	}
	path := docstore.Path(model.CollHouseholds, *watered.HouseholdID, model.CollActivities)
	if err := m.docs.Set(ctx, path, activity.ID, activity); err != nil {
		return &watered, &StepError{Step: "record watering activity", Err: err}
	}
	return &watered, nil
}

// Update renames the plant and changes its interval, rescheduling with
// RescheduleDate.
func (m *Manager) Update(ctx context.Context, p *model.Plant, newName string, newWateringDays int) (*model.Plant, error) {
	name := strings.TrimSpace(newName)
	if name == "" {
		return nil, ErrBlankName
	}
	if newWateringDays <= 0 {
		return nil, ErrInvalidWateringDays
	}

	now := m.now().UnixMilli()
	updated := *p
	updated.Name = name
	updated.WateringDays = newWateringDays
	updated.NextWateringDate = RescheduleDate(p, newWateringDays, now)

	if err := m.docs.Set(ctx, model.CollPlants, updated.ID, &updated); err != nil {
		return nil, fmt.Errorf("update plant: %w", err)
	}
	m.logger.Info("plant updated", "plant_id", updated.ID, "watering_days", newWateringDays)
	return &updated, nil
}

func scopeFilter(userID, householdID string) docstore.Filter {
	if householdID == "" {
		return docstore.Eq("ownerId", userID)
	}
	return docstore.Eq("householdId", householdID)
}

// List returns the user's private plants when householdID is empty, and the
// household's plants otherwise.
func (m *Manager) List(ctx context.Context, userID, householdID string) ([]model.Plant, error) {
	snaps, err := m.docs.Query(ctx, model.CollPlants, scopeFilter(userID, householdID))
	if err != nil {
		return nil, fmt.Errorf("list plants: %w", err)
	}
	return decodePlants(snaps)
}

// Subscribe is List as a live feed.
func (m *Manager) Subscribe(ctx context.Context, userID, householdID string) (*Feed, error) {
	sub, err := m.docs.Watch(ctx, model.CollPlants, scopeFilter(userID, householdID))
	if err != nil {
		return nil, fmt.Errorf("watch plants: %w", err)
	}
	return newFeed(sub, m.logger), nil
}

// Activities returns the household's watering log, newest first.
func (m *Manager) Activities(ctx context.Context, householdID string) ([]model.Activity, error) {
	path := docstore.Path(model.CollHouseholds, householdID, model.CollActivities)
	snaps, err := m.docs.Query(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	activities, err := docstore.Decode(snaps, func(a *model.Activity, id string) { a.ID = id })
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(activities, func(a, b model.Activity) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
	return activities, nil
}

// DueForUser returns every plant the user can see that is due at now: their
// private plants and the plants of each of their households.
func (m *Manager) DueForUser(ctx context.Context, userID string, now time.Time) ([]model.Plant, error) {
	visible, err := m.List(ctx, userID, "")
	if err != nil {
		return nil, err
	}

	var householdIDs []string
	snap, err := m.docs.Get(ctx, model.CollUsers, userID)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load user: %w", err)
	default:
		var u model.User
		if err := snap.DataTo(&u); err != nil {
			return nil, err
		}
		householdIDs = u.Households
	}

	for _, batch := range docstore.Chunk(householdIDs, docstore.MaxInValues) {
		snaps, err := m.docs.Query(ctx, model.CollPlants, docstore.In("householdId", batch...))
		if err != nil {
			return nil, fmt.Errorf("list household plants: %w", err)
		}
		plants, err := decodePlants(snaps)
		if err != nil {
			return nil, err
		}
		visible = append(visible, plants...)
	}

	nowMillis := now.UnixMilli()
	seen := make(map[string]bool, len(visible))
	due := []model.Plant{}
	for i := range visible {
		p := &visible[i]
		if seen[p.ID] || !IsDue(p, nowMillis) {
			continue
		}
		seen[p.ID] = true
		due = append(due, *p)
	}
	return due, nil
}
