// Package household manages households: creation with a unique join code,
// joining, leaving and deletion. Membership is kept on both sides, in the
// household's members and in each user's households list.
package household

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/model"
)

type Manager struct {
	docs    docstore.Store
	logger  *slog.Logger
	newCode func() (string, error)
}

func NewManager(docs docstore.Store, logger *slog.Logger) *Manager {
	return &Manager{
		docs:    docs,
		logger:  logger.With("component", "household"),
		newCode: generateCode,
	}
}

func (m *Manager) Get(ctx context.Context, id string) (*model.Household, error) {
	snap, err := m.docs.Get(ctx, model.CollHouseholds, id)
	if err != nil {
		return nil, err
	}
	return decodeHousehold(snap)
}

func decodeHousehold(snap *docstore.Snapshot) (*model.Household, error) {
	var h model.Household
	if err := snap.DataTo(&h); err != nil {
		return nil, err
	}
	h.ID = snap.ID
	return &h, nil
}

// Create founds a household with ownerID as its only member.
func (m *Manager) Create(ctx context.Context, name, ownerID string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}

	code, err := m.uniqueJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	h := &model.Household{
		ID:       m.docs.NewID(),
		Name:     name,
		JoinCode: code,
		Members:  []string{ownerID},
	}
	if err := m.docs.Set(ctx, model.CollHouseholds, h.ID, h); err != nil {
		return nil, fmt.Errorf("create household: %w", err)
	}

	if err := m.docs.ArrayUnion(ctx, model.CollUsers, ownerID, "households", h.ID); err != nil {
		return h, &StepError{Step: "link household to owner", Err: err}
	}

	m.logger.Info("household created", "household_id", h.ID, "user_id", ownerID)
	return h, nil
}

// JoinByCode adds userID to the household holding code.
func (m *Manager) JoinByCode(ctx context.Context, code, userID string) (*model.Household, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidJoinCode
	}

	snaps, err := m.docs.Query(ctx, model.CollHouseholds, docstore.Eq("joinCode", code))
	if err != nil {
		return nil, fmt.Errorf("find household by code: %w", err)
	}
	if len(snaps) == 0 {
		return nil, ErrInvalidJoinCode
	}

	h, err := decodeHousehold(&snaps[0])
	if err != nil {
		return nil, err
	}
	return m.join(ctx, h, userID)
}

// JoinOrCreateByName joins the first household called name, or founds one.
func (m *Manager) JoinOrCreateByName(ctx context.Context, name, userID string) (*model.Household, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}

	snaps, err := m.docs.Query(ctx, model.CollHouseholds, docstore.Eq("name", name))
	if err != nil {
		return nil, fmt.Errorf("find household by name: %w", err)
	}
	if len(snaps) == 0 {
		return m.Create(ctx, name, userID)
	}

	h, err := decodeHousehold(&snaps[0])
	if err != nil {
		return nil, err
	}
	return m.join(ctx, h, userID)
}

func (m *Manager) join(ctx context.Context, h *model.Household, userID string) (*model.Household, error) {
	if err := m.docs.ArrayUnion(ctx, model.CollHouseholds, h.ID, "members", userID); err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	if !h.HasMember(userID) {
		h.Members = append(h.Members, userID)
	}

	if err := m.docs.ArrayUnion(ctx, model.CollUsers, userID, "households", h.ID); err != nil {
		return h, &StepError{Step: "link household to user", Err: err}
	}

	m.logger.Info("household joined", "household_id", h.ID, "user_id", userID)
	return h, nil
}

// Leave removes userID from the household. The last member out deletes the
// household together with its plants.
func (m *Manager) Leave(ctx context.Context, householdID, userID string) error {
	if _, err := m.Get(ctx, householdID); err != nil {
		return err
	}

	if err := m.docs.ArrayRemove(ctx, model.CollHouseholds, householdID, "members", userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := m.unlinkUser(ctx, userID, householdID); err != nil {
		return &StepError{Step: "unlink household from user", Err: err}
	}

	h, err := m.Get(ctx, householdID)
	if err != nil {
		return &StepError{Step: "reload household", Err: err}
	}
	m.logger.Info("household left", "household_id", householdID, "user_id", userID)

	if len(h.Members) > 0 {
		return nil
	}
	if err := m.purge(ctx, householdID); err != nil {
		return &StepError{Step: "delete empty household", Err: err}
	}
	return nil
}

// Delete removes the household for every member. Only members may delete.
func (m *Manager) Delete(ctx context.Context, householdID, requesterID string) error {
	h, err := m.Get(ctx, householdID)
	if err != nil {
		return err
	}
	if !h.HasMember(requesterID) {
		return ErrNotMember
	}

	for i, member := range h.Members {
		if err := m.unlinkUser(ctx, member, householdID); err != nil {
			if i == 0 {
				return fmt.Errorf("unlink household from user: %w", err)
			}
			return &StepError{Step: "unlink household from user " + member, Err: err}
		}
	}

	if err := m.purge(ctx, householdID); err != nil {
		return &StepError{Step: "delete household", Err: err}
	}

	m.logger.Info("household deleted", "household_id", householdID, "user_id", requesterID)
	return nil
}

// unlinkUser drops householdID from the user's list. A user without a
// profile document has nothing to unlink.
func (m *Manager) unlinkUser(ctx context.Context, userID, householdID string) error {
	err := m.docs.ArrayRemove(ctx, model.CollUsers, userID, "households", householdID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil
	}
	return err
}

// purge deletes the household's plants, its activity log and then the
// household document itself.
func (m *Manager) purge(ctx context.Context, householdID string) error {
	plants, err := m.docs.Query(ctx, model.CollPlants, docstore.Eq("householdId", householdID))
	if err != nil {
		return fmt.Errorf("list household plants: %w", err)
	}
	for _, p := range plants {
		if err := m.docs.Delete(ctx, model.CollPlants, p.ID); err != nil {
			return fmt.Errorf("delete plant %s: %w", p.ID, err)
		}
	}

	activityPath := docstore.Path(model.CollHouseholds, householdID, model.CollActivities)
	activities, err := m.docs.Query(ctx, activityPath)
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}
	for _, a := range activities {
		if err := m.docs.Delete(ctx, activityPath, a.ID); err != nil {
			return fmt.Errorf("delete activity %s: %w", a.ID, err)
		}
	}

	if err := m.docs.Delete(ctx, model.CollHouseholds, householdID); err != nil {
		return fmt.Errorf("delete household document: %w", err)
	}
	m.logger.Debug("household purged", "household_id", householdID, "plants", len(plants))
	return nil
}

// ListForUser returns the households in the user's profile.
func (m *Manager) ListForUser(ctx context.Context, userID string) ([]model.Household, error) {
	snap, err := m.docs.Get(ctx, model.CollUsers, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return []model.Household{}, nil
	}
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := snap.DataTo(&user); err != nil {
		return nil, err
	}

	households := []model.Household{}
	for _, batch := range docstore.Chunk(user.Households, docstore.MaxInValues) {
		snaps, err := m.docs.Query(ctx, model.CollHouseholds, docstore.In("id", batch...))
		if err != nil {
			return nil, fmt.Errorf("list households: %w", err)
		}
		for i := range snaps {
			h, err := decodeHousehold(&snaps[i])
			if err != nil {
				return nil, err
			}
			households = append(households, *h)
		}
	}
	return households, nil
}
