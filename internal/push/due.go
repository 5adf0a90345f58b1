package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/plantcare/internal/model"
	"github.com/dukerupert/plantcare/internal/store"
)

const reminderTitle = "PlantCare Reminder"

// DueSource lists a user's plants that need water.
type DueSource interface {
	DueForUser(ctx context.Context, userID string, now time.Time) ([]model.Plant, error)
}

// Result describes one due check.
type Result struct {
	DuePlants   []string `json:"duePlants"`
	Message     string   `json:"message,omitempty"`
	Notified    int      `json:"notified"`
	AlreadySent bool     `json:"alreadySent"`
}

// ReminderMessage is the notification text for the given due plants.
func ReminderMessage(names []string) string {
	if len(names) == 1 {
		return fmt.Sprintf("Time to water %s!", names[0])
	}
	return fmt.Sprintf("You have %d plants that need watering!", len(names))
}

// DueChecker sends a user at most one watering reminder per calendar day.
type DueChecker struct {
	plants DueSource
	push   *store.PushStore
	sender Sender
	logger *slog.Logger
	now    func() time.Time
}

func NewDueChecker(plants DueSource, pushStore *store.PushStore, sender Sender, logger *slog.Logger) *DueChecker {
	return &DueChecker{
		plants: plants,
		push:   pushStore,
		sender: sender,
		logger: logger.With("component", "reminders"),
		now:    time.Now,
	}
}

// RunDueCheck finds the user's due plants and notifies each of their devices.
func (c *DueChecker) RunDueCheck(ctx context.Context, userID string) (*Result, error) {
	now := c.now()
	due, err := c.plants.DueForUser(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("load due plants: %w", err)
	}

	res := &Result{DuePlants: make([]string, 0, len(due))}
	for _, p := range due {
		res.DuePlants = append(res.DuePlants, p.Name)
	}
	if len(due) == 0 {
		return res, nil
	}
	res.Message = ReminderMessage(res.DuePlants)

	refID := "watering-" + now.UTC().Format("2006-01-02")
	sent, err := c.push.WasSent(userID, model.NotifTypeWateringDue, refID)
	if err != nil {
		return nil, err
	}
	if sent {
		res.AlreadySent = true
		return res, nil
	}

	if c.sender == nil {
		return res, nil
	}
	subs, err := c.push.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	payload := Payload{
		Title: reminderTitle,
		Body:  res.Message,
		URL:   "/plants",
		Tag:   "watering-due",
	}
	for i := range subs {
		sub := &subs[i]
		if err := c.sender.Send(sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				c.logger.Info("removing expired push subscription", "user_id", userID, "subscription_id", sub.ID)
				if err := c.push.DeleteByEndpoint(sub.Endpoint); err != nil {
					c.logger.Error("delete expired subscription", "error", err)
				}
				continue
			}
			c.logger.Warn("send watering reminder", "user_id", userID, "subscription_id", sub.ID, "error", err)
			continue
		}
		res.Notified++
	}

	if res.Notified > 0 {
		if err := c.push.RecordSent(userID, model.NotifTypeWateringDue, refID); err != nil {
			return res, err
		}
	}
	c.logger.Info("due check complete", "user_id", userID, "due", len(due), "notified", res.Notified)
	return res, nil
}
