// Package identity registers accounts, signs users in and resolves session
// tokens to user IDs. Credentials live in the relational database; the
// public profile lives in the users document collection.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/plantcare/internal/docstore"
	"github.com/dukerupert/plantcare/internal/model"
	"github.com/dukerupert/plantcare/internal/store"
)

const MinPasswordLength = 6

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrBlankUsername      = errors.New("username is required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("not signed in")
)

// HouseholdJoiner adds a new user to a household by name during registration.
type HouseholdJoiner interface {
	JoinOrCreateByName(ctx context.Context, name, userID string) (*model.Household, error)
}

type Service struct {
	accounts   *store.AccountStore
	sessions   *store.SessionStore
	docs       docstore.Store
	households HouseholdJoiner
	logger     *slog.Logger
	now        func() time.Time
	hashCost   int
}

func NewService(accounts *store.AccountStore, sessions *store.SessionStore, docs docstore.Store, households HouseholdJoiner, logger *slog.Logger) *Service {
	return &Service{
		accounts:   accounts,
		sessions:   sessions,
		docs:       docs,
		households: households,
		logger:     logger.With("component", "identity"),
		now:        time.Now,
		hashCost:   bcrypt.DefaultCost,
	}
}

type RegisterResult struct {
	User      *model.User      `json:"user"`
	Session   *model.Session   `json:"session"`
	Household *model.Household `json:"household,omitempty"`
}

// Register creates the account, the profile document and a session. When
// householdName is set the user also joins (or founds) that household; a
// failure there is returned alongside a usable result.
func (s *Service) Register(ctx context.Context, email, password, username, householdName string) (*RegisterResult, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)

	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	if username == "" {
		return nil, ErrBlankUsername
	}

	existing, err := s.accounts.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	uid := s.docs.NewID()
	if _, err := s.accounts.Create(uid, email, string(hash)); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	user := &model.User{
		ID:         uid,
		Email:      email,
		Username:   username,
		JoinDate:   s.now().UnixMilli(),
		Households: []string{},
	}
	if err := s.docs.Set(ctx, model.CollUsers, uid, user); err != nil {
		// Without a profile the account is unusable; free the email again.
		if derr := s.accounts.Delete(uid); derr != nil {
			s.logger.Error("remove account after profile failure", "user_id", uid, "error", derr)
		}
		return nil, fmt.Errorf("write user profile: %w", err)
	}

	sess, err := s.sessions.Create(uid)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", uid)

	result := &RegisterResult{User: user, Session: sess}

	householdName = strings.TrimSpace(householdName)
	if householdName == "" || s.households == nil {
		return result, nil
	}

	h, err := s.households.JoinOrCreateByName(ctx, householdName, uid)
	if err != nil {
		return result, fmt.Errorf("join household %q: %w", householdName, err)
	}
	result.Household = h
	user.Households = append(user.Households, h.ID)
	return result, nil
}

// Login verifies credentials and opens a new session.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	account, err := s.accounts.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sess, err := s.sessions.Create(account.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("user signed in", "user_id", account.ID)
	return sess, nil
}

// Authenticate resolves a session token to its session.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	sess, err := s.sessions.GetByToken(token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrUnauthenticated
	}
	return sess, nil
}

func (s *Service) CurrentUserID(ctx context.Context, token string) (string, error) {
	sess, err := s.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteByToken(token)
}

// Profile returns the user's profile document.
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	snap, err := s.docs.Get(ctx, model.CollUsers, userID)
	if err != nil {
		return nil, err
	}
	var u model.User
	if err := snap.DataTo(&u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		u.ID = snap.ID
	}
	return &u, nil
}
