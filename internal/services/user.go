package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/studyplanner/planner/internal/notecrypt"
	"github.com/studyplanner/planner/internal/store"
	"github.com/studyplanner/planner/types"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 8
	passwordHashCost  = 10
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotPurger removes a user's archived timetable snapshots.
type SnapshotPurger interface {
	PurgeUser(ctx context.Context, userID string) (int, error)
}

// UserService encapsulates account use-cases.
type UserService struct {
	repo      UserRepository
	newID     func() string
	snapshots SnapshotPurger
	log       logrus.FieldLogger
}

func NewUserService(repo UserRepository) *UserService {
	return &UserService{repo: repo, newID: uuid.NewString}
}

// WithSnapshotPurger makes Delete also remove the user's snapshots.
func (s *UserService) WithSnapshotPurger(p SnapshotPurger, log logrus.FieldLogger) *UserService {
	s.snapshots = p
	s.log = log
	return s
}

// Register creates an account. The identifier is generated here and never
// changes; the bcrypt hash of the password is stored encrypted under it.
func (s *UserService) Register(ctx context.Context, email, password string) (types.User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return types.User{}, &ValidationError{Field: "email", Message: "a valid email is required"}
	}
	if len(password) < minPasswordLength {
		return types.User{}, &ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return types.User{}, err
	}

	id := s.newID()
	verifier, err := notecrypt.Encrypt(string(hashed), id)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:               id,
		Email:            email,
		PasswordVerifier: verifier,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, ErrEmailTaken
		}
		return types.User{}, err
	}
	return user, nil
}

// Authenticate checks an email/password pair. Accounts created before
// verifiers were encrypted hold a bare bcrypt hash, which is accepted as is.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	hash, err := passwordHash(user)
	if err != nil {
		return types.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes the account together with its notes and events. Snapshot
// cleanup runs afterwards and only logs on failure.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.snapshots != nil {
		if removed, err := s.snapshots.PurgeUser(ctx, id); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"user_id": id, "removed": removed}).Warn("failed to purge timetable snapshots")
		}
	}
	return nil
}

func passwordHash(user types.User) (string, error) {
	if strings.HasPrefix(user.PasswordVerifier, "$2") {
		return user.PasswordVerifier, nil
	}
	return notecrypt.Decrypt(user.PasswordVerifier, user.ID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
