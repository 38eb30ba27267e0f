package user

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reciclo/broker/internal/db"
)

// Service executes profile commands transactionally, one transaction per
// command, mirroring the deal service.
type Service struct {
	db    *db.DB
	store *Store
	now   func() time.Time
}

// NewService creates a new user Service.
func NewService(database *db.DB) *Service {
	return &Service{db: database, store: NewStore(), now: time.Now}
}

// Register creates a party record. Registration itself is not moderated;
// only later profile edits go through the change queue.
func (s *Service) Register(ctx context.Context, role Role, email, displayName, company, phone string) (*User, error) {
	u, err := New(role, email, displayName, company, phone, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, s.db, u); err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", u.ID, "role", u.Role)
	return &u, nil
}

// Get returns a read-only snapshot of a party record.
func (s *Service) Get(ctx context.Context, userID string) (*User, error) {
	return s.store.Get(ctx, s.db, userID)
}

// RequestChange queues one profile field edit for the calling user.
func (s *Service) RequestChange(ctx context.Context, userID string, f Field, newValue string) (*PendingChange, error) {
	var out PendingChange
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		u, err := s.store.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		c, err := u.RequestChange(f, newValue, s.now())
		if err != nil {
			return err
		}
		out = *c
		return s.store.Save(ctx, tx, u)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DecideChange is the admin ruling on one queued change.
func (s *Service) DecideChange(ctx context.Context, adminRole Role, userID, changeID string, approve bool) error {
	if adminRole != RoleAdmin {
		return forbiddenf("only admins decide profile changes")
	}
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		u, err := s.store.Load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := u.DecideChange(changeID, approve, s.now()); err != nil {
			return err
		}
		return s.store.Save(ctx, tx, u)
	})
	if err != nil {
		return err
	}
	slog.Info("profile change decided", "user_id", userID, "change_id", changeID, "approved", approve)
	return nil
}

// ListOpenChanges returns the admin's cross-user review queue.
func (s *Service) ListOpenChanges(ctx context.Context, adminRole Role) ([]ReviewItem, error) {
	if adminRole != RoleAdmin {
		return nil, forbiddenf("only admins list the change queue")
	}
	return s.store.ListOpenChanges(ctx, s.db)
}
