package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reciclo/broker/internal/db"
)

// Store handles all database operations for party records and their change
// queues. Loading a user for mutation locks its row, so change requests and
// decisions on the same profile serialize.
type Store struct{}

// NewStore creates a new Store.
func NewStore() *Store {
	return &Store{}
}

// Insert persists a freshly registered party.
func (s *Store) Insert(ctx context.Context, q db.Querier, u User) error {
	_, err := q.Exec(ctx, `
		INSERT INTO users (id, role, email, display_name, company, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Role, u.Email, u.DisplayName, u.Company, u.Phone, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user failed: %w", err)
	}
	return nil
}

// Load fetches a user and its change queue, locking the user row.
func (s *Store) Load(ctx context.Context, q db.Querier, userID string) (*User, error) {
	return s.load(ctx, q, userID, true)
}

// Get fetches a user without locking, for read-only views.
func (s *Store) Get(ctx context.Context, q db.Querier, userID string) (*User, error) {
	return s.load(ctx, q, userID, false)
}

func (s *Store) load(ctx context.Context, q db.Querier, userID string, lock bool) (*User, error) {
	query := `
		SELECT id, role, email, display_name, company, phone, created_at, updated_at
		FROM users
		WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var u User
	err := q.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Role, &u.Email, &u.DisplayName, &u.Company, &u.Phone,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFoundf("user %s", userID)
		}
		return nil, fmt.Errorf("load user failed: %w", err)
	}

	if u.Changes, err = s.loadChanges(ctx, q, userID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) loadChanges(ctx context.Context, q db.Querier, userID string) ([]PendingChange, error) {
	rows, err := q.Query(ctx, `
		SELECT id, user_id, field, old_value, new_value, status, requested_at, decided_at
		FROM user_pending_changes
		WHERE user_id = $1
		ORDER BY requested_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("load pending changes failed: %w", err)
	}
	defer rows.Close()

	var changes []PendingChange
	for rows.Next() {
		var c PendingChange
		if err := rows.Scan(&c.ID, &c.UserID, &c.Field, &c.OldValue, &c.NewValue,
			&c.Status, &c.RequestedAt, &c.DecidedAt); err != nil {
			return nil, fmt.Errorf("scan pending change failed: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return changes, nil
}

// Save persists the user row and upserts its change queue.
func (s *Store) Save(ctx context.Context, q db.Querier, u *User) error {
	_, err := q.Exec(ctx, `
		UPDATE users
		SET email = $2, display_name = $3, company = $4, phone = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Email, u.DisplayName, u.Company, u.Phone, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user failed: %w", err)
	}

	for _, c := range u.Changes {
		_, err := q.Exec(ctx, `
			INSERT INTO user_pending_changes
				(id, user_id, field, old_value, new_value, status, requested_at, decided_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE
			SET status = EXCLUDED.status, decided_at = EXCLUDED.decided_at
		`, c.ID, c.UserID, c.Field, c.OldValue, c.NewValue, c.Status, c.RequestedAt, c.DecidedAt)
		if err != nil {
			return fmt.Errorf("upsert pending change failed: %w", err)
		}
	}
	return nil
}

// ReviewItem is one entry of the admin's profile change queue, across users.
type ReviewItem struct {
	ChangeID    string    `json:"changeId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Field       Field     `json:"field"`
	OldValue    string    `json:"oldValue"`
	NewValue    string    `json:"newValue"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ListOpenChanges returns every undecided profile change, oldest first.
func (s *Store) ListOpenChanges(ctx context.Context, q db.Querier) ([]ReviewItem, error) {
	rows, err := q.Query(ctx, `
		SELECT c.id, c.user_id, u.display_name, c.field, c.old_value, c.new_value, c.requested_at
		FROM user_pending_changes c
		JOIN users u ON u.id = c.user_id
		WHERE c.status = 'pending'
		ORDER BY c.requested_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list open changes failed: %w", err)
	}
	defer rows.Close()

	var out []ReviewItem
	for rows.Next() {
		var it ReviewItem
		if err := rows.Scan(&it.ChangeID, &it.UserID, &it.DisplayName, &it.Field,
			&it.OldValue, &it.NewValue, &it.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan review item failed: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}
