package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UserStates persists per-user conversation state strings.
// A nil state means the user is idle; the row is still written so that
// repeated handling always observes the latest value.
type UserStates struct {
	db *sqlx.DB
}

// NewUserStates wraps the database handle.
func NewUserStates(db *sqlx.DB) *UserStates {
	return &UserStates{db: db}
}

// Get returns the persisted state for a user, nil when idle or unknown.
func (s *UserStates) Get(ctx context.Context, userID int64) (*string, error) {
	var state sql.NullString
	err := s.db.GetContext(ctx, &state,
		`SELECT state FROM user_states WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user state: %w", err)
	}
	if !state.Valid {
		return nil, nil
	}
	return &state.String, nil
}

// Put stores the state for a user, overwriting any previous value.
func (s *UserStates) Put(ctx context.Context, userID int64, state *string) error {
	var value sql.NullString
	if state != nil {
		value = sql.NullString{String: *state, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_states (user_id, state) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET state = EXCLUDED.state`,
		userID, value,
	)
	if err != nil {
		return fmt.Errorf("put user state: %w", err)
	}
	return nil
}
