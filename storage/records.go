package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// SalaryRecord is one salary entry. At most one row exists per
// (user, income_year, income_month); the schema enforces it.
type SalaryRecord struct {
	ID          int      `db:"id"`
	UserID      int64    `db:"user_id"`
	Bank        string   `db:"bank"`
	SalaryValue *float64 `db:"salary_value"`
	IncomeYear  int      `db:"income_year"`
	IncomeMonth int      `db:"income_month"`
	IncomeDay   int      `db:"income_day"`
}

// SalaryRecords provides access to the salary_records table.
type SalaryRecords struct {
	db *sqlx.DB
}

// NewSalaryRecords wraps the database handle.
func NewSalaryRecords(db *sqlx.DB) *SalaryRecords {
	return &SalaryRecords{db: db}
}

// FindByUserMonth returns the user's record for the given month, or nil when absent.
func (r *SalaryRecords) FindByUserMonth(ctx context.Context, userID int64, year, month int) (*SalaryRecord, error) {
	var rec SalaryRecord
	err := r.db.GetContext(ctx, &rec,
		`SELECT id, user_id, bank, salary_value, income_year, income_month, income_day
		   FROM salary_records
		  WHERE user_id = $1 AND income_year = $2 AND income_month = $3`,
		userID, year, month,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find salary record: %w", err)
	}
	return &rec, nil
}

// Upsert inserts a new record or overwrites an existing one by its id.
func (r *SalaryRecords) Upsert(ctx context.Context, rec *SalaryRecord) error {
	if rec == nil {
		return errors.New("nil salary record")
	}
	if rec.ID == 0 {
		err := r.db.QueryRowxContext(ctx,
			`INSERT INTO salary_records (user_id, bank, salary_value, income_year, income_month, income_day)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id`,
			rec.UserID, rec.Bank, rec.SalaryValue, rec.IncomeYear, rec.IncomeMonth, rec.IncomeDay,
		).Scan(&rec.ID)
		if err != nil {
			return fmt.Errorf("insert salary record: %w", err)
		}
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE salary_records
		    SET user_id = $2, bank = $3, salary_value = $4,
		        income_year = $5, income_month = $6, income_day = $7
		  WHERE id = $1`,
		rec.ID, rec.UserID, rec.Bank, rec.SalaryValue, rec.IncomeYear, rec.IncomeMonth, rec.IncomeDay,
	)
	if err != nil {
		return fmt.Errorf("update salary record: %w", err)
	}
	return nil
}

// ListByMonth returns all records for the given month across users.
func (r *SalaryRecords) ListByMonth(ctx context.Context, year, month int) ([]SalaryRecord, error) {
	var recs []SalaryRecord
	err := r.db.SelectContext(ctx, &recs,
		`SELECT id, user_id, bank, salary_value, income_year, income_month, income_day
		   FROM salary_records
		  WHERE income_year = $1 AND income_month = $2
		  ORDER BY income_day, bank`,
		year, month,
	)
	if err != nil {
		return nil, fmt.Errorf("list salary records: %w", err)
	}
	return recs, nil
}

// TopBanks returns distinct bank names ordered by how often they were recorded.
func (r *SalaryRecords) TopBanks(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var banks []string
	err := r.db.SelectContext(ctx, &banks,
		`SELECT bank
		   FROM salary_records
		  GROUP BY bank
		  ORDER BY COUNT(id) DESC, bank
		  LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("top banks: %w", err)
	}
	return banks, nil
}
