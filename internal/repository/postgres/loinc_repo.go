package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"bloodagent/internal/port"
)

type loincRepo struct {
	db *sqlx.DB
}

// NewLOINCRepo creates a new PostgreSQL-backed LOINCRepository.
func NewLOINCRepo(db *sqlx.DB) port.LOINCRepository {
	return &loincRepo{db: db}
}

func (r *loincRepo) LoadAll(ctx context.Context) ([]port.LOINCEntry, error) {
	var entries []port.LOINCEntry
	err := r.db.SelectContext(ctx, &entries,
		`SELECT code, component, long_common_name, short_name, class, example_units, synonyms
		 FROM loinc_codes
		 ORDER BY rank, code`)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
