package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

type resultRepo struct {
	db *sqlx.DB
}

// NewResultRepo creates a new PostgreSQL-backed ResultRepository.
func NewResultRepo(db *sqlx.DB) port.ResultRepository {
	return &resultRepo{db: db}
}

// resultRow mirrors pipeline_results. The full record lives in the JSONB
// column; the scalar columns exist for querying.
type resultRow struct {
	DocumentID    string          `db:"document_id"`
	Filename      string          `db:"filename"`
	ContentHash   string          `db:"content_hash"`
	State         string          `db:"state"`
	ErrorKind     string          `db:"error_kind"`
	ModelProvider string          `db:"model_provider"`
	ModelName     string          `db:"model_name"`
	Result        json.RawMessage `db:"result"`
}

func (r *resultRepo) Insert(ctx context.Context, result *domain.PipelineResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("resultRepo.Insert: encoding result: %w", err)
	}
	errorKind := ""
	if result.Error != nil {
		errorKind = string(result.Error.Kind)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO pipeline_results
			(document_id, filename, content_hash, state, error_kind, model_provider, model_name, result, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (document_id) DO NOTHING`,
		result.DocumentID, result.Filename, result.ContentHash, string(result.State), errorKind,
		string(result.ModelProvider), result.ModelName, body, result.CreatedAt, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("resultRepo.Insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resultRepo.Insert rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrResultExists
	}
	return nil
}

func (r *resultRepo) GetByID(ctx context.Context, documentID string) (*domain.PipelineResult, error) {
	var row resultRow
	err := r.db.GetContext(ctx, &row,
		`SELECT document_id, filename, content_hash, state, error_kind, model_provider, model_name, result
		 FROM pipeline_results WHERE document_id = $1`, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrResultNotFound
		}
		return nil, fmt.Errorf("resultRepo.GetByID: %w", err)
	}

	var out domain.PipelineResult
	if err := json.Unmarshal(row.Result, &out); err != nil {
		return nil, fmt.Errorf("resultRepo.GetByID: decoding result: %w", err)
	}
	return &out, nil
}
