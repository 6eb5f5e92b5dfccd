package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/andresuchdata/replenishment-engine/internal/domain"
)

const defaultJobResultLimit = 20

// jobResultRepository keeps the append-only audit trail of runs.
type jobResultRepository struct {
	db *DB
}

func NewJobResultRepository(db *DB) *jobResultRepository {
	return &jobResultRepository{db: db}
}

func (r *jobResultRepository) Save(ctx context.Context, res *domain.ScheduledJobResult) error {
	errs, err := json.Marshal(res.Errors)
	if err != nil {
		return fmt.Errorf("encode job errors: %w", err)
	}
	quality, err := json.Marshal(res.ForecastQuality)
	if err != nil {
		return fmt.Errorf("encode forecast quality: %w", err)
	}

	query := `
		INSERT INTO scheduled_job_results (
			id, job_type, trigger_id, status, started_at, completed_at,
			stores_processed, products_analyzed, suggestions_generated, orders_generated, suggestions_saved,
			order_ids, total_cost, success_rate, errors, forecast_quality, failure_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.db.ExecContext(ctx, query,
		res.ID, res.JobType, res.TriggerID, res.Status, res.StartedAt, res.CompletedAt,
		res.StoresProcessed, res.ProductsAnalyzed, res.SuggestionsGenerated, res.OrdersGenerated, res.SuggestionsSaved,
		pq.Array(res.OrderIDs), res.TotalCost, res.SuccessRate, errs, quality, res.FailureReason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job result: %w", err)
	}
	return nil
}

// List returns recent results, newest first. An empty jobType lists all.
func (r *jobResultRepository) List(ctx context.Context, jobType domain.JobType, limit int) ([]domain.ScheduledJobResult, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultJobResultLimit
	}

	query := `
		SELECT id, job_type, trigger_id, status, started_at, completed_at,
		       stores_processed, products_analyzed, suggestions_generated, orders_generated, suggestions_saved,
		       order_ids, total_cost, success_rate, errors, forecast_quality, failure_reason
		FROM scheduled_job_results
		WHERE ($1 = '' OR job_type = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, string(jobType), limit)
	if err != nil {
		return nil, fmt.Errorf("error listing job results: %w", err)
	}
	defer rows.Close()

	var results []domain.ScheduledJobResult
	for rows.Next() {
		var res domain.ScheduledJobResult
		var orderIDs pq.StringArray
		var errs, quality []byte
		if err := rows.Scan(
			&res.ID, &res.JobType, &res.TriggerID, &res.Status, &res.StartedAt, &res.CompletedAt,
			&res.StoresProcessed, &res.ProductsAnalyzed, &res.SuggestionsGenerated, &res.OrdersGenerated, &res.SuggestionsSaved,
			&orderIDs, &res.TotalCost, &res.SuccessRate, &errs, &quality, &res.FailureReason,
		); err != nil {
			return nil, fmt.Errorf("error scanning job result: %w", err)
		}
		res.OrderIDs = []string(orderIDs)
		if err := json.Unmarshal(errs, &res.Errors); err != nil {
			return nil, fmt.Errorf("decode job errors: %w", err)
		}
		if err := json.Unmarshal(quality, &res.ForecastQuality); err != nil {
			return nil, fmt.Errorf("decode forecast quality: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
