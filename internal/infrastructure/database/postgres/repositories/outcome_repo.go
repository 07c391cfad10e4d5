package repositories

import (
	"context"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

type postgresOutcomeRepo struct {
	executor queryExecutor
	log      logging.Logger
}

// NewOutcomeRepository returns an export.OutcomeRepository backed by the
// append-only export_outcomes table.
func NewOutcomeRepository(conn *postgres.Connection, log logging.Logger) export.OutcomeRepository {
	return &postgresOutcomeRepo{executor: conn.DB(), log: nopIfNil(log).Named("outcome_repo")}
}

func (r *postgresOutcomeRepo) Append(ctx context.Context, o *export.Outcome) error {
	if o == nil {
		return errors.New(errors.ErrCodeOutcomeInvalid, "outcome is nil")
	}
	doc, err := encodeDocument(o)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO export_outcomes (id, business_id, market, successful, document, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.executor.ExecContext(ctx, query,
		o.ID, o.BusinessID, o.Market, o.Results.Successful, doc, o.Timestamp.UTC(),
	); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert export outcome")
	}
	return nil
}

func (r *postgresOutcomeRepo) FindSuccessfulByMarket(ctx context.Context, market string) ([]*export.Outcome, error) {
	rows, err := r.executor.QueryContext(ctx,
		`SELECT id, document FROM export_outcomes WHERE market = $1 AND successful ORDER BY seq`, market)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query export outcomes")
	}
	return scanDocuments[export.Outcome](rows, r.log, "export_outcomes")
}

func (r *postgresOutcomeRepo) FindByBusinessID(ctx context.Context, businessID string) ([]*export.Outcome, error) {
	rows, err := r.executor.QueryContext(ctx,
		`SELECT id, document FROM export_outcomes WHERE business_id = $1 ORDER BY seq`, businessID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query export outcomes")
	}
	return scanDocuments[export.Outcome](rows, r.log, "export_outcomes")
}
