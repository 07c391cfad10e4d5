package repositories

import (
	"context"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

type postgresSelectionRepo struct {
	executor queryExecutor
	log      logging.Logger
}

// NewMarketSelectionRepository returns an export.MarketSelectionRepository
// backed by the market_selections table.
func NewMarketSelectionRepository(conn *postgres.Connection, log logging.Logger) export.MarketSelectionRepository {
	return &postgresSelectionRepo{executor: conn.DB(), log: nopIfNil(log).Named("selection_repo")}
}

func (r *postgresSelectionRepo) Append(ctx context.Context, s *export.MarketSelection) error {
	if s == nil {
		return errors.New(errors.ErrCodeValidation, "market selection is nil")
	}
	doc, err := encodeDocument(s)
	if err != nil {
		return err
	}
	if _, err := r.executor.ExecContext(ctx,
		`INSERT INTO market_selections (id, business_id, document, selected_at) VALUES ($1, $2, $3, $4)`,
		s.ID, s.BusinessID, doc, s.Timestamp.UTC(),
	); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert market selection")
	}
	return nil
}

func (r *postgresSelectionRepo) FindByBusinessID(ctx context.Context, businessID string) ([]*export.MarketSelection, error) {
	rows, err := r.executor.QueryContext(ctx,
		`SELECT id, document FROM market_selections WHERE business_id = $1 ORDER BY seq`, businessID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query market selections")
	}
	return scanDocuments[export.MarketSelection](rows, r.log, "market_selections")
}
