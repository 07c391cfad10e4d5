package repositories

import (
	"context"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/export"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

type postgresPatternRepo struct {
	executor queryExecutor
	log      logging.Logger
}

// NewPatternRepository returns an export.PatternRepository backed by the
// export_patterns table.
func NewPatternRepository(conn *postgres.Connection, log logging.Logger) export.PatternRepository {
	return &postgresPatternRepo{executor: conn.DB(), log: nopIfNil(log).Named("pattern_repo")}
}

func (r *postgresPatternRepo) Append(ctx context.Context, p *export.Pattern) error {
	if p == nil {
		return errors.New(errors.ErrCodeValidation, "pattern is nil")
	}
	doc, err := encodeDocument(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO export_patterns (id, outcome_id, industry_type, market_region, business_size, document, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := r.executor.ExecContext(ctx, query,
		p.ID, p.OutcomeID, p.IndustryType, p.MarketRegion, p.BusinessSize, doc, p.Timestamp.UTC(),
	); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert export pattern")
	}
	return nil
}

// Find applies each non-empty query field as a case-insensitive equality.
func (r *postgresPatternRepo) Find(ctx context.Context, q export.PatternQuery) ([]*export.Pattern, error) {
	query := `
		SELECT id, document FROM export_patterns
		WHERE ($1 = '' OR lower(industry_type) = lower($1))
		  AND ($2 = '' OR lower(market_region) = lower($2))
		  AND ($3 = '' OR lower(business_size) = lower($3))
		ORDER BY seq
	`
	rows, err := r.executor.QueryContext(ctx, query, q.IndustryType, q.MarketRegion, q.BusinessSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query export patterns")
	}
	return scanDocuments[export.Pattern](rows, r.log, "export_patterns")
}
