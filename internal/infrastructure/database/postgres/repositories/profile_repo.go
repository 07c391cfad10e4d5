package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

type postgresProfileRepo struct {
	executor queryExecutor
	log      logging.Logger
}

// NewProfileRepository returns a business.ProfileRepository backed by the
// business_profiles table.
func NewProfileRepository(conn *postgres.Connection, log logging.Logger) business.ProfileRepository {
	return &postgresProfileRepo{executor: conn.DB(), log: nopIfNil(log).Named("profile_repo")}
}

func (r *postgresProfileRepo) FindByID(ctx context.Context, id string) (*business.Profile, error) {
	row := r.executor.QueryRowContext(ctx,
		`SELECT document FROM business_profiles WHERE id = $1`, id)
	return scanProfile(row, id)
}

func scanProfile(row scanner, id string) (*business.Profile, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrCodeProfileNotFound, "business profile not found").WithDetail("id=" + id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load business profile")
	}
	p := &business.Profile{}
	if err := json.Unmarshal(doc, p); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode business profile")
	}
	return p, nil
}

func (r *postgresProfileRepo) Save(ctx context.Context, p *business.Profile) error {
	if p == nil {
		return errors.New(errors.ErrCodeProfileInvalid, "profile is nil")
	}
	doc, err := encodeDocument(p)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO business_profiles (id, industry, size, document, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			industry = EXCLUDED.industry,
			size = EXCLUDED.size,
			document = EXCLUDED.document,
			updated_at = NOW()
	`
	if _, err := r.executor.ExecContext(ctx, query, p.ID, p.Industry, string(p.Size), doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save business profile")
	}
	r.log.Debug("saved business profile", logging.String("business_id", p.ID))
	return nil
}
