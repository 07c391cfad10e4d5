package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/turtacn/ExportReady-Intelligence/internal/domain/business"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

const changeColumns = `id, business_id, field, item_id, old_value, new_value, change_type, significance, changed_at`

type postgresChangeLog struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewChangeLog returns a business.ChangeLog backed by the profile_changes
// table. Appends are transactional.
func NewChangeLog(conn *postgres.Connection, log logging.Logger) business.ChangeLog {
	return &postgresChangeLog{conn: conn, log: nopIfNil(log).Named("change_log")}
}

func (r *postgresChangeLog) AppendChanges(ctx context.Context, changes []business.ProfileChange) error {
	if len(changes) == 0 {
		return nil
	}
	query := `INSERT INTO profile_changes (` + changeColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to prepare change insert")
		}
		defer stmt.Close()
		for _, c := range changes {
			if _, err := stmt.ExecContext(ctx,
				c.ID, c.BusinessID, c.Field, c.ItemID, c.OldValue, c.NewValue,
				string(c.ChangeType), string(c.Significance), c.Timestamp.UTC(),
			); err != nil {
				return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert profile change").
					WithDetail("field=" + c.Field)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Debug("appended profile changes",
		logging.String("business_id", changes[0].BusinessID),
		logging.Int("count", len(changes)),
	)
	return nil
}

func (r *postgresChangeLog) FindByBusinessID(ctx context.Context, businessID string) ([]business.ProfileChange, error) {
	query := `SELECT ` + changeColumns + ` FROM profile_changes WHERE business_id = $1 ORDER BY changed_at, seq`
	return r.query(ctx, query, businessID)
}

func (r *postgresChangeLog) FindByTimeRange(ctx context.Context, businessID string, from, to time.Time) ([]business.ProfileChange, error) {
	query := `SELECT ` + changeColumns + ` FROM profile_changes
		WHERE business_id = $1 AND changed_at >= $2 AND changed_at < $3
		ORDER BY changed_at, seq`
	return r.query(ctx, query, businessID, from.UTC(), to.UTC())
}

func (r *postgresChangeLog) query(ctx context.Context, query string, args ...interface{}) ([]business.ProfileChange, error) {
	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query profile changes")
	}
	defer rows.Close()

	out := make([]business.ProfileChange, 0)
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate profile changes")
	}
	return out, nil
}

func scanChange(row scanner) (business.ProfileChange, error) {
	var (
		c                        business.ProfileChange
		changeType, significance string
	)
	err := row.Scan(&c.ID, &c.BusinessID, &c.Field, &c.ItemID, &c.OldValue, &c.NewValue,
		&changeType, &significance, &c.Timestamp)
	if err != nil {
		return c, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan profile change")
	}
	c.ChangeType = business.ChangeType(changeType)
	c.Significance = business.Significance(significance)
	c.Timestamp = c.Timestamp.UTC()
	return c, nil
}
