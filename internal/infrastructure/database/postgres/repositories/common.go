// Package repositories holds the PostgreSQL implementations of the profile,
// change log, outcome, pattern and market selection stores. Aggregates are
// kept as JSONB documents next to the columns used for lookups.
package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ExportReady-Intelligence/pkg/errors"
)

// queryExecutor abstracts sql.DB and sql.Tx
type queryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// scanner abstracts sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func encodeDocument(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode document")
	}
	return b, nil
}

// scanDocuments reads (id, document) rows in order. A row whose document does
// not decode is skipped and logged so one corrupt record cannot hide the rest.
func scanDocuments[T any](rows *sql.Rows, log logging.Logger, table string) ([]*T, error) {
	defer rows.Close()

	out := make([]*T, 0)
	for rows.Next() {
		var (
			id  string
			doc []byte
		)
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan row")
		}
		item := new(T)
		if err := json.Unmarshal(doc, item); err != nil {
			log.Warn("skipping undecodable document",
				logging.String("table", table),
				logging.String("id", id),
				logging.Err(err),
			)
			continue
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate rows")
	}
	return out, nil
}

func nopIfNil(log logging.Logger) logging.Logger {
	if log == nil {
		return logging.NewNopLogger()
	}
	return log
}
