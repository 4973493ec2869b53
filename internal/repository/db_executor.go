// internal/repository/db_executor.go
package repository

import (
	"context"
	"database/sql"
)

// DBExecutor defines the common database operations needed by the SQL repositories.
// Both *sqlx.DB and *sqlx.Tx implement these methods, so a query helper can run
// on the pool or inside the short single-row transaction of ApplyDelta.
type DBExecutor interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
