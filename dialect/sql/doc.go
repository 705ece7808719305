// Package sql provides the SQL execution backend: a dialect.Driver
// implementation over database/sql, a statement builder compiling query
// plans into dialect-specific SQL, and driver-error classification.
//
// # Backend
//
// NewBackend adapts a driver into an execution backend. The statement
// is built once per plan; parameters resolve per execution:
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c, err := compiler.New(model, sql.NewBackend(drv))
//
// # Dialect Support
//
// SQL generation adapts to the dialect: placeholder style ($1 for
// Postgres, ? elsewhere), identifier quoting, and string concatenation
// forms differ per database.
//
// # Error Classification
//
// IsUniqueConstraintError, IsForeignKeyConstraintError and
// IsCheckConstraintError recognize constraint violations across the
// pq, go-sql-driver/mysql and modernc.org/sqlite error shapes.
//
// # Statistics
//
// NewStatsDriver wraps any driver with statement counters and slow
// statement detection.
package sql
