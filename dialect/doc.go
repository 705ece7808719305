// Package dialect provides the database abstraction used by the query
// execution backends.
//
// # Supported Dialects
//
// Each dialect is identified by a constant string matching its driver
// name:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The Driver interface wraps all database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/syssam/veloq/dialect"
//	    "github.com/syssam/veloq/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// The dialect/sql sub-package provides the SQL driver implementation
// and the execution backend that compiles query plans into SQL.
package dialect
