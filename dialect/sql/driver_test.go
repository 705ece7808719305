package sql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq/dialect"
)

func TestDialectDetection(t *testing.T) {
	t.Parallel()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	for _, tt := range []struct {
		name string
		want string
	}{
		{name: "mysql", want: dialect.MySQL},
		{name: "postgres", want: dialect.Postgres},
		{name: "sqlite", want: dialect.SQLite},
		// Telemetry-wrapped driver registrations keep their base name.
		{name: "mysql+otel", want: dialect.MySQL},
		{name: "custom", want: "custom"},
	} {
		assert.Equal(t, tt.want, OpenDB(tt.name, db).Dialect())
	}
}

func TestConnQuery(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	rows := &Rows{}
	require.NoError(t, drv.Query(context.Background(), "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())
	require.NoError(t, mock.ExpectationsWereMet())

	// Wrong destination type.
	err = drv.Query(context.Background(), "SELECT 1", []any{}, &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid type")

	// Wrong args type.
	err = drv.Query(context.Background(), "SELECT 1", "not-a-slice", rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect []any for args")
}

func TestConnExec(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 2))
	var res sql.Result
	require.NoError(t, drv.Exec(context.Background(), "DELETE FROM users", []any{}, &res))
	affected, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	require.NoError(t, mock.ExpectationsWereMet())

	err = drv.Exec(context.Background(), "DELETE FROM users", []any{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expect *sql.Result")
}

func TestTx(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	drv := OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectCommit()

	tx, err := drv.Tx(context.Background())
	require.NoError(t, err)
	rows := &Rows{}
	require.NoError(t, tx.Query(context.Background(), "SELECT 1", []any{}, rows))
	require.NoError(t, rows.Close())
	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNullScanner(t *testing.T) {
	t.Parallel()
	var s NullString
	n := &NullScanner{S: &s}
	require.NoError(t, n.Scan(nil))
	assert.False(t, n.Valid)
	require.NoError(t, n.Scan("a8m"))
	assert.True(t, n.Valid)
	assert.Equal(t, "a8m", s.String)
}
