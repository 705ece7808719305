package sql

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/plan"
	"github.com/syssam/veloq/querylanguage"
)

func mockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBackend(OpenDB(dialect.SQLite, db)), mock
}

func TestBackendQuery(t *testing.T) {
	t.Parallel()
	b, mock := mockBackend(t)
	q, err := plan.NewParser().Parse(
		querylanguage.Source("users").
			Where(querylanguage.GT(querylanguage.F("age"), querylanguage.Arg("v0"))).
			Select(querylanguage.F("name")),
	)
	require.NoError(t, err)
	run, err := b.CompileQuery(q)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "name" FROM "users" WHERE "age" > \?`).
		WithArgs(30).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a8m").AddRow("alex"))

	qc := veloq.NewQueryContext()
	qc.SetParam("v0", 30)
	out, err := run(context.Background(), qc)
	require.NoError(t, err)
	assert.Equal(t, []any{"a8m", "alex"}, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendRowShape(t *testing.T) {
	t.Parallel()
	b, mock := mockBackend(t)
	q, err := plan.NewParser().Parse(querylanguage.Source("users"))
	require.NoError(t, err)
	run, err := b.CompileQuery(q)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "age"}).AddRow([]byte("a8m"), 30))

	out, err := run(context.Background(), veloq.NewQueryContext())
	require.NoError(t, err)
	require.Len(t, out, 1)
	// Byte slices scan as strings.
	assert.Equal(t, map[string]any{"name": "a8m", "age": int64(30)}, out[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendCount(t *testing.T) {
	t.Parallel()
	b, mock := mockBackend(t)
	q, err := plan.NewParser().Parse(querylanguage.Source("users").Count())
	require.NoError(t, err)
	run, err := b.CompileQuery(q)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	out, err := run(context.Background(), veloq.NewQueryContext())
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, out)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendQueryError(t *testing.T) {
	t.Parallel()
	b, mock := mockBackend(t)
	q, err := plan.NewParser().Parse(querylanguage.Source("users"))
	require.NoError(t, err)
	run, err := b.CompileQuery(q)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(assert.AnError)

	_, err = run(context.Background(), veloq.NewQueryContext())
	require.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackendStream(t *testing.T) {
	t.Parallel()
	b, mock := mockBackend(t)
	q, err := plan.NewParser().Parse(querylanguage.Source("users").Select(querylanguage.F("name")))
	require.NoError(t, err)
	stream, err := b.CompileStream(q)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT "name" FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a8m").AddRow("nati"))

	cur, err := stream(context.Background(), veloq.NewQueryContext())
	require.NoError(t, err)
	defer cur.Close()
	var names []string
	for {
		ok, err := cur.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, cur.Value().(string))
	}
	assert.Equal(t, []string{"a8m", "nati"}, names)
	require.NoError(t, cur.Close())
}

func TestBackendStreamCancellation(t *testing.T) {
	t.Parallel()
	b, mock := mockBackend(t)
	q, err := plan.NewParser().Parse(querylanguage.Source("users"))
	require.NoError(t, err)
	stream, err := b.CompileStream(q)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a8m").AddRow("nati"))

	ctx, cancel := context.WithCancel(context.Background())
	cur, err := stream(ctx, veloq.NewQueryContext())
	require.NoError(t, err)
	defer cur.Close()
	ok, err := cur.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	cancel()
	_, err = cur.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
