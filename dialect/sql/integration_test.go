package sql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/veloq"
	"github.com/syssam/veloq/compiler"
	"github.com/syssam/veloq/dialect"
	"github.com/syssam/veloq/dialect/sql"
	"github.com/syssam/veloq/querylanguage"
)

func sqliteCompiler(t *testing.T) *compiler.Compiler {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, "file:veloq?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	ctx := context.Background()
	err = drv.Exec(ctx, `CREATE TABLE IF NOT EXISTS users (name TEXT, age INTEGER, active BOOLEAN)`, []any{}, nil)
	require.NoError(t, err)
	err = drv.Exec(ctx, `DELETE FROM users`, []any{}, nil)
	require.NoError(t, err)
	err = drv.Exec(ctx, `INSERT INTO users (name, age, active) VALUES (?, ?, ?), (?, ?, ?), (?, ?, ?)`,
		[]any{"a8m", 30, true, "nati", 28, true, "alex", 35, false}, nil)
	require.NoError(t, err)
	c, err := compiler.New(&veloq.StaticModel{Name: "app"}, sql.NewBackend(drv))
	require.NoError(t, err)
	return c
}

func TestSQLiteExecute(t *testing.T) {
	c := sqliteCompiler(t)
	name, err := compiler.Execute[string](c,
		querylanguage.Source("users").
			Where(querylanguage.FieldGT("age", 31)).
			Select(querylanguage.F("name")),
	)
	require.NoError(t, err)
	assert.Equal(t, "alex", name)
}

func TestSQLiteCountCachesByShape(t *testing.T) {
	c := sqliteCompiler(t)
	count := func(age int) int64 {
		n, err := compiler.Execute[int64](c,
			querylanguage.Source("users").Where(querylanguage.FieldGT("age", age)).Count(),
		)
		require.NoError(t, err)
		return n
	}
	assert.Equal(t, int64(3), count(20))
	assert.Equal(t, int64(1), count(31))
	assert.Equal(t, 1, c.Cache().Len())
}

func TestSQLiteBoundedCount(t *testing.T) {
	c := sqliteCompiler(t)
	// Counting a bounded select reflects the limit, matching the
	// in-memory backend.
	n, err := compiler.Execute[int64](c,
		querylanguage.Source("users").
			Order(querylanguage.F("age")).
			Limit(querylanguage.V(2)).
			Count(),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = compiler.Execute[int64](c,
		querylanguage.Source("users").
			Order(querylanguage.F("age")).
			Limit(querylanguage.V(3)).
			Offset(querylanguage.V(2)).
			Count(),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteStream(t *testing.T) {
	c := sqliteCompiler(t)
	s := compiler.ExecuteStream[string](c,
		querylanguage.Source("users").
			Where(querylanguage.FieldEQ("active", true)).
			Order(querylanguage.F("age")).
			Select(querylanguage.F("name")),
	)
	defer s.Close()
	ctx := context.Background()
	var names []string
	for s.Next(ctx) {
		names = append(names, s.Value())
	}
	require.NoError(t, s.Err())
	assert.Equal(t, []string{"nati", "a8m"}, names)
}

func TestSQLiteNotFound(t *testing.T) {
	c := sqliteCompiler(t)
	_, err := compiler.Execute[string](c,
		querylanguage.Source("users").
			Where(querylanguage.FieldEQ("name", "missing")).
			Select(querylanguage.F("name")),
	)
	require.Error(t, err)
	assert.True(t, veloq.IsNotFound(err))
}
