package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueConstraintError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "postgres sqlstate",
			err:  &pq.Error{Code: "23505"},
			want: true,
		},
		{
			name: "postgres wrapped",
			err:  fmt.Errorf("insert user: %w", &pq.Error{Code: "23505"}),
			want: true,
		},
		{
			name: "mysql error number",
			err:  &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a8m'"},
			want: true,
		},
		{
			name: "sqlite string form",
			err:  errors.New("constraint failed: UNIQUE constraint failed: users.name (2067)"),
			want: true,
		},
		{
			name: "unrelated postgres error",
			err:  &pq.Error{Code: "42601"},
			want: false,
		},
		{
			name: "plain error",
			err:  errors.New("connection refused"),
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsUniqueConstraintError(tt.err))
		})
	}
}

func TestIsForeignKeyConstraintError(t *testing.T) {
	t.Parallel()
	assert.True(t, IsForeignKeyConstraintError(&pq.Error{Code: "23503"}))
	assert.True(t, IsForeignKeyConstraintError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}))
	assert.True(t, IsForeignKeyConstraintError(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsForeignKeyConstraintError(&pq.Error{Code: "23505"}))
}

func TestIsCheckConstraintError(t *testing.T) {
	t.Parallel()
	assert.True(t, IsCheckConstraintError(&pq.Error{Code: "23514"}))
	assert.True(t, IsCheckConstraintError(&mysql.MySQLError{Number: 3819, Message: "Check constraint 'age_check' is violated"}))
	assert.False(t, IsCheckConstraintError(errors.New("timeout")))
}

func TestConstraintError(t *testing.T) {
	t.Parallel()
	cause := &pq.Error{Code: "23505"}
	err := NewConstraintError("users.name", cause)
	assert.True(t, IsConstraintError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "users.name")
}
