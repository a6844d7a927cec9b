package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pg serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "pg deadlock wrapped", err: fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "pg lock not available", err: &pgconn.PgError{Code: "55P03"}, want: true},
		{name: "pg unique", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "mysql deadlock", err: &mysql.MySQLError{Number: 1213}, want: true},
		{name: "mysql lock wait", err: &mysql.MySQLError{Number: 1205}, want: true},
		{name: "mysql syntax", err: &mysql.MySQLError{Number: 1064}, want: false},
		{name: "sqlite busy", err: errors.New("database is locked (5) (SQLITE_BUSY)"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: users.email")))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(t.Context(), DriverPostgres, "")
	assert.EqualError(t, err, "DATABASE_URL is empty")

	_, err = Open(t.Context(), "oracle", "dsn")
	assert.EqualError(t, err, `unsupported database driver "oracle"`)
}

func TestOpen_SQLiteMemory(t *testing.T) {
	db, err := Open(t.Context(), DriverSQLite, "file:pkgdb_open?mode=memory&cache=shared")
	if !assert.NoError(t, err) {
		return
	}
	defer Close(db)

	assert.NoError(t, Ping(t.Context(), db))
}
