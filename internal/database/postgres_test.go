package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDSN(t *testing.T) {
	cfg := &Config{
		Host:     "db",
		Port:     5432,
		User:     "fms",
		Password: "secret",
		Database: "ropod_ccu_store",
		SSLMode:  "disable",
	}
	assert.Equal(t, "host=db port=5432 user=fms password=secret dbname=ropod_ccu_store sslmode=disable", cfg.GetDSN())
}

func TestApplySchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS sub_areas`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, ApplySchema(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySchema_Error(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE`).WillReturnError(errors.New("permission denied"))

	err = ApplySchema(context.Background(), db)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply schema")
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
