package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankruptcy-workers/internal/common/logger"
)

func TestMigrationFiles(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "0001_income.sql", files[0])
}

func TestApplyMigrations(t *testing.T) {
	t.Run("applies pending migration", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("0001_income.sql").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS raw_income_extractions").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("0001_income.sql").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, ApplyMigrations(context.Background(), db, logger.NewNoOpLogger()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied migration", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT EXISTS").WithArgs("0001_income.sql").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		require.NoError(t, ApplyMigrations(context.Background(), db, logger.NewNoOpLogger()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
