package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM t").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = NewPostgresFromDB(db).WithTx(context.Background(), func(tx *sql.Tx) error {
			_, err := tx.Exec("DELETE FROM t")
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err = NewPostgresFromDB(db).WithTx(context.Background(), func(tx *sql.Tx) error {
			return fmt.Errorf("insert failed")
		})
		assert.EqualError(t, err, "insert failed")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestWithReadTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mock.ExpectQuery("SELECT 2").WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	mock.ExpectCommit()

	var a, b int
	err = NewPostgresFromDB(db).WithReadTx(context.Background(), func(tx *sql.Tx) error {
		if err := tx.QueryRow("SELECT 1").Scan(&a); err != nil {
			return err
		}
		return tx.QueryRow("SELECT 2").Scan(&b)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.NoError(t, mock.ExpectationsWereMet())
}
