package cache

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLCache(t *testing.T) (*SQLCacheService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLCacheService(db), mock
}

func TestSQLCacheService_Set(t *testing.T) {
	svc, mock := setupSQLCache(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cache_entries`)).
		WithArgs("k", []byte("v"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cache_tags WHERE cache_key = $1`)).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cache_tags (tag, cache_key) VALUES ($1, $2)`)).
		WithArgs("posts", "k").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.Set(context.Background(), "k", []byte("v"), []string{"posts"}, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCacheService_SetRollsBack(t *testing.T) {
	svc, mock := setupSQLCache(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO cache_entries`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	assert.Error(t, svc.Set(context.Background(), "k", []byte("v"), nil, time.Minute))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCacheService_Get(t *testing.T) {
	svc, mock := setupSQLCache(t)
	query := regexp.QuoteMeta(`SELECT key, data, ttl, created_at FROM cache_entries WHERE key = $1`)
	columns := []string{"key", "data", "ttl", "created_at"}
	now := time.Now()

	mock.ExpectQuery(query).WithArgs("hit").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("hit", []byte("v"), now.Add(time.Minute).Unix(), now.Unix()))
	data, err := svc.Get(context.Background(), "hit")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), data)

	mock.ExpectQuery(query).WithArgs("miss").WillReturnError(sql.ErrNoRows)
	data, err = svc.Get(context.Background(), "miss")
	require.NoError(t, err)
	assert.Nil(t, data)

	mock.ExpectQuery(query).WithArgs("old").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("old", []byte("v"), now.Add(-time.Minute).Unix(), now.Unix()))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cache_entries WHERE key = $1`)).WithArgs("old").
		WillReturnResult(sqlmock.NewResult(0, 1))
	data, err = svc.Get(context.Background(), "old")
	require.NoError(t, err)
	assert.Nil(t, data)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCacheService_Invalidate(t *testing.T) {
	svc, mock := setupSQLCache(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cache_entries WHERE key IN`)).
		WithArgs(pq.Array([]string{"posts"})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cache_tags WHERE tag = ANY($1)`)).
		WithArgs(pq.Array([]string{"posts"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, svc.Invalidate(context.Background(), "posts"))
	assert.NoError(t, svc.Invalidate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCacheService_EnsureSchema(t *testing.T) {
	svc, mock := setupSQLCache(t)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS cache_entries`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, svc.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
