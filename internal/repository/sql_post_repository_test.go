package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/klass-lk/postboard/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sqlColumns = []string{"id", "title", "content", "author", "image_url", "created_at", "updated_at"}

func newSQLMockRepo(t *testing.T) (*SQLPostRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLPostRepository(db), mock
}

func TestSQLPostRepository_Insert(t *testing.T) {
	repo, mock := newSQLMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO posts (" + postColumns + ")")).
		WithArgs(sqlmock.AnyArg(), "Hello", "World", "Ann", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := repo.Insert(context.Background(), model.Post{Title: "Hello", Content: "World", Author: "Ann"})
	require.NoError(t, err)

	_, err = uuid.Parse(saved.ID)
	assert.NoError(t, err)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.Equal(t, saved.CreatedAt, saved.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPostRepository_FindAll(t *testing.T) {
	repo, mock := newSQLMockRepo(t)
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(sqlColumns).
		AddRow("0190a0b0-0000-7000-8000-000000000002", "P2", "c", "a", "/uploads/x.png", ts.Add(time.Second), ts.Add(time.Second)).
		AddRow("0190a0b0-0000-7000-8000-000000000001", "P1", "c", "a", nil, ts, ts)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC, id DESC")).WillReturnRows(rows)

	posts, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "P2", posts[0].Title)
	require.NotNil(t, posts[0].ImageURL)
	assert.Equal(t, "/uploads/x.png", *posts[0].ImageURL)
	assert.Nil(t, posts[1].ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPostRepository_FindAllEmpty(t *testing.T) {
	repo, mock := newSQLMockRepo(t)
	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows(sqlColumns))

	posts, err := repo.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestSQLPostRepository_FindByID(t *testing.T) {
	id := "0190a0b0-0000-7000-8000-000000000001"

	t.Run("Found", func(t *testing.T) {
		repo, mock := newSQLMockRepo(t)
		ts := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).WithArgs(id).
			WillReturnRows(sqlmock.NewRows(sqlColumns).AddRow(id, "T", "C", "A", nil, ts, ts))

		post, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, post.ID)
	})

	t.Run("Missing", func(t *testing.T) {
		repo, mock := newSQLMockRepo(t)
		mock.ExpectQuery("SELECT").WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := repo.FindByID(context.Background(), id)
		assert.ErrorIs(t, err, model.ErrPostNotFound)
	})

	t.Run("Malformed id", func(t *testing.T) {
		repo, mock := newSQLMockRepo(t)
		_, err := repo.FindByID(context.Background(), "nope")
		assert.ErrorIs(t, err, model.ErrInvalidID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSQLPostRepository_Update(t *testing.T) {
	repo, mock := newSQLMockRepo(t)
	id := "0190a0b0-0000-7000-8000-000000000001"
	ts := time.Now().UTC()
	title := "New title"

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE posts SET updated_at = $1, title = $2 WHERE id = $3 RETURNING")).
		WithArgs(sqlmock.AnyArg(), title, id).
		WillReturnRows(sqlmock.NewRows(sqlColumns).AddRow(id, title, "C", "A", nil, ts, ts))

	post, err := repo.Update(context.Background(), id, model.PostUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, post.Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLPostRepository_Delete(t *testing.T) {
	id := "0190a0b0-0000-7000-8000-000000000001"

	t.Run("Returns removed record", func(t *testing.T) {
		repo, mock := newSQLMockRepo(t)
		ts := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM posts WHERE id = $1 RETURNING")).WithArgs(id).
			WillReturnRows(sqlmock.NewRows(sqlColumns).AddRow(id, "T", "C", "A", "/uploads/a.png", ts, ts))

		removed, err := repo.Delete(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, removed.ImageURL)
		assert.Equal(t, "/uploads/a.png", *removed.ImageURL)
	})

	t.Run("Missing", func(t *testing.T) {
		repo, mock := newSQLMockRepo(t)
		mock.ExpectQuery("DELETE").WithArgs(id).WillReturnError(sql.ErrNoRows)

		_, err := repo.Delete(context.Background(), id)
		assert.ErrorIs(t, err, model.ErrPostNotFound)
	})
}

func TestSQLPostRepository_EnsureSchema(t *testing.T) {
	repo, mock := newSQLMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS posts")).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
