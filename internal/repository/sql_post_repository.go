package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klass-lk/postboard/internal/model"
)

const postSchema = `
CREATE TABLE IF NOT EXISTS posts (
	id UUID PRIMARY KEY,
	title VARCHAR(100) NOT NULL,
	content TEXT NOT NULL,
	author TEXT NOT NULL,
	image_url TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at DESC, id DESC);`

const postColumns = "id, title, content, author, image_url, created_at, updated_at"

type SQLPostRepository struct {
	db *sql.DB
}

func NewSQLPostRepository(db *sql.DB) *SQLPostRepository {
	return &SQLPostRepository{db: db}
}

func (r *SQLPostRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, postSchema); err != nil {
		return fmt.Errorf("create posts schema: %w", err)
	}
	return nil
}

func (r *SQLPostRepository) Insert(ctx context.Context, post model.Post) (model.Post, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return model.Post{}, err
	}
	ts := now(time.Microsecond)
	post.ID = id.String()
	post.CreatedAt = ts
	post.UpdatedAt = ts

	query := fmt.Sprintf("INSERT INTO posts (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)", postColumns)
	_, err = r.db.ExecContext(ctx, query,
		post.ID, post.Title, post.Content, post.Author, nullString(post.ImageURL), post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return model.Post{}, err
	}
	return post, nil
}

func (r *SQLPostRepository) FindAll(ctx context.Context) ([]model.Post, error) {
	query := fmt.Sprintf("SELECT %s FROM posts ORDER BY created_at DESC, id DESC", postColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []model.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *SQLPostRepository) FindByID(ctx context.Context, id string) (model.Post, error) {
	if err := validateUUID(id); err != nil {
		return model.Post{}, err
	}
	query := fmt.Sprintf("SELECT %s FROM posts WHERE id = $1", postColumns)
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	return post, translateSQLError(err)
}

func (r *SQLPostRepository) Update(ctx context.Context, id string, update model.PostUpdate) (model.Post, error) {
	if err := validateUUID(id); err != nil {
		return model.Post{}, err
	}

	sets := []string{"updated_at = $1"}
	args := []interface{}{now(time.Microsecond)}
	addSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addSet("title", update.Title)
	addSet("content", update.Content)
	addSet("author", update.Author)
	args = append(args, id)

	query := fmt.Sprintf("UPDATE posts SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), postColumns)
	post, err := scanPost(r.db.QueryRowContext(ctx, query, args...))
	return post, translateSQLError(err)
}

func (r *SQLPostRepository) Delete(ctx context.Context, id string) (model.Post, error) {
	if err := validateUUID(id); err != nil {
		return model.Post{}, err
	}
	query := fmt.Sprintf("DELETE FROM posts WHERE id = $1 RETURNING %s", postColumns)
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	return post, translateSQLError(err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPost(row rowScanner) (model.Post, error) {
	var post model.Post
	var imageURL sql.NullString
	err := row.Scan(&post.ID, &post.Title, &post.Content, &post.Author, &imageURL, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return model.Post{}, err
	}
	if imageURL.Valid {
		post.ImageURL = &imageURL.String
	}
	post.CreatedAt = post.CreatedAt.UTC()
	post.UpdatedAt = post.UpdatedAt.UTC()
	return post, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func translateSQLError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrPostNotFound
	}
	return err
}
