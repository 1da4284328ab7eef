package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestPostInputNormalize(t *testing.T) {
	in := PostInput{Title: "  Hello ", Content: "\tbody\n", Author: " Ann"}.Normalize()
	assert.Equal(t, PostInput{Title: "Hello", Content: "\tbody\n", Author: "Ann"}, in)
}

func TestPostUpdate(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.True(t, PostUpdate{}.IsEmpty())
		assert.False(t, PostUpdate{Author: strPtr("a")}.IsEmpty())
	})

	t.Run("Apply only touches supplied fields", func(t *testing.T) {
		post := Post{Title: "T", Content: "C", Author: "A"}
		PostUpdate{Title: strPtr(" New ")}.Normalize().Apply(&post)
		assert.Equal(t, "New", post.Title)
		assert.Equal(t, "C", post.Content)
		assert.Equal(t, "A", post.Author)
	})

	t.Run("Normalize keeps content whitespace", func(t *testing.T) {
		u := PostUpdate{Title: strPtr(" T "), Content: strPtr("  body\n")}.Normalize()
		assert.Equal(t, "T", *u.Title)
		assert.Equal(t, "  body\n", *u.Content)
	})
}

func TestUploadPayload(t *testing.T) {
	assert.Nil(t, NewUploadPayload(nil, "a.png"))
	assert.Nil(t, NewUploadPayload([]byte{}, "a.png"))

	var none *UploadPayload
	assert.False(t, none.Present())
	assert.Equal(t, int64(0), none.Size())

	p := NewUploadPayload([]byte("abc"), "a.png")
	assert.True(t, p.Present())
	assert.Equal(t, int64(3), p.Size())
}

func TestErrors(t *testing.T) {
	notFound := fmt.Errorf("get: %w", &NotFoundError{ID: "x"})
	assert.True(t, errors.Is(notFound, ErrPostNotFound))
	assert.Equal(t, "get: post with ID x not found", notFound.Error())

	v := NewValidationError(MissingFieldsMessage, "title", "author")
	assert.Equal(t, "Missing required fields: title, author", v.Error())
	assert.Equal(t, "Title too long", NewValidationError("Title too long").Error())

	cause := errors.New("disk full")
	var uploadErr *UploadError
	assert.True(t, errors.As(fmt.Errorf("create: %w", &UploadError{Op: "write", Err: cause}), &uploadErr))
	assert.ErrorIs(t, uploadErr, cause)
	assert.ErrorIs(t, &StorageError{Op: "insert", Err: cause}, cause)
}
