package model

import (
	"strings"
	"time"
)

const TitleMaxLength = 100

// Post is the only persisted entity: a short authored text with an optional image.
type Post struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Title     string    `bson:"title" json:"title"`
	Content   string    `bson:"content" json:"content"`
	Author    string    `bson:"author" json:"author"`
	ImageURL  *string   `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// PostInput carries the fields required to create a post.
type PostInput struct {
	Title   string `json:"title" validate:"required,max=100"`
	Content string `json:"content" validate:"notblank"`
	Author  string `json:"author" validate:"required"`
}

// Normalize trims title and author. Content is kept exactly as written.
func (in PostInput) Normalize() PostInput {
	return PostInput{
		Title:   strings.TrimSpace(in.Title),
		Content: in.Content,
		Author:  strings.TrimSpace(in.Author),
	}
}

// PostUpdate is a partial replace. Nil fields are left untouched.
type PostUpdate struct {
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Author  *string `json:"author,omitempty"`
}

func (u PostUpdate) Normalize() PostUpdate {
	return PostUpdate{
		Title:   trimPtr(u.Title),
		Content: u.Content,
		Author:  trimPtr(u.Author),
	}
}

func (u PostUpdate) IsEmpty() bool {
	return u.Title == nil && u.Content == nil && u.Author == nil
}

// Apply copies the supplied fields onto post.
func (u PostUpdate) Apply(post *Post) {
	if u.Title != nil {
		post.Title = *u.Title
	}
	if u.Content != nil {
		post.Content = *u.Content
	}
	if u.Author != nil {
		post.Author = *u.Author
	}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}
