package controller

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/rpc"
	"github.com/klass-lk/postboard/internal/server"
)

// PostProcedures exposes the post service as posts.* procedures.
type PostProcedures struct {
	postService PostService
}

func NewPostProcedures(postService PostService) *PostProcedures {
	return &PostProcedures{postService: postService}
}

// PostID accepts either a bare JSON string or {"id": "..."}.
type PostID string

func (p *PostID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*p = PostID(id)
		return nil
	}
	var wrapped struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*p = PostID(wrapped.ID)
	return nil
}

type CreatePostInput struct {
	Title       string `json:"title"`
	Content     string `json:"content"`
	Author      string `json:"author"`
	ImageBase64 string `json:"imageBase64,omitempty"`
	ImageName   string `json:"imageName,omitempty"`
}

type UpdatePostInput struct {
	ID      string  `json:"id"`
	Title   *string `json:"title,omitempty"`
	Content *string `json:"content,omitempty"`
	Author  *string `json:"author,omitempty"`
}

func (p *PostProcedures) Register(router *rpc.Router) {
	rpc.Query(router, "posts.getAll", p.getAll)
	rpc.Query(router, "posts.getById", p.getByID)
	rpc.Mutation(router, "posts.create", p.create)
	rpc.Mutation(router, "posts.update", p.update)
	rpc.Mutation(router, "posts.delete", p.delete)
}

func (p *PostProcedures) getAll(ctx context.Context, _ struct{}) ([]model.Post, error) {
	posts, err := p.postService.ListPosts(ctx)
	if err != nil {
		return nil, server.FromError(err, "Failed to fetch posts")
	}
	return posts, nil
}

func (p *PostProcedures) getByID(ctx context.Context, id PostID) (model.Post, error) {
	post, err := p.postService.GetPost(ctx, string(id))
	if err != nil {
		return model.Post{}, server.FromError(err, "Failed to fetch post")
	}
	return post, nil
}

// create reports field errors before touching the image payload.
func (p *PostProcedures) create(ctx context.Context, in CreatePostInput) (model.Post, error) {
	input := model.PostInput{Title: in.Title, Content: in.Content, Author: in.Author}
	if err := p.postService.ValidateInput(input); err != nil {
		return model.Post{}, server.FromError(err, "Failed to create post")
	}
	image, err := decodeImage(in.ImageBase64, in.ImageName)
	if err != nil {
		return model.Post{}, server.FromError(err, "Failed to create post")
	}

	post, err := p.postService.CreatePost(ctx, input, image)
	if err != nil {
		return model.Post{}, server.FromError(err, "Failed to create post")
	}
	return post, nil
}

func (p *PostProcedures) update(ctx context.Context, in UpdatePostInput) (model.Post, error) {
	update := model.PostUpdate{Title: in.Title, Content: in.Content, Author: in.Author}
	post, err := p.postService.UpdatePost(ctx, in.ID, update)
	if err != nil {
		return model.Post{}, server.FromError(err, "Failed to update post")
	}
	return post, nil
}

func (p *PostProcedures) delete(ctx context.Context, id PostID) (DeletePostResponse, error) {
	removed, err := p.postService.DeletePost(ctx, string(id))
	if err != nil {
		return DeletePostResponse{}, server.FromError(err, "Failed to delete post")
	}
	return DeletePostResponse{ID: removed.ID}, nil
}

// decodeImage turns a base64 string, optionally a data URL, into an upload payload.
// An empty string means no image.
func decodeImage(encoded, name string) (*model.UploadPayload, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	if strings.HasPrefix(encoded, "data:") {
		comma := strings.IndexByte(encoded, ',')
		if comma < 0 {
			return nil, model.NewValidationError("Invalid image data", "imageBase64")
		}
		encoded = encoded[comma+1:]
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, model.NewValidationError("Invalid image data", "imageBase64")
	}
	return model.NewUploadPayload(data, name), nil
}
