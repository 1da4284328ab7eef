package controller

import (
	"context"
	"io"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klass-lk/postboard/internal/cache"
	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/server"
)

// PostService is what the transports need from the service layer.
type PostService interface {
	ListPosts(ctx context.Context) ([]model.Post, error)
	GetPost(ctx context.Context, id string) (model.Post, error)
	ValidateInput(in model.PostInput) error
	CreatePost(ctx context.Context, in model.PostInput, image *model.UploadPayload) (model.Post, error)
	UpdatePost(ctx context.Context, id string, update model.PostUpdate) (model.Post, error)
	DeletePost(ctx context.Context, id string) (model.Post, error)
}

type PostController struct {
	postService PostService
	cache       cache.CacheService
	cacheTTL    time.Duration
}

func NewPostController(postService PostService) *PostController {
	return &PostController{
		postService: postService,
	}
}

// WithCache serves the post list through the cache middleware.
func (c *PostController) WithCache(service cache.CacheService, ttl time.Duration) *PostController {
	c.cache = service
	c.cacheTTL = ttl
	return c
}

type PostIDRequest struct {
	ID string `uri:"id" form:"-" json:"-"`
}

type CreatePostRequest struct {
	Title   string                `json:"title" form:"title"`
	Content string                `json:"content" form:"content"`
	Author  string                `json:"author" form:"author"`
	Image   *multipart.FileHeader `json:"-" form:"image"`
}

type UpdatePostRequest struct {
	ID      string  `uri:"id" form:"-" json:"-"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Author  *string `json:"author"`
}

type DeletePostResponse struct {
	ID string `json:"id"`
}

func (c *PostController) Register(group *server.ControllerGroup) {
	var listMiddleware []gin.HandlerFunc
	if c.cache != nil {
		listMiddleware = append(listMiddleware,
			cache.CacheMiddleware(c.cache, c.cacheTTL, cache.StaticTags(cache.PostsTag), cache.DefaultKeyGenerator))
	}

	group.GET("", c.GetPosts, listMiddleware...)
	group.GET("/:id", c.GetPostById)
	group.POST("", c.CreatePost)
	group.PUT("/:id", c.UpdatePost)
	group.PATCH("/:id", c.UpdatePost)
	group.DELETE("/:id", c.DeletePost)
}

func (c *PostController) GetPosts(ctx *server.Context) ([]model.Post, error) {
	posts, err := c.postService.ListPosts(ctx.Request.Context())
	if err != nil {
		return nil, server.FromError(err, "Failed to fetch posts")
	}
	return posts, nil
}

func (c *PostController) GetPostById(ctx *server.Context, req PostIDRequest) (model.Post, error) {
	post, err := c.postService.GetPost(ctx.Request.Context(), req.ID)
	if err != nil {
		return model.Post{}, server.FromError(err, "Failed to fetch post")
	}
	return post, nil
}

func (c *PostController) CreatePost(ctx *server.Context, req CreatePostRequest) (model.Post, error) {
	image, err := readImage(req.Image)
	if err != nil {
		return model.Post{}, server.ErrBadRequest.New("Could not read image").WithFields("image")
	}

	input := model.PostInput{Title: req.Title, Content: req.Content, Author: req.Author}
	post, err := c.postService.CreatePost(ctx.Request.Context(), input, image)
	if err != nil {
		return model.Post{}, server.FromError(err, "Failed to create post")
	}
	ctx.Created()
	return post, nil
}

func (c *PostController) UpdatePost(ctx *server.Context, req UpdatePostRequest) (model.Post, error) {
	update := model.PostUpdate{Title: req.Title, Content: req.Content, Author: req.Author}
	post, err := c.postService.UpdatePost(ctx.Request.Context(), req.ID, update)
	if err != nil {
		return model.Post{}, server.FromError(err, "Failed to update post")
	}
	return post, nil
}

func (c *PostController) DeletePost(ctx *server.Context, req PostIDRequest) (DeletePostResponse, error) {
	removed, err := c.postService.DeletePost(ctx.Request.Context(), req.ID)
	if err != nil {
		return DeletePostResponse{}, server.FromError(err, "Failed to delete post")
	}
	return DeletePostResponse{ID: removed.ID}, nil
}

func readImage(header *multipart.FileHeader) (*model.UploadPayload, error) {
	if header == nil {
		return nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return model.NewUploadPayload(data, filepath.Base(header.Filename)), nil
}

