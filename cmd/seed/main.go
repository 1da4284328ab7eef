// Command seed fills the configured store with fake posts.
package main

import (
	"context"
	"flag"
	"log"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/klass-lk/postboard/internal/bootstrap"
	"github.com/klass-lk/postboard/internal/config"
	"github.com/klass-lk/postboard/internal/logging"
	"github.com/klass-lk/postboard/internal/model"
	"github.com/klass-lk/postboard/internal/service"
	"github.com/klass-lk/postboard/internal/storage"
	"go.uber.org/zap"
)

func main() {
	count := flag.Int("count", 20, "number of posts to create")
	seed := flag.Int64("seed", 0, "gofakeit seed, 0 for random")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	flush, err := logging.Install(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer flush()

	ctx := context.Background()
	repo, closeRepo, err := bootstrap.OpenRepository(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to open store", zap.Error(err))
	}
	defer closeRepo(ctx)

	posts := service.NewPostService(repo, storage.NewLocalFileService(cfg.UploadDir))
	faker := gofakeit.New(*seed)
	for i := 0; i < *count; i++ {
		post, err := posts.CreatePost(ctx, fakePost(faker), nil)
		if err != nil {
			zap.L().Fatal("Failed to create post", zap.Int("index", i), zap.Error(err))
		}
		zap.L().Info("Created post", zap.String("id", post.ID), zap.String("title", post.Title))
	}
}

func fakePost(faker *gofakeit.Faker) model.PostInput {
	title := strings.TrimSuffix(faker.Sentence(5), ".")
	if len(title) > model.TitleMaxLength {
		title = title[:model.TitleMaxLength]
	}
	return model.PostInput{
		Title:   title,
		Content: faker.Paragraph(1, 3, 12, "\n"),
		Author:  faker.Name(),
	}
}
