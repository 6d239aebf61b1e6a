package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/inkwell/internal/model"
	"github.com/sakif/inkwell/internal/repository"
)

// TaxonomyService manages categories, tags and the tag links on posts.
//
// DELETE SEMANTICS:
// Deleting a category deletes every post filed under it. Deleting a tag
// only unlinks it from its posts.
type TaxonomyService struct {
	repo   repository.TaxonomyRepository
	logger *slog.Logger
}

func NewTaxonomyService(repo repository.TaxonomyRepository, logger *slog.Logger) *TaxonomyService {
	return &TaxonomyService{
		repo:   repo,
		logger: logger,
	}
}

func validateTaxonomy(name, slug string) (string, string, error) {
	name, err := requireText("name", "name", name, model.MaxTaxonomyNameLength)
	if err != nil {
		return "", "", err
	}
	slug = strings.TrimSpace(slug)
	if err := maxText("slug", "slug", slug, model.MaxSlugLength); err != nil {
		return "", "", err
	}
	return name, slug, nil
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, name, slug string) (*model.Category, error) {
	name, slug, err := validateTaxonomy(name, slug)
	if err != nil {
		return nil, err
	}
	c := &model.Category{Name: name, Slug: slug}
	if err := s.repo.CreateCategory(ctx, c); err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	s.logger.Info("category created", slog.Int64("id", c.ID), slog.String("name", c.Name))
	return c, nil
}

func (s *TaxonomyService) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return s.repo.GetCategory(ctx, id)
}

func (s *TaxonomyService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// DeleteCategory removes the category and, with it, its posts.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	s.logger.Info("category deleted", slog.Int64("id", id))
	return nil
}

func (s *TaxonomyService) CreateTag(ctx context.Context, name, slug string) (*model.Tag, error) {
	name, slug, err := validateTaxonomy(name, slug)
	if err != nil {
		return nil, err
	}
	tag := &model.Tag{Name: name, Slug: slug}
	if err := s.repo.CreateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}
	s.logger.Info("tag created", slog.Int64("id", tag.ID), slog.String("name", tag.Name))
	return tag, nil
}

func (s *TaxonomyService) GetTag(ctx context.Context, id int64) (*model.Tag, error) {
	return s.repo.GetTag(ctx, id)
}

func (s *TaxonomyService) ListTags(ctx context.Context) ([]model.Tag, error) {
	return s.repo.ListTags(ctx)
}

func (s *TaxonomyService) DeleteTag(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	s.logger.Info("tag deleted", slog.Int64("id", id))
	return nil
}

// AttachTag links a tag to a post. Attaching twice is a no-op.
func (s *TaxonomyService) AttachTag(ctx context.Context, postID, tagID int64) error {
	if err := s.repo.AttachTag(ctx, postID, tagID); err != nil {
		return fmt.Errorf("attaching tag %d to post %d: %w", tagID, postID, err)
	}
	return nil
}

// DetachTag unlinks a tag from a post. Detaching a tag the post does not
// carry is a no-op.
func (s *TaxonomyService) DetachTag(ctx context.Context, postID, tagID int64) error {
	if err := s.repo.DetachTag(ctx, postID, tagID); err != nil {
		return fmt.Errorf("detaching tag %d from post %d: %w", tagID, postID, err)
	}
	return nil
}

func (s *TaxonomyService) TagsForPost(ctx context.Context, postID int64) ([]model.Tag, error) {
	return s.repo.TagsForPost(ctx, postID)
}
