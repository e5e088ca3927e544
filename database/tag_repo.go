package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
)

type TagRepo struct {
	db *gorm.DB
}

func NewTagRepo(db *gorm.DB) *TagRepo {
	return &TagRepo{db}
}

// FindAll returns all tags ordered by name
func (r *TagRepo) FindAll(ctx context.Context) ([]models.Tag, error) {
	var tags []models.Tag
	err := r.db.WithContext(ctx).Order("name").Find(&tags).Error
	return tags, err
}

func (r *TagRepo) FindByName(ctx context.Context, name string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindByIDs returns the tags among ids that exist; unknown ids are skipped.
func (r *TagRepo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tags []models.Tag
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name").Find(&tags).Error
	return tags, err
}

// Add inserts a new tag. A taken name yields errs.ErrAlreadyExists.
func (r *TagRepo) Add(ctx context.Context, tag *models.Tag) error {
	err := r.db.WithContext(ctx).Create(tag).Error
	if errs.IsUniqueViolation(err) {
		return errs.NewAlreadyExists("tag")
	}
	return err
}

// GetOrCreate returns the tag called name, creating it when missing. A
// concurrent insert of the same name is resolved by re-reading the winner.
func (r *TagRepo) GetOrCreate(ctx context.Context, name string) (*models.Tag, bool, error) {
	tag, err := r.FindByName(ctx, name)
	if err == nil {
		return tag, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	tag = &models.Tag{Name: name}
	if err := r.Add(ctx, tag); err != nil {
		if errs.IsAlreadyExists(err) {
			existing, findErr := r.FindByName(ctx, name)
			return existing, false, findErr
		}
		return nil, false, err
	}
	return tag, true, nil
}

// Search matches tag names containing query, ignoring case. An empty query
// returns every tag.
func (r *TagRepo) Search(ctx context.Context, query string) ([]models.Tag, error) {
	if query == "" {
		return r.FindAll(ctx)
	}
	var tags []models.Tag
	err := r.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, likePattern(query)).
		Order("name").
		Find(&tags).Error
	return tags, err
}
