package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
)

// CreateTag adds a tag to the catalog. Duplicate names are a form error.
func CreateTag(ctx context.Context, tags *database.TagRepo, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.NewFieldError("name", "This field is required.")
	}
	if utf8.RuneCountInString(name) > models.MaxTagNameLength {
		return nil, errs.NewFieldError("name", "Ensure this value has at most 50 characters.")
	}

	tag := &models.Tag{Name: name}
	if err := tags.Add(ctx, tag); err != nil {
		if errs.IsAlreadyExists(err) {
			return nil, errs.NewFieldError("name", "Tag with this name already exists.")
		}
		return nil, errs.NewDatabaseError("create", "tag", err)
	}
	return tag, nil
}
