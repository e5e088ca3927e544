package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
)

// EntryInput is the data an entry form or API call submits.
type EntryInput struct {
	Title   string
	Content string
	// Date is nil when the form left it blank; the entry then gets today's date.
	Date *datatypes.Date
	// TagIDs are existing tags picked from the catalog.
	TagIDs []uuid.UUID
	// NewTags is a comma separated list of tag names to attach, created on demand.
	NewTags string
	// RemoveTagIDs is only read on edit.
	RemoveTagIDs []uuid.UUID
	Image        *Upload
	ClearImage   bool
}

// SaveResult is a saved entry plus any message about a rejected tag batch.
type SaveResult struct {
	Entry *models.DiaryEntry
	// TagWarning is set when the new-tag batch was refused. The entry itself
	// was still saved.
	TagWarning string
}

// Diary applies the entry lifecycle rules on top of the stores.
type Diary struct {
	entries *database.DiaryEntryRepo
	tags    *database.TagRepo
	images  ImageStore
	logger  zerolog.Logger
}

func NewDiary(entries *database.DiaryEntryRepo, tags *database.TagRepo, images ImageStore) *Diary {
	return &Diary{
		entries: entries,
		tags:    tags,
		images:  images,
		logger:  log.With().Str("service", "diary").Logger(),
	}
}

// ParseTagNames splits raw on commas, trims every name, drops blanks and
// duplicates, and rejects names longer than the tag limit.
func ParseTagNames(raw string) ([]string, error) {
	var names []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" || seen[name] {
			continue
		}
		if utf8.RuneCountInString(name) > models.MaxTagNameLength {
			return nil, errs.NewFieldError("new_tag", "Tag names can be at most 50 characters.")
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func validateEntry(in EntryInput) ([]string, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, errs.NewFieldError("content", "This field is required.")
	}
	if utf8.RuneCountInString(in.Title) > models.MaxTitleLength {
		return nil, errs.NewFieldError("title", "Ensure this value has at most 100 characters.")
	}
	if len(in.TagIDs) > models.MaxTagsPerEntry {
		return nil, errs.NewFieldError("tags", "You can select at most 20 tags.")
	}
	return ParseTagNames(in.NewTags)
}

func applyDate(in EntryInput) datatypes.Date {
	if in.Date == nil {
		return models.Today()
	}
	return *in.Date
}

// CreateEntry saves a new entry owned by owner, then attaches the selected tags
// and the new-tag batch.
func (d *Diary) CreateEntry(ctx context.Context, owner uuid.UUID, in EntryInput) (*SaveResult, error) {
	names, err := validateEntry(in)
	if err != nil {
		return nil, err
	}

	var image *PreparedImage
	if in.Image != nil {
		if image, err = PrepareImage(in.Title, *in.Image); err != nil {
			return nil, err
		}
	}

	entry := &models.DiaryEntry{
		UserID:  owner,
		Title:   strings.TrimSpace(in.Title),
		Date:    applyDate(in),
		Content: in.Content,
	}
	if image != nil {
		if err := d.images.Put(ctx, image.Key, image.Data, image.ContentType); err != nil {
			return nil, errs.NewInternalErrorWithCause("store image", err)
		}
		entry.ImageKey = &image.Key
	}

	if err := d.entries.Add(ctx, entry); err != nil {
		return nil, errs.NewDatabaseError("create", "diary_entry", err)
	}

	selected, err := d.tags.FindByIDs(ctx, in.TagIDs)
	if err != nil {
		return nil, errs.NewDatabaseError("find", "tag", err)
	}
	if err := d.entries.AttachTags(ctx, entry, selected); err != nil {
		return nil, errs.NewDatabaseError("attach", "tag", err)
	}
	entry.Tags = selected

	return d.finishTags(ctx, entry, nil, names)
}

// UpdateEntry edits an entry owned by owner. Base fields are saved first, then
// tags in RemoveTagIDs are detached, then the selected tags are attached as on
// create, then the new names as one batch. A refused batch leaves the
// detachment and the selected tags in place.
func (d *Diary) UpdateEntry(ctx context.Context, owner, id uuid.UUID, in EntryInput) (*SaveResult, error) {
	entry, err := d.OwnedEntry(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	names, err := validateEntry(in)
	if err != nil {
		return nil, err
	}

	var image *PreparedImage
	if in.Image != nil {
		if image, err = PrepareImage(in.Title, *in.Image); err != nil {
			return nil, err
		}
	}

	oldImage := entry.ImageKey
	entry.Title = strings.TrimSpace(in.Title)
	if entry.Title == "" {
		entry.Title = models.DefaultEntryTitle
	}
	entry.Date = applyDate(in)
	entry.Content = in.Content
	switch {
	case image != nil:
		if err := d.images.Put(ctx, image.Key, image.Data, image.ContentType); err != nil {
			return nil, errs.NewInternalErrorWithCause("store image", err)
		}
		entry.ImageKey = &image.Key
	case in.ClearImage:
		entry.ImageKey = nil
	}

	if err := d.entries.UpdateFields(ctx, entry); err != nil {
		return nil, errs.NewDatabaseError("update", "diary_entry", err)
	}
	if oldImage != nil && (entry.ImageKey == nil || *entry.ImageKey != *oldImage) {
		d.dropImage(ctx, *oldImage)
	}

	var remove []models.Tag
	for _, t := range entry.Tags {
		for _, rid := range in.RemoveTagIDs {
			if t.ID == rid {
				remove = append(remove, t)
				break
			}
		}
	}
	if err := d.entries.DetachTags(ctx, entry, remove); err != nil {
		return nil, errs.NewDatabaseError("detach", "tag", err)
	}
	if err := d.entries.LoadTags(ctx, entry); err != nil {
		return nil, errs.NewDatabaseError("find", "tag", err)
	}

	selected, err := d.tags.FindByIDs(ctx, in.TagIDs)
	if err != nil {
		return nil, errs.NewDatabaseError("find", "tag", err)
	}
	var added []models.Tag
	for _, t := range selected {
		if !hasTag(entry.Tags, t.ID) {
			added = append(added, t)
		}
	}
	// Selected tags that no longer fit are refused along with the new names.
	if len(entry.Tags)+len(added) > models.MaxTagsPerEntry {
		return d.finishTags(ctx, entry, added, names)
	}
	if err := d.entries.AttachTags(ctx, entry, added); err != nil {
		return nil, errs.NewDatabaseError("attach", "tag", err)
	}
	if err := d.entries.LoadTags(ctx, entry); err != nil {
		return nil, errs.NewDatabaseError("find", "tag", err)
	}
	return d.finishTags(ctx, entry, nil, names)
}

func hasTag(tags []models.Tag, id uuid.UUID) bool {
	for _, t := range tags {
		if t.ID == id {
			return true
		}
	}
	return false
}

// finishTags attaches the extra tags and the names not already on entry,
// unless that would push it past the tag limit, in which case the whole batch
// is refused.
func (d *Diary) finishTags(ctx context.Context, entry *models.DiaryEntry, extra []models.Tag, names []string) (*SaveResult, error) {
	result := &SaveResult{Entry: entry}

	attached := make(map[string]bool, len(entry.Tags))
	for _, t := range entry.Tags {
		attached[t.Name] = true
	}
	var batch []models.Tag
	for _, t := range extra {
		if !attached[t.Name] {
			attached[t.Name] = true
			batch = append(batch, t)
		}
	}
	var fresh []string
	for _, name := range names {
		if !attached[name] {
			fresh = append(fresh, name)
		}
	}

	if total := len(entry.Tags) + len(batch) + len(fresh); total > models.MaxTagsPerEntry {
		result.TagWarning = errs.NewTagLimitError(models.MaxTagsPerEntry, total).Message()
		d.logger.Info().Str("entryID", entry.ID.String()).Int("requested", total).Msg("Tag batch refused")
	} else if len(batch)+len(fresh) > 0 {
		for _, name := range fresh {
			tag, _, err := d.tags.GetOrCreate(ctx, name)
			if err != nil {
				return nil, errs.NewDatabaseError("create", "tag", err)
			}
			batch = append(batch, *tag)
		}
		if err := d.entries.AttachTags(ctx, entry, batch); err != nil {
			return nil, errs.NewDatabaseError("attach", "tag", err)
		}
	}

	if err := d.entries.LoadTags(ctx, entry); err != nil {
		return nil, errs.NewDatabaseError("find", "tag", err)
	}
	return result, nil
}

// Entry returns any entry by id.
func (d *Diary) Entry(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error) {
	entry, err := d.entries.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "diary entry")
	}
	return entry, nil
}

// OwnedEntry returns the entry only when owner owns it. Entries of other users
// are reported as not found.
func (d *Diary) OwnedEntry(ctx context.Context, owner, id uuid.UUID) (*models.DiaryEntry, error) {
	entry, err := d.entries.FindOwned(ctx, id, owner)
	if err != nil {
		return nil, notFoundOr(err, "diary entry")
	}
	return entry, nil
}

// ViewEntry loads an entry for display and counts the view.
func (d *Diary) ViewEntry(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error) {
	views, err := d.entries.IncrementViews(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "diary entry")
	}
	entry, err := d.Entry(ctx, id)
	if err != nil {
		return nil, err
	}
	entry.ViewsCount = views
	return entry, nil
}

// DeleteEntry removes an entry owned by owner together with its image.
func (d *Diary) DeleteEntry(ctx context.Context, owner, id uuid.UUID) error {
	entry, err := d.OwnedEntry(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := d.entries.Delete(ctx, entry.ID); err != nil {
		return notFoundOr(err, "diary entry")
	}
	if entry.ImageKey != nil {
		d.dropImage(ctx, *entry.ImageKey)
	}
	return nil
}

// ImageURL resolves the public url of entry's image, or "" when it has none.
func (d *Diary) ImageURL(ctx context.Context, entry *models.DiaryEntry) string {
	if entry.ImageKey == nil || d.images == nil {
		return ""
	}
	url, err := d.images.URL(ctx, *entry.ImageKey)
	if err != nil {
		d.logger.Error().Err(err).Str("key", *entry.ImageKey).Msg("Error resolving image url")
		return ""
	}
	return url
}

func (d *Diary) dropImage(ctx context.Context, key string) {
	if err := d.images.Delete(ctx, key); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("Error deleting replaced image")
	}
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NewNotFound(entity)
	}
	return errs.NewDatabaseError("find", entity, err)
}
