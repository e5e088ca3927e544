package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rpupo63/diary-backend/models"
)

// EntrySort selects the ordering of entries listed under a tag.
type EntrySort string

const (
	SortNewest  EntrySort = "newest"
	SortOldest  EntrySort = "oldest"
	SortPopular EntrySort = "popular"
)

// ParseEntrySort maps a query value to a sort order. Anything unrecognized,
// including the empty string, is SortNewest.
func ParseEntrySort(s string) EntrySort {
	switch EntrySort(s) {
	case SortOldest:
		return SortOldest
	case SortPopular:
		return SortPopular
	default:
		return SortNewest
	}
}

func (s EntrySort) orderClause() string {
	switch s {
	case SortOldest:
		return "diary_entries.date ASC, diary_entries.created_at ASC"
	case SortPopular:
		return "diary_entries.views_count DESC, diary_entries.created_at DESC"
	default:
		return "diary_entries.date DESC, diary_entries.created_at DESC"
	}
}

type DiaryEntryRepo struct {
	db *gorm.DB
}

func NewDiaryEntryRepo(db *gorm.DB) *DiaryEntryRepo {
	return &DiaryEntryRepo{db}
}

// FindByID returns an entry by its ID with its tags
func (r *DiaryEntryRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.DiaryEntry, error) {
	var entry models.DiaryEntry
	err := r.db.WithContext(ctx).Preload("Tags").First(&entry, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindOwned returns the entry only when userID owns it; otherwise it reports
// gorm.ErrRecordNotFound, the same as a missing entry.
func (r *DiaryEntryRepo) FindOwned(ctx context.Context, id, userID uuid.UUID) (*models.DiaryEntry, error) {
	var entry models.DiaryEntry
	err := r.db.WithContext(ctx).Preload("Tags").
		Where("id = ? AND user_id = ?", id, userID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByUser lists a user's entries, newest date first.
func (r *DiaryEntryRepo) FindByUser(ctx context.Context, userID uuid.UUID) ([]models.DiaryEntry, error) {
	var entries []models.DiaryEntry
	err := r.db.WithContext(ctx).Preload("Tags").
		Where("user_id = ?", userID).
		Order(SortNewest.orderClause()).
		Find(&entries).Error
	return entries, err
}

// FindByDate lists every entry dated day.
func (r *DiaryEntryRepo) FindByDate(ctx context.Context, day time.Time) ([]models.DiaryEntry, error) {
	var entries []models.DiaryEntry
	err := r.db.WithContext(ctx).Preload("Tags").
		Where("date = ?", models.DateOf(day)).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// FindByMonth lists the entries dated within the given month, oldest first.
func (r *DiaryEntryRepo) FindByMonth(ctx context.Context, year int, month time.Month) ([]models.DiaryEntry, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	var entries []models.DiaryEntry
	err := r.db.WithContext(ctx).
		Where("date >= ? AND date < ?", models.DateOf(first), models.DateOf(next)).
		Order("date ASC, created_at ASC").
		Find(&entries).Error
	return entries, err
}

// FindByTag lists the entries carrying tagID in the requested order.
func (r *DiaryEntryRepo) FindByTag(ctx context.Context, tagID uuid.UUID, sort EntrySort) ([]models.DiaryEntry, error) {
	var entries []models.DiaryEntry
	err := r.db.WithContext(ctx).Preload("Tags").
		Joins("JOIN diary_entry_tags ON diary_entry_tags.diary_entry_id = diary_entries.id").
		Where("diary_entry_tags.tag_id = ?", tagID).
		Order(sort.orderClause()).
		Find(&entries).Error
	return entries, err
}

// Search matches title, content or owner email, for the admin listing.
func (r *DiaryEntryRepo) Search(ctx context.Context, query string, limit, offset int) ([]models.DiaryEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.DiaryEntry{}).
		Joins("JOIN users ON users.id = diary_entries.user_id")
	if query != "" {
		p := likePattern(query)
		q = q.Where(`LOWER(diary_entries.title) LIKE ? ESCAPE '\' OR LOWER(diary_entries.content) LIKE ? ESCAPE '\' OR LOWER(users.email) LIKE ? ESCAPE '\'`, p, p, p)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []models.DiaryEntry
	err := q.Preload("Tags").
		Order(SortNewest.orderClause()).
		Limit(limit).Offset(offset).
		Find(&entries).Error
	return entries, total, err
}

// Add inserts a new entry without touching its tag associations.
func (r *DiaryEntryRepo) Add(ctx context.Context, entry *models.DiaryEntry) error {
	return r.db.WithContext(ctx).Omit("Tags").Create(entry).Error
}

// UpdateFields saves the editable columns of entry. The owner and the view
// counter are never written here.
func (r *DiaryEntryRepo) UpdateFields(ctx context.Context, entry *models.DiaryEntry) error {
	res := r.db.WithContext(ctx).Model(entry).
		Select("Title", "Date", "Content", "ImageKey", "UpdatedAt").
		Omit("Tags").
		Updates(entry)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes the entry and its tag links. The tags themselves remain.
func (r *DiaryEntryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM diary_entry_tags WHERE diary_entry_id = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.DiaryEntry{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AttachTags links tags to entry. Links that already exist are kept as is.
func (r *DiaryEntryRepo) AttachTags(ctx context.Context, entry *models.DiaryEntry, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(entry).Association("Tags").Append(tags)
}

// DetachTags unlinks tags from entry.
func (r *DiaryEntryRepo) DetachTags(ctx context.Context, entry *models.DiaryEntry, tags []models.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(entry).Association("Tags").Delete(tags)
}

// LoadTags refreshes entry.Tags from the database.
func (r *DiaryEntryRepo) LoadTags(ctx context.Context, entry *models.DiaryEntry) error {
	var tags []models.Tag
	if err := r.db.WithContext(ctx).Model(entry).Order("name").Association("Tags").Find(&tags); err != nil {
		return err
	}
	entry.Tags = tags
	return nil
}

// IncrementViews atomically bumps the view counter and returns the new value.
func (r *DiaryEntryRepo) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	var views int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DiaryEntry{}).
			Where("id = ?", id).
			UpdateColumn("views_count", gorm.Expr("views_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.DiaryEntry{}).Select("views_count").Where("id = ?", id).Scan(&views).Error
	})
	return views, err
}
