package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	// MaxTagsPerEntry is the largest tag set an entry may carry.
	MaxTagsPerEntry = 20
	// DefaultEntryTitle replaces a blank title.
	DefaultEntryTitle = "untitled"
	MaxTitleLength    = 100
	// DateLayout is the wire format of entry dates.
	DateLayout = "2006-01-02"
)

// DiaryEntry is one dated post owned by a single user.
type DiaryEntry struct {
	ID         uuid.UUID      `json:"id" db:"id" gorm:"type:uuid;primaryKey;not null"`
	UserID     uuid.UUID      `json:"userId" db:"user_id" gorm:"type:uuid;not null;index:idx_diary_entries_user_id"`
	Title      string         `json:"title" db:"title" gorm:"type:varchar(100);not null;default:'untitled'"`
	Date       datatypes.Date `json:"date" db:"date" gorm:"not null;index:idx_diary_entries_date"`
	Content    string         `json:"content" db:"content" gorm:"type:text;not null"`
	ImageKey   *string        `json:"imageKey,omitempty" db:"image_key" gorm:"type:varchar(255)"`
	ViewsCount int64          `json:"viewsCount" db:"views_count" gorm:"not null;default:0"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time      `json:"updatedAt" db:"updated_at"`

	Tags []Tag `json:"tags" gorm:"many2many:diary_entry_tags;constraint:OnDelete:CASCADE"`
}

func (e *DiaryEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// BeforeSave applies the defaults every persisted entry must satisfy.
func (e *DiaryEntry) BeforeSave(tx *gorm.DB) error {
	if e.Title == "" {
		e.Title = DefaultEntryTitle
	}
	if time.Time(e.Date).IsZero() {
		e.Date = Today()
	}
	return nil
}

// Day returns the entry date as a time.Time at UTC midnight.
func (e DiaryEntry) Day() time.Time {
	return time.Time(e.Date)
}

// Now is replaced in tests to pin "today".
var Now = time.Now

// Today is the current calendar day as a date value.
func Today() datatypes.Date {
	return DateOf(Now())
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses a YYYY-MM-DD string strictly; 2024-02-30 is an error.
func ParseDate(s string) (datatypes.Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return datatypes.Date{}, err
	}
	return DateOf(t), nil
}
