package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxTagNameLength bounds Tag.Name.
const MaxTagNameLength = 50

// Tag is a label shared between diary entries
type Tag struct {
	ID   uuid.UUID `json:"id" db:"id" gorm:"type:uuid;primaryKey;not null"`
	Name string    `json:"name" db:"name" gorm:"type:varchar(50);not null;uniqueIndex:idx_tags_name"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
