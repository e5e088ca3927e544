package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AccessLog is an append-only record of one home-page visit.
type AccessLog struct {
	ID        uuid.UUID  `json:"id" db:"id" gorm:"type:uuid;primaryKey;not null"`
	Timestamp time.Time  `json:"timestamp" db:"timestamp" gorm:"not null;index:idx_access_logs_timestamp"`
	IPAddress string     `json:"ipAddress" db:"ip_address" gorm:"type:varchar(64);not null"`
	UserAgent string     `json:"userAgent" db:"user_agent" gorm:"type:text;not null"`
	Referer   *string    `json:"referer,omitempty" db:"referer" gorm:"type:text"`
	UserID    *uuid.UUID `json:"userId,omitempty" db:"user_id" gorm:"type:uuid;index:idx_access_logs_user_id"`

	User *User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:SET NULL"`
}

func (l *AccessLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	return nil
}

// Visitor is the email of the logged-in user, or "guest".
func (l AccessLog) Visitor() string {
	if l.User != nil {
		return l.User.Email
	}
	return "guest"
}
