package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an account identified by email.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id" gorm:"type:uuid;primaryKey;not null"`
	Email        string     `json:"email" db:"email" gorm:"type:varchar(254);not null;uniqueIndex:idx_users_email"`
	Username     *string    `json:"username,omitempty" db:"username" gorm:"type:varchar(30)"`
	PasswordHash string     `json:"-" db:"password_hash" gorm:"type:varchar(128);not null"`
	IsActive     bool       `json:"isActive" db:"is_active" gorm:"not null;default:true"`
	IsStaff      bool       `json:"isStaff" db:"is_staff" gorm:"not null;default:false"`
	IsSuperuser  bool       `json:"isSuperuser" db:"is_superuser" gorm:"not null;default:false"`
	DateJoined   time.Time  `json:"dateJoined" db:"date_joined" gorm:"not null"`
	LastLogin    *time.Time `json:"lastLogin,omitempty" db:"last_login"`

	Entries []DiaryEntry `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now().UTC()
	}
	return nil
}

// DisplayName is the username when set, otherwise the email.
func (u User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return *u.Username
	}
	return u.Email
}
