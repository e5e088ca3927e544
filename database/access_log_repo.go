package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/rpupo63/diary-backend/models"
)

// AccessLogFilter narrows the admin listing. Query matches ip, user agent,
// referer or the visitor's email.
type AccessLogFilter struct {
	Query  string
	Limit  int
	Offset int
}

type AccessLogRepo struct {
	db *gorm.DB
}

func NewAccessLogRepo(db *gorm.DB) *AccessLogRepo {
	return &AccessLogRepo{db}
}

// Add appends a visit. Rows are never updated afterwards.
func (r *AccessLogRepo) Add(ctx context.Context, entry *models.AccessLog) error {
	return r.db.WithContext(ctx).Omit("User").Create(entry).Error
}

// List returns a page of logs, newest first, along with the total number of
// rows matching the filter.
func (r *AccessLogRepo) List(ctx context.Context, filter AccessLogFilter) ([]models.AccessLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.AccessLog{}).
		Joins("LEFT JOIN users ON users.id = access_logs.user_id")
	if filter.Query != "" {
		p := likePattern(filter.Query)
		q = q.Where(`LOWER(access_logs.ip_address) LIKE ? ESCAPE '\' OR LOWER(access_logs.user_agent) LIKE ? ESCAPE '\' OR LOWER(COALESCE(access_logs.referer, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(users.email, '')) LIKE ? ESCAPE '\'`, p, p, p, p)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("User").Order("access_logs.timestamp DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var logs []models.AccessLog
	err := q.Find(&logs).Error
	return logs, total, err
}
