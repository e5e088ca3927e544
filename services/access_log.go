package services

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/models"
)

const (
	UnknownIP        = "unknown"
	UnknownUserAgent = "Unknown"
)

// ClientIP is the first X-Forwarded-For hop, else the host of the connection
// address, else "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if r.RemoteAddr == "" {
		return UnknownIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if host == "" {
		return UnknownIP
	}
	return host
}

// NewVisit describes the request r made by user (nil for anonymous visitors).
func NewVisit(r *http.Request, user *models.User) *models.AccessLog {
	visit := &models.AccessLog{
		IPAddress: ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if visit.UserAgent == "" {
		visit.UserAgent = UnknownUserAgent
	}
	if ref := r.Referer(); ref != "" {
		visit.Referer = &ref
	}
	if user != nil {
		id := user.ID
		visit.UserID = &id
	}
	return visit
}

// RecordVisit writes one access log row for r.
func RecordVisit(ctx context.Context, logs *database.AccessLogRepo, r *http.Request, user *models.User) (uuid.UUID, error) {
	visit := NewVisit(r, user)
	if err := logs.Add(ctx, visit); err != nil {
		return uuid.Nil, err
	}
	return visit.ID, nil
}
