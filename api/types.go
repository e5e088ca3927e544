package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/rpupo63/diary-backend/models"
)

// routeHandlers contains all the handlers for different route types
type routeHandlers struct {
	authHandler   authHandler
	entryHandler  entryHandler
	tagHandler    tagHandler
	apiHandler    apiHandler
	adminHandler  adminHandler
	healthHandler healthHandler
}

// ErrorResponse represents an error response from the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Status  string `json:"status"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

type TagResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type EntryResponse struct {
	ID         uuid.UUID     `json:"id"`
	User       uuid.UUID     `json:"user"`
	Title      string        `json:"title"`
	Date       string        `json:"date"`
	Content    string        `json:"content"`
	Image      *string       `json:"image"`
	ViewsCount int64         `json:"viewsCount"`
	Tags       []TagResponse `json:"tags"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// EntryRequest is the body of entry create and update calls. Date is
// YYYY-MM-DD and may be empty.
type EntryRequest struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type AccessLogResponse struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	Referer   *string   `json:"referer"`
	User      string    `json:"user"`
}

// PageResponse is one page of an admin listing.
type PageResponse[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	StartedAt time.Time `json:"startedAt"`
	Uptime    string    `json:"uptime"`
}

func newTagResponses(tags []models.Tag) []TagResponse {
	out := make([]TagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, TagResponse{ID: t.ID, Name: t.Name})
	}
	return out
}

func newAccessLogResponse(l models.AccessLog) AccessLogResponse {
	return AccessLogResponse{
		ID:        l.ID,
		Timestamp: l.Timestamp,
		IPAddress: l.IPAddress,
		UserAgent: l.UserAgent,
		Referer:   l.Referer,
		User:      l.Visitor(),
	}
}
