package api

import (
	"time"

	"github.com/rpupo63/diary-backend/auth"
	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/services"
)

// initializeHandlers creates and returns all handlers organized in a routeHandlers struct
func initializeHandlers(db database.Database, deps Dependencies, rd *renderer, secureCookies bool, startupTime time.Time) *routeHandlers {
	diary := services.NewDiary(db.DiaryEntryRepo(), db.TagRepo(), deps.Images)
	accounts := services.NewAccounts(db.UserRepo())

	return &routeHandlers{
		authHandler:   newAuthHandler(accounts, deps.Sessions, rd, secureCookies),
		entryHandler:  newEntryHandler(diary, db.DiaryEntryRepo(), db.TagRepo(), db.AccessLogRepo(), rd),
		tagHandler:    newTagHandler(db.TagRepo(), db.DiaryEntryRepo(), rd),
		apiHandler:    newAPIHandler(diary, db.DiaryEntryRepo(), db.TagRepo()),
		adminHandler:  newAdminHandler(diary, db.DiaryEntryRepo(), db.AccessLogRepo()),
		healthHandler: newHealthHandler(db, startupTime),
	}
}

// Dependencies are the collaborators main builds from configuration.
type Dependencies struct {
	Sessions *auth.Sessions
	Images   services.ImageStore
	// MediaRoot is served under /media/ when images live on local disk.
	MediaRoot string
}
