package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
	"github.com/rpupo63/diary-backend/services"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type adminHandler struct {
	responder     Responder
	logger        zerolog.Logger
	diary         *services.Diary
	entryRepo     *database.DiaryEntryRepo
	accessLogRepo *database.AccessLogRepo
}

func newAdminHandler(diary *services.Diary, entryRepo *database.DiaryEntryRepo, accessLogRepo *database.AccessLogRepo) adminHandler {
	logger := log.With().Str("handlerName", "adminHandler").Logger()

	return adminHandler{
		responder:     NewResponder(logger),
		logger:        logger,
		diary:         diary,
		entryRepo:     entryRepo,
		accessLogRepo: accessLogRepo,
	}
}

// pagination reads ?page= and ?page_size=. Pages start at 1.
func pagination(r *http.Request) (pageNum, size int, err error) {
	pageNum, size = 1, defaultPageSize
	q := r.URL.Query()
	if s := q.Get("page"); s != "" {
		if pageNum, err = strconv.Atoi(s); err != nil || pageNum < 1 {
			return 0, 0, errs.NewInvalidFieldError("page", "must be a positive integer")
		}
	}
	if s := q.Get("page_size"); s != "" {
		if size, err = strconv.Atoi(s); err != nil || size < 1 {
			return 0, 0, errs.NewInvalidFieldError("page_size", "must be a positive integer")
		}
		size = min(size, maxPageSize)
	}
	return pageNum, size, nil
}

// accessLogs lists visits, newest first, filtered by ?q=
func (h adminHandler) accessLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageNum, size, err := pagination(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		logs, total, err := h.accessLogRepo.List(r.Context(), database.AccessLogFilter{
			Query:  r.URL.Query().Get("q"),
			Limit:  size,
			Offset: (pageNum - 1) * size,
		})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find", "access_logs", err))
			return
		}

		items := make([]AccessLogResponse, 0, len(logs))
		for _, l := range logs {
			items = append(items, newAccessLogResponse(l))
		}
		h.responder.WriteJSON(w, PageResponse[AccessLogResponse]{
			Items:    items,
			Total:    total,
			Page:     pageNum,
			PageSize: size,
		})
	}
}

// exportAccessLogs downloads every visit matching ?q= as a spreadsheet
func (h adminHandler) exportAccessLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, _, err := h.accessLogRepo.List(r.Context(), database.AccessLogFilter{Query: r.URL.Query().Get("q")})
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find", "access_logs", err))
			return
		}

		var buf bytes.Buffer
		if err := services.WriteAccessLogsXLSX(&buf, logs); err != nil {
			h.responder.WriteError(w, errs.NewInternalErrorWithCause("export access logs", err))
			return
		}

		filename := fmt.Sprintf("access-logs-%s.xlsx", models.Now().UTC().Format("20060102-150405"))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			h.logger.Error().Err(err).Msg("error writing export")
		}
	}
}

// entries searches every user's entries by title, content or owner email
func (h adminHandler) entries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pageNum, size, err := pagination(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		entries, total, err := h.entryRepo.Search(r.Context(), r.URL.Query().Get("q"), size, (pageNum-1)*size)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find", "diary_entries", err))
			return
		}

		items := make([]EntryResponse, 0, len(entries))
		for i := range entries {
			items = append(items, newEntryResponse(r.Context(), h.diary, &entries[i]))
		}
		h.responder.WriteJSON(w, PageResponse[EntryResponse]{
			Items:    items,
			Total:    total,
			Page:     pageNum,
			PageSize: size,
		})
	}
}
