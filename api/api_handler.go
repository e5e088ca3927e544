package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
	"github.com/rpupo63/diary-backend/services"
)

const maxJSONBodySize = 1 << 20

// apiHandler serves the JSON API. Every entry route is scoped to the caller's
// own entries.
type apiHandler struct {
	responder Responder
	logger    zerolog.Logger
	diary     *services.Diary
	entryRepo *database.DiaryEntryRepo
	tagRepo   *database.TagRepo
}

func newAPIHandler(diary *services.Diary, entryRepo *database.DiaryEntryRepo, tagRepo *database.TagRepo) apiHandler {
	logger := log.With().Str("handlerName", "apiHandler").Logger()

	return apiHandler{
		responder: NewResponder(logger),
		logger:    logger,
		diary:     diary,
		entryRepo: entryRepo,
		tagRepo:   tagRepo,
	}
}

func newEntryResponse(ctx context.Context, diary *services.Diary, e *models.DiaryEntry) EntryResponse {
	resp := EntryResponse{
		ID:         e.ID,
		User:       e.UserID,
		Title:      e.Title,
		Date:       e.Day().Format(models.DateLayout),
		Content:    e.Content,
		ViewsCount: e.ViewsCount,
		Tags:       newTagResponses(e.Tags),
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
	if url := diary.ImageURL(ctx, e); url != "" {
		resp.Image = &url
	}
	return resp
}

// decodeEntryRequest reads an EntryRequest body into a diary input.
func decodeEntryRequest(w http.ResponseWriter, r *http.Request) (services.EntryInput, error) {
	var req EntryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return services.EntryInput{}, errs.NewInvalidJSONError(err)
	}

	in := services.EntryInput{Title: req.Title, Content: req.Content}
	if req.Date != "" {
		d, err := models.ParseDate(req.Date)
		if err != nil {
			return in, errs.NewFieldError("date", "Enter a valid date.")
		}
		in.Date = &d
	}
	return in, nil
}

// listEntries returns the caller's entries, newest first
func (h apiHandler) listEntries() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := ctxGetUser(r.Context())

		entries, err := h.entryRepo.FindByUser(r.Context(), user.ID)
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find", "diary_entries", err))
			return
		}

		out := make([]EntryResponse, 0, len(entries))
		for i := range entries {
			out = append(out, newEntryResponse(r.Context(), h.diary, &entries[i]))
		}
		h.responder.WriteJSON(w, out)
	}
}

// createEntry saves a new entry owned by the caller
func (h apiHandler) createEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, err := decodeEntryRequest(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		user := ctxGetUser(r.Context())
		res, err := h.diary.CreateEntry(r.Context(), user.ID, in)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		h.logger.Info().Str("entryID", res.Entry.ID.String()).Msg("Entry created")
		h.responder.WriteStatusJSON(w, http.StatusCreated, newEntryResponse(r.Context(), h.diary, res.Entry))
	}
}

// getEntry returns one of the caller's entries
func (h apiHandler) getEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := entryIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		user := ctxGetUser(r.Context())
		entry, err := h.diary.OwnedEntry(r.Context(), user.ID, id)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, newEntryResponse(r.Context(), h.diary, entry))
	}
}

// updateEntry replaces title, date and content of one of the caller's
// entries. Tags and image are left alone.
func (h apiHandler) updateEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := entryIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		in, err := decodeEntryRequest(w, r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		user := ctxGetUser(r.Context())
		res, err := h.diary.UpdateEntry(r.Context(), user.ID, id, in)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, newEntryResponse(r.Context(), h.diary, res.Entry))
	}
}

// deleteEntry removes one of the caller's entries
func (h apiHandler) deleteEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := entryIDParam(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		user := ctxGetUser(r.Context())
		if err := h.diary.DeleteEntry(r.Context(), user.ID, id); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// listTags returns the tag catalog
func (h apiHandler) listTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := h.tagRepo.FindAll(r.Context())
		if err != nil {
			h.responder.WriteError(w, wrapDatabaseError("find", "tags", err))
			return
		}
		h.responder.WriteJSON(w, newTagResponses(tags))
	}
}
