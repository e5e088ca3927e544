package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
	"github.com/rpupo63/diary-backend/services"
)

// maxEntryFormSize leaves room for the text fields next to a full size image.
const maxEntryFormSize = services.MaxImageSize + 1<<20

type entryHandler struct {
	responder     Responder
	logger        zerolog.Logger
	renderer      *renderer
	diary         *services.Diary
	entryRepo     *database.DiaryEntryRepo
	tagRepo       *database.TagRepo
	accessLogRepo *database.AccessLogRepo
}

func newEntryHandler(diary *services.Diary, entryRepo *database.DiaryEntryRepo, tagRepo *database.TagRepo, accessLogRepo *database.AccessLogRepo, rd *renderer) entryHandler {
	logger := log.With().Str("handlerName", "entryHandler").Logger()

	return entryHandler{
		responder:     NewResponder(logger),
		logger:        logger,
		renderer:      rd,
		diary:         diary,
		entryRepo:     entryRepo,
		tagRepo:       tagRepo,
		accessLogRepo: accessLogRepo,
	}
}

type homeData struct {
	Date    string
	Prev    string
	Next    string
	Entries []models.DiaryEntry
}

type detailData struct {
	Entry    *models.DiaryEntry
	ImageURL string
	IsOwner  bool
}

type entryFormData struct {
	// Entry is nil on the new-entry page.
	Entry    *models.DiaryEntry
	Title    string
	Date     string
	Content  string
	NewTag   string
	Selected map[string]bool
	AllTags  []models.Tag
	ImageURL string
}

type calendarData struct {
	services.Month
	Today string
}

// entryIDParam reads {entryID}. A malformed id is reported as not found.
func entryIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "entryID"))
	if err != nil {
		return uuid.Nil, errs.NewNotFound("diary entry")
	}
	return id, nil
}

// home shows the entries of one day and records the visit
func (h entryHandler) home() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		selected := models.Today()
		if s := r.URL.Query().Get("date"); s != "" {
			if d, err := models.ParseDate(s); err == nil {
				selected = d
			}
		}
		day := time.Time(selected)
		user := ctxGetUser(r.Context())

		// The visit is recorded even when the listing fails.
		var entries []models.DiaryEntry
		var g errgroup.Group
		g.Go(func() error {
			if _, err := services.RecordVisit(r.Context(), h.accessLogRepo, r, user); err != nil {
				h.logger.Error().Err(err).Msg("Error recording visit")
			}
			return nil
		})
		g.Go(func() error {
			var err error
			entries, err = h.entryRepo.FindByDate(r.Context(), day)
			return err
		})
		if err := g.Wait(); err != nil {
			h.renderer.renderError(w, r, wrapDatabaseError("find", "diary_entries", err))
			return
		}

		h.renderer.render(w, r, http.StatusOK, "home.html", page{
			Title: "Diary",
			Data: homeData{
				Date:    day.Format(models.DateLayout),
				Prev:    day.AddDate(0, 0, -1).Format(models.DateLayout),
				Next:    day.AddDate(0, 0, 1).Format(models.DateLayout),
				Entries: entries,
			},
		})
	}
}

// detail shows one entry and counts the view
func (h entryHandler) detail() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := entryIDParam(r)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}

		entry, err := h.diary.ViewEntry(r.Context(), id)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}

		user := ctxGetUser(r.Context())
		h.renderer.render(w, r, http.StatusOK, "entry_detail.html", page{
			Title: entry.Title,
			Data: detailData{
				Entry:    entry,
				ImageURL: h.diary.ImageURL(r.Context(), entry),
				IsOwner:  user != nil && user.ID == entry.UserID,
			},
		})
	}
}

// parseEntryForm reads the entry form, with or without a file upload. The
// returned cleanup closes the uploaded file.
func parseEntryForm(w http.ResponseWriter, r *http.Request) (services.EntryInput, entryFormData, func(), error) {
	noop := func() {}
	var in services.EntryInput
	data := entryFormData{Selected: map[string]bool{}}

	r.Body = http.MaxBytesReader(w, r.Body, maxEntryFormSize)
	if err := r.ParseMultipartForm(8 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return in, data, noop, errs.NewMaxBodySizeExceededError(maxEntryFormSize)
		}
		return in, data, noop, errs.NewBadRequestError("malformed form")
	}

	data.Title = r.PostForm.Get("title")
	data.Date = r.PostForm.Get("date")
	data.Content = r.PostForm.Get("content")
	data.NewTag = r.PostForm.Get("new_tag")
	in.Title = data.Title
	in.Content = data.Content
	in.NewTags = data.NewTag
	in.ClearImage = r.PostForm.Get("clear_image") != ""

	if data.Date != "" {
		d, err := models.ParseDate(data.Date)
		if err != nil {
			return in, data, noop, errs.NewFieldError("date", "Enter a valid date.")
		}
		in.Date = &d
	}

	for _, raw := range r.PostForm["tags"] {
		id, err := uuid.Parse(raw)
		if err != nil {
			return in, data, noop, errs.NewFieldError("tags", "Select a valid choice.")
		}
		if !data.Selected[raw] {
			data.Selected[raw] = true
			in.TagIDs = append(in.TagIDs, id)
		}
	}
	for _, raw := range r.PostForm["remove_tags"] {
		if id, err := uuid.Parse(raw); err == nil {
			in.RemoveTagIDs = append(in.RemoveTagIDs, id)
		}
	}

	if r.MultipartForm != nil {
		file, header, err := r.FormFile("image")
		switch {
		case err == nil:
			in.Image = &services.Upload{Filename: header.Filename, Body: file}
			return in, data, func() { _ = file.Close() }, nil
		case !errors.Is(err, http.ErrMissingFile):
			return in, data, noop, errs.NewBadRequestError("could not read uploaded image")
		}
	}
	return in, data, noop, nil
}

// showForm renders the entry form, filling the tag choices.
func (h entryHandler) showForm(w http.ResponseWriter, r *http.Request, status int, data entryFormData, fieldErrs map[string]string) {
	tags, err := h.tagRepo.FindAll(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, wrapDatabaseError("find", "tags", err))
		return
	}
	data.AllTags = tags

	title := "New entry"
	if data.Entry != nil {
		title = "Edit entry"
		data.ImageURL = h.diary.ImageURL(r.Context(), data.Entry)
	}
	h.renderer.render(w, r, status, "entry_form.html", page{Title: title, Errors: fieldErrs, Data: data})
}

// formFailed re-renders the form with field errors, or shows an error page
// when err is not a client error.
func (h entryHandler) formFailed(w http.ResponseWriter, r *http.Request, data entryFormData, err error) {
	fieldErrs, err := formErrors(err)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.showForm(w, r, http.StatusBadRequest, data, fieldErrs)
}

// newEntry shows and handles the new-entry form
func (h entryHandler) newEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.showForm(w, r, http.StatusOK, entryFormData{Selected: map[string]bool{}}, nil)
			return
		}

		in, data, cleanup, err := parseEntryForm(w, r)
		defer cleanup()
		if err != nil {
			h.formFailed(w, r, data, err)
			return
		}

		user := ctxGetUser(r.Context())
		res, err := h.diary.CreateEntry(r.Context(), user.ID, in)
		if err != nil {
			h.formFailed(w, r, data, err)
			return
		}

		messages := []string{"Your diary entry was posted!"}
		if res.TagWarning != "" {
			messages = append(messages, res.TagWarning)
		}
		setFlash(w, r, messages...)
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// editEntry shows and handles the edit form of an entry the user owns
func (h entryHandler) editEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := entryIDParam(r)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		user := ctxGetUser(r.Context())

		entry, err := h.diary.OwnedEntry(r.Context(), user.ID, id)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}

		if r.Method != http.MethodPost {
			data := entryFormData{
				Entry:    entry,
				Title:    entry.Title,
				Date:     entry.Day().Format(models.DateLayout),
				Content:  entry.Content,
				Selected: map[string]bool{},
			}
			h.showForm(w, r, http.StatusOK, data, nil)
			return
		}

		in, data, cleanup, err := parseEntryForm(w, r)
		defer cleanup()
		data.Entry = entry
		if err != nil {
			h.formFailed(w, r, data, err)
			return
		}

		res, err := h.diary.UpdateEntry(r.Context(), user.ID, id, in)
		if err != nil {
			h.formFailed(w, r, data, err)
			return
		}

		messages := []string{"Your diary entry was updated!"}
		if res.TagWarning != "" {
			messages = append(messages, res.TagWarning)
		}
		setFlash(w, r, messages...)
		http.Redirect(w, r, "/entry/"+id.String()+"/", http.StatusFound)
	}
}

// deleteEntry asks for confirmation, then deletes an entry the user owns
func (h entryHandler) deleteEntry() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := entryIDParam(r)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		user := ctxGetUser(r.Context())

		if r.Method != http.MethodPost {
			entry, err := h.diary.OwnedEntry(r.Context(), user.ID, id)
			if err != nil {
				h.renderer.renderError(w, r, err)
				return
			}
			h.renderer.render(w, r, http.StatusOK, "entry_delete.html", page{Title: "Delete entry", Data: entry})
			return
		}

		if err := h.diary.DeleteEntry(r.Context(), user.ID, id); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		setFlash(w, r, "Your diary entry was deleted!")
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// calendar shows a month grid with the entries of each day
func (h entryHandler) calendar() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := models.Now()
		year, month := services.ParseMonth(r.URL.Query().Get("month"), now)

		entries, err := h.entryRepo.FindByMonth(r.Context(), year, month)
		if err != nil {
			h.renderer.renderError(w, r, wrapDatabaseError("find", "diary_entries", err))
			return
		}

		h.renderer.render(w, r, http.StatusOK, "calendar.html", page{
			Title: "Calendar",
			Data: calendarData{
				Month: services.BuildMonth(year, month, entries),
				Today: time.Time(models.Today()).Format(models.DateLayout),
			},
		})
	}
}
