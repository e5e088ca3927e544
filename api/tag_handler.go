package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/rpupo63/diary-backend/database"
	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
	"github.com/rpupo63/diary-backend/services"
)

type tagHandler struct {
	responder Responder
	logger    zerolog.Logger
	renderer  *renderer
	tagRepo   *database.TagRepo
	entryRepo *database.DiaryEntryRepo
}

func newTagHandler(tagRepo *database.TagRepo, entryRepo *database.DiaryEntryRepo, rd *renderer) tagHandler {
	logger := log.With().Str("handlerName", "tagHandler").Logger()

	return tagHandler{
		responder: NewResponder(logger),
		logger:    logger,
		renderer:  rd,
		tagRepo:   tagRepo,
		entryRepo: entryRepo,
	}
}

type tagSearchData struct {
	Query string
	Tags  []models.Tag
}

type entriesByTagData struct {
	Tag     *models.Tag
	Sort    string
	Entries []models.DiaryEntry
}

type addTagData struct {
	Name string
}

// searchTags lists the tags whose name contains ?query=
func (h tagHandler) searchTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")

		tags, err := h.tagRepo.Search(r.Context(), query)
		if err != nil {
			h.renderer.renderError(w, r, wrapDatabaseError("find", "tags", err))
			return
		}

		h.renderer.render(w, r, http.StatusOK, "tag_search.html", page{
			Title: "Search tags",
			Data:  tagSearchData{Query: query, Tags: tags},
		})
	}
}

// listTags shows the whole tag catalog
func (h tagHandler) listTags() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := h.tagRepo.FindAll(r.Context())
		if err != nil {
			h.renderer.renderError(w, r, wrapDatabaseError("find", "tags", err))
			return
		}
		h.renderer.render(w, r, http.StatusOK, "tag_list.html", page{Title: "Tags", Data: tags})
	}
}

// entriesByTag lists every entry carrying {tagName}, sorted by ?sort=
func (h tagHandler) entriesByTag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tag, err := h.tagRepo.FindByName(r.Context(), chi.URLParam(r, "tagName"))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				h.renderer.renderError(w, r, errs.NewNotFound("tag"))
				return
			}
			h.renderer.renderError(w, r, wrapDatabaseError("find", "tag", err))
			return
		}

		sort := database.ParseEntrySort(r.URL.Query().Get("sort"))
		entries, err := h.entryRepo.FindByTag(r.Context(), tag.ID, sort)
		if err != nil {
			h.renderer.renderError(w, r, wrapDatabaseError("find", "diary_entries", err))
			return
		}

		h.renderer.render(w, r, http.StatusOK, "entries_by_tag.html", page{
			Title: "Entries tagged " + tag.Name,
			Data:  entriesByTagData{Tag: tag, Sort: string(sort), Entries: entries},
		})
	}
}

// addTag shows and handles the new-tag form
func (h tagHandler) addTag() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			h.renderer.render(w, r, http.StatusOK, "add_tag.html", page{Title: "Add tag", Data: addTagData{}})
			return
		}

		if err := r.ParseForm(); err != nil {
			h.renderer.renderError(w, r, errs.NewBadRequestError("malformed form"))
			return
		}
		name := r.PostForm.Get("name")

		tag, err := services.CreateTag(r.Context(), h.tagRepo, name)
		if err != nil {
			fieldErrs, err := formErrors(err)
			if err != nil {
				h.renderer.renderError(w, r, err)
				return
			}
			h.renderer.render(w, r, http.StatusBadRequest, "add_tag.html", page{
				Title:  "Add tag",
				Errors: fieldErrs,
				Data:   addTagData{Name: name},
			})
			return
		}

		h.logger.Info().Str("tag", tag.Name).Msg("Tag created")
		setFlash(w, r, "Tag \""+tag.Name+"\" was added.")
		http.Redirect(w, r, "/tags/", http.StatusFound)
	}
}
