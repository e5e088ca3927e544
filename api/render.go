package api

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/rpupo63/diary-backend/errs"
	"github.com/rpupo63/diary-backend/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{
	"home.html",
	"entry_detail.html",
	"entry_form.html",
	"entry_delete.html",
	"calendar.html",
	"tag_search.html",
	"tag_list.html",
	"entries_by_tag.html",
	"add_tag.html",
	"login.html",
	"logout.html",
	"register.html",
	"not_found.html",
	"error.html",
}

var templateFuncs = template.FuncMap{
	"date": func(e models.DiaryEntry) string {
		return e.Day().Format(models.DateLayout)
	},
	"pathEscape": url.PathEscape,
}

// page is the data every template receives.
type page struct {
	Title  string
	User   *models.User
	Flash  []string
	Errors map[string]string
	Data   any
}

// renderer executes the embedded page templates inside the shared layout.
type renderer struct {
	templates map[string]*template.Template
	logger    zerolog.Logger
}

func newRenderer(logger zerolog.Logger) (*renderer, error) {
	r := &renderer{templates: make(map[string]*template.Template, len(pages)), logger: logger}
	for _, name := range pages {
		t, err := template.New("base.html").Funcs(templateFuncs).
			ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// render writes the page name with status. Flash messages queued by an
// earlier redirect are consumed here.
func (rd *renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	t, ok := rd.templates[name]
	if !ok {
		rd.logger.Error().Str("template", name).Msg("unknown template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	p.User = ctxGetUser(r.Context())
	p.Flash = append(popFlash(w, r), p.Flash...)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", p); err != nil {
		rd.logger.Error().Err(err).Str("template", name).Msg("error rendering template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		rd.logger.Error().Err(err).Msg("error writing page")
	}
}

// renderError shows err as a page: 404s get the not-found page, field errors
// are expected to be handled by the caller, everything else is a 500.
func (rd *renderer) renderError(w http.ResponseWriter, r *http.Request, err error) {
	if errs.IsNotFound(err) {
		rd.render(w, r, http.StatusNotFound, "not_found.html", page{Title: "Not found"})
		return
	}

	status := http.StatusInternalServerError
	message := "Something went wrong."
	var apiErr *errs.ApiErr
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		status = apiErr.StatusCode
		message = apiErr.Message()
	} else {
		rd.logger.Error().Err(err).Str("path", r.URL.Path).Msg("error handling page")
	}
	rd.render(w, r, status, "error.html", page{Title: http.StatusText(status), Data: message})
}

// formErrors maps a validation error to the field it belongs to. Anything that
// is not a client error is returned as is.
func formErrors(err error) (map[string]string, error) {
	var apiErr *errs.ApiErr
	if !errors.As(err, &apiErr) || apiErr.StatusCode >= http.StatusInternalServerError || errs.IsNotFound(err) {
		return nil, err
	}
	field := apiErr.Field
	if field == "" {
		field = "__all__"
	}
	return map[string]string{field: apiErr.Message()}, nil
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
