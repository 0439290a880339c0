package rest

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

func (h *Handler) termLink(r *http.Request) (code, path, link string) {
	code = chi.URLParam(r, "code")
	path = strings.Trim(chi.URLParam(r, "*"), "/")
	link = baseURL(r) + h.records.Taxonomy().Prefix() + code + "/" + path
	return code, path, link
}

// getTerm returns the dereferenced term together with its ancestors.
func (h *Handler) getTerm(w http.ResponseWriter, r *http.Request) {
	_, path, link := h.termLink(r)
	if path == "" {
		writeError(w, r, http.StatusNotFound, "Taxonomy term not found.")
		return
	}
	entries, err := h.records.Taxonomy().Dereference(r.Context(), link)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	last := len(entries) - 1
	render.JSON(w, r, map[string]any{"term": entries[last], "ancestors": entries[:last]})
}

// putTerm replaces the extra data of a term and refreshes the records that
// embed it.
func (h *Handler) putTerm(w http.ResponseWriter, r *http.Request) {
	code, path, _ := h.termLink(r)
	if path == "" {
		writeError(w, r, http.StatusNotFound, "Taxonomy term not found.")
		return
	}
	extra, err := decodeBody(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	slug := path[strings.LastIndex(path, "/")+1:]
	term, refreshed, err := h.records.UpdateTerm(r.Context(), code, slug, extra)
	if err != nil && term.Path == "" {
		h.writeServiceError(w, r, err)
		return
	}
	if err != nil {
		h.logger.Error("rest.term.refresh_failed", "taxonomy", code, "path", term.Path, "error", err)
	}
	if refreshed == nil {
		refreshed = []string{}
	}
	render.JSON(w, r, map[string]any{
		"taxonomy":  term.Taxonomy,
		"path":      term.Path,
		"level":     term.Level,
		"extra":     term.Extra,
		"refreshed": refreshed,
	})
}

// getSchema serves a registered JSON Schema by its URL path.
func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	_, doc, ok := h.records.JSONSchemas().ByPath(r.URL.Path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "Schema not found.")
		return
	}
	render.JSON(w, r, doc)
}
