package rest

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Narodni-repozitar/nr-Nresults/internal/core"
	"github.com/Narodni-repozitar/nr-Nresults/internal/pidstore"
	"github.com/Narodni-repozitar/nr-Nresults/internal/search"
)

// Query parameters of list requests.
const (
	ParamQuery = "q"
	ParamSort  = "sort"
	ParamPage  = "page"
	ParamSize  = "size"
)

// DefaultPageSize is used when a list request has no size.
const DefaultPageSize = 10

type recordResponse struct {
	ID       string            `json:"id"`
	Revision int               `json:"revision"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]any    `json:"metadata"`
	Links    map[string]string `json:"links"`
}

func (h *Handler) recordBody(r *http.Request, ep core.Endpoint, rec core.Record) recordResponse {
	cn := rec.ControlNumber()
	links := map[string]string{"self": itemURL(r, ep, cn)}
	if ep.Draft {
		links["publish"] = links["self"] + "/actions/publish"
	}
	return recordResponse{
		ID:       cn,
		Revision: rec.Revision,
		Created:  rec.CreatedAt,
		Updated:  rec.UpdatedAt,
		Metadata: core.Document(rec),
		Links:    links,
	}
}

func decodeBody(r *http.Request) (map[string]any, error) {
	var data map[string]any
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if data == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return data, nil
}

func (h *Handler) createRecord(ep core.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := decodeBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		create := h.records.CreateRecord
		if ep.Draft {
			create = h.records.CreateDraft
		}
		rec, _, err := create(r.Context(), ep.RecordType, data)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		body := h.recordBody(r, ep, rec)
		w.Header().Set("Location", body.Links["self"])
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, body)
	}
}

func (h *Handler) getRecord(ep core.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pidValue := chi.URLParam(r, "pid_value")
		pid, rec, err := h.records.ResolvePID(r.Context(), ep.PIDType, pidValue)
		if errors.Is(err, pidstore.ErrPIDRedirected) {
			h.redirect(w, r, pid)
			return
		}
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		render.JSON(w, r, h.recordBody(r, ep, rec))
	}
}

// redirect sends a moved permanently to the published record a draft PID
// now points at.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, pid core.PersistentIdentifier) {
	target, err := h.records.GetRecordByID(r.Context(), pid.ObjectUUID)
	if err != nil {
		writeError(w, r, http.StatusGone, "The record has been moved.")
		return
	}
	for _, ep := range h.records.Config().RestEndpoints {
		if ep.RecordType == target.Type {
			http.Redirect(w, r, itemURL(r, ep, target.ControlNumber()), http.StatusMovedPermanently)
			return
		}
	}
	writeError(w, r, http.StatusGone, "The record has been moved.")
}

func (h *Handler) updateRecord(ep core.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := decodeBody(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		rec, _, err := h.records.UpdateRecord(r.Context(), ep.PIDType, chi.URLParam(r, "pid_value"), data)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		render.JSON(w, r, h.recordBody(r, ep, rec))
	}
}

func (h *Handler) deleteRecord(ep core.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.records.DeleteRecord(r.Context(), ep.PIDType, chi.URLParam(r, "pid_value")); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) publishDraft(ep core.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, _, err := h.records.PublishDraft(r.Context(), ep.PIDType, chi.URLParam(r, "pid_value"))
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		published, ok := h.records.Config().RestEndpoints[ep.PublishedEndpoint]
		if !ok {
			published = ep
		}
		body := h.recordBody(r, published, rec)
		w.Header().Set("Location", body.Links["self"])
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, body)
	}
}

type listResponse struct {
	Hits struct {
		Hits  []hitResponse `json:"hits"`
		Total uint64        `json:"total"`
	} `json:"hits"`
	Aggregations map[string]aggregation `json:"aggregations,omitempty"`
	Links        map[string]string      `json:"links"`
}

type hitResponse struct {
	ID        string              `json:"id"`
	Metadata  map[string]any      `json:"metadata"`
	Highlight map[string][]string `json:"highlight,omitempty"`
	Links     map[string]string   `json:"links"`
}

type aggregation struct {
	Buckets []search.Bucket `json:"buckets"`
}

// searchRequest maps query parameters onto a search request. Parameters named
// after a facet of the endpoint's index filter on the facet field.
func (h *Handler) searchRequest(ep core.Endpoint, values url.Values) (search.Request, error) {
	req := search.Request{
		Query: values.Get(ParamQuery),
		Sort:  values.Get(ParamSort),
		Page:  1,
		Size:  DefaultPageSize,
	}
	for param, target := range map[string]*int{ParamPage: &req.Page, ParamSize: &req.Size} {
		raw := values.Get(param)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return search.Request{}, fmt.Errorf("invalid %s parameter %q", param, raw)
		}
		*target = n
	}
	facets := h.records.Config().Facets[ep.SearchIndex]
	for name, def := range facets {
		if selected := values[name]; len(selected) > 0 {
			if req.Filters == nil {
				req.Filters = make(map[string][]string)
			}
			req.Filters[def.Field] = append(req.Filters[def.Field], selected...)
		}
	}
	return req, nil
}

func (h *Handler) listRecords(ep core.Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		values := r.URL.Query()
		req, err := h.searchRequest(ep, values)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		res, err := h.records.Search(r.Context(), ep.Name, req)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		var body listResponse
		body.Hits.Total = res.Total
		body.Hits.Hits = make([]hitResponse, 0, len(res.Hits))
		for _, hit := range res.Hits {
			id := hit.ID
			if cn, ok := hit.Source[core.FieldControlNumber].(string); ok && cn != "" {
				id = cn
			}
			body.Hits.Hits = append(body.Hits.Hits, hitResponse{
				ID:        id,
				Metadata:  hit.Source,
				Highlight: hit.Highlights,
				Links:     map[string]string{"self": itemURL(r, ep, id)},
			})
		}
		if len(res.Facets) > 0 {
			body.Aggregations = make(map[string]aggregation, len(res.Facets))
			for name, buckets := range res.Facets {
				body.Aggregations[name] = aggregation{Buckets: buckets}
			}
		}
		body.Links = pageLinks(r, ep, values, res)
		render.JSON(w, r, body)
	}
}

func pageLinks(r *http.Request, ep core.Endpoint, values url.Values, res search.Response) map[string]string {
	page := func(n int) string {
		q := url.Values{}
		for k, v := range values {
			q[k] = append([]string(nil), v...)
		}
		q.Set(ParamPage, strconv.Itoa(n))
		q.Set(ParamSize, strconv.Itoa(res.Size))
		return baseURL(r) + ep.ListRoute + "?" + q.Encode()
	}
	links := map[string]string{"self": page(res.Page)}
	if res.Page > 1 {
		links["prev"] = page(res.Page - 1)
	}
	if uint64(res.Page*res.Size) < res.Total {
		links["next"] = page(res.Page + 1)
	}
	return links
}
