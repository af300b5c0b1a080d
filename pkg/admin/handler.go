package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"

	"github.com/bitechdev/changelist/pkg/changelist"
	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/logger"
)

// Handler serves the change lists of a Site as JSON.
type Handler struct {
	db   common.Database
	site *Site
}

// NewHandler creates a handler listing rows of db for the admins of site.
func NewHandler(db common.Database, site *Site) *Handler {
	return &Handler{db: db, site: site}
}

// Site returns the site served by the handler.
func (h *Handler) Site() *Site {
	return h.site
}

// FilterPayload is one filter of a list response.
type FilterPayload struct {
	Title   string              `json:"title"`
	Choices []changelist.Choice `json:"choices"`
}

// ListPayload is the data of a list response.
type ListPayload struct {
	Entity      string                `json:"entity"`
	Rows        interface{}           `json:"rows"`
	Links       []string              `json:"links"`
	ListDisplay []string              `json:"list_display,omitempty"`
	Filters     []FilterPayload       `json:"filters"`
	Applied     []common.FilterOption `json:"applied_filters"`
	Ordering    common.SortOption     `json:"ordering"`
	Query       string                `json:"query,omitempty"`
	Page        int                   `json:"page"`
	NumPages    int                   `json:"num_pages"`
	ShowAll     bool                  `json:"show_all"`
	CanShowAll  bool                  `json:"can_show_all"`
	Filtered    bool                  `json:"filtered"`
	IsPopup     bool                  `json:"is_popup,omitempty"`
	ToField     string                `json:"to_field,omitempty"`
}

// DetailPayload is the data of a change page response.
type DetailPayload struct {
	Entity string      `json:"entity"`
	Key    string      `json:"key"`
	Row    interface{} `json:"row"`
}

// EntityPayload describes one registered admin in the index response.
type EntityPayload struct {
	Name  string `json:"name"`
	Table string `json:"table"`
	URL   string `json:"url"`
}

// handlePanic is a helper function to handle panics with stack traces
func (h *Handler) handlePanic(w common.ResponseWriter, method string, err interface{}) {
	stack := debug.Stack()
	logger.Error("Panic in %s: %v\nStack trace:\n%s", method, err, string(stack))
	h.sendError(w, http.StatusInternalServerError, "internal_error", fmt.Sprintf("Internal server error in %s", method), fmt.Errorf("%v", err))
}

func requestContext(r common.Request) context.Context {
	if req := r.UnderlyingRequest(); req != nil {
		return req.Context()
	}
	return context.Background()
}

// HandleIndex lists the registered admins.
func (h *Handler) HandleIndex(w common.ResponseWriter, r common.Request, params map[string]string) {
	defer func() {
		if err := recover(); err != nil {
			h.handlePanic(w, "HandleIndex", err)
		}
	}()

	names := h.site.Names()
	entities := make([]EntityPayload, 0, len(names))
	for _, name := range names {
		ma, err := h.site.Get("", name)
		if err != nil {
			continue
		}
		coll, err := changelist.NewCollection(h.db, ma.Model)
		if err != nil {
			logger.Warn("Skipping admin %s: %v", name, err)
			continue
		}
		entities = append(entities, EntityPayload{
			Name:  name,
			Table: coll.Meta().Table,
			URL:   r.Path() + name + "/",
		})
	}
	h.sendResponse(w, entities, &common.Metadata{Total: int64(len(entities)), Count: int64(len(entities))})
}

// HandleList serves the change list of one entity. Request query parameters
// filter, search, order and paginate it. When schema.entity names no admin
// but schema does, entity is a result key and the row is served instead.
func (h *Handler) HandleList(w common.ResponseWriter, r common.Request, params map[string]string) {
	defer func() {
		if err := recover(); err != nil {
			h.handlePanic(w, "HandleList", err)
		}
	}()

	ctx := requestContext(r)
	schema := params["schema"]
	entity := params["entity"]

	ma, err := h.site.Get(schema, entity)
	if err != nil && schema != "" {
		if _, ownerErr := h.site.Get("", schema); ownerErr == nil {
			h.HandleDetail(w, r, map[string]string{"entity": schema, "pk": entity})
			return
		}
	}
	if err != nil {
		logger.Error("Invalid entity: %v", err)
		h.sendError(w, http.StatusNotFound, "invalid_entity", "Invalid entity", err)
		return
	}

	log := logger.With("admin", ma.Name)
	coll, err := changelist.NewCollection(h.db, ma.Model)
	if err != nil {
		log.Error("Invalid model: %v", err)
		h.sendError(w, http.StatusInternalServerError, "invalid_model_type", "Invalid model", err)
		return
	}
	if ma.Scope != nil {
		coll = ma.Scope(coll)
	}

	query := r.QueryParams()
	cl := changelist.NewAdmin(query, coll, ma.Options)
	log.Info("Listing with %d parameters", len(query))

	rows, err := cl.Queryset(ctx)
	if err != nil {
		if common.IsIncorrectLookup(err) {
			h.handleIncorrectLookup(w, r, log)
			return
		}
		log.Error("Error listing: %v", err)
		h.sendError(w, http.StatusInternalServerError, "query_error", "Error executing query", err)
		return
	}

	payload, metadata, err := h.buildPayload(ctx, cl, ma, rows)
	if err != nil {
		log.Error("Error building list: %v", err)
		h.sendError(w, http.StatusInternalServerError, "query_error", "Error executing query", err)
		return
	}
	h.sendResponse(w, payload, metadata)
}

// HandleDetail serves the row behind a result link. The pk path parameter
// is the quoted primary key produced by URLForResult, relative to the list.
func (h *Handler) HandleDetail(w common.ResponseWriter, r common.Request, params map[string]string) {
	defer func() {
		if err := recover(); err != nil {
			h.handlePanic(w, "HandleDetail", err)
		}
	}()

	ma, err := h.site.Get(params["schema"], params["entity"])
	if err != nil {
		logger.Error("Invalid entity: %v", err)
		h.sendError(w, http.StatusNotFound, "invalid_entity", "Invalid entity", err)
		return
	}

	log := logger.With("admin", ma.Name)
	coll, err := changelist.NewCollection(h.db, ma.Model)
	if err != nil {
		log.Error("Invalid model: %v", err)
		h.sendError(w, http.StatusInternalServerError, "invalid_model_type", "Invalid model", err)
		return
	}
	if ma.Scope != nil {
		coll = ma.Scope(coll)
	}

	key := common.Unquote(params["pk"])
	row, err := coll.Get(requestContext(r), key)
	switch {
	case err == nil:
		h.sendResponse(w, DetailPayload{Entity: ma.Name, Key: key, Row: row}, nil)
	case common.IsIncorrectLookup(err):
		h.sendError(w, http.StatusBadRequest, "invalid_key", "Invalid primary key", err)
	case errors.Is(err, common.ErrNotFound):
		h.sendError(w, http.StatusNotFound, "not_found", "Row not found", err)
	default:
		log.Error("Error loading %s: %v", key, err)
		h.sendError(w, http.StatusInternalServerError, "query_error", "Error executing query", err)
	}
}

// handleIncorrectLookup redirects once to the bare list flagged with the
// error parameter, then reports the error.
func (h *Handler) handleIncorrectLookup(w common.ResponseWriter, r common.Request, log *logger.Entry) {
	if _, flagged := r.QueryParams()[changelist.ErrorFlag]; flagged {
		log.Warn("Incorrect lookup parameters for %s", r.Path())
		h.sendError(w, http.StatusBadRequest, "incorrect_lookup_parameters", "Incorrect lookup parameters", common.ErrIncorrectLookupParameters)
		return
	}
	w.SetHeader("Location", r.Path()+"?"+changelist.ErrorFlag+"=1")
	w.WriteHeader(http.StatusFound)
}

func (h *Handler) buildPayload(ctx context.Context, cl *changelist.AdminChangeList, ma *ModelAdmin, rows interface{}) (*ListPayload, *common.Metadata, error) {
	total, err := cl.FullCount(ctx)
	if err != nil {
		return nil, nil, err
	}
	filtered, err := cl.Count(ctx)
	if err != nil {
		return nil, nil, err
	}
	page, all, err := cl.Page(ctx)
	if err != nil {
		return nil, nil, err
	}
	offset, limit, err := cl.Bounds(ctx)
	if err != nil {
		return nil, nil, err
	}
	paginator, err := cl.Paginator(ctx)
	if err != nil {
		return nil, nil, err
	}
	canShowAll, err := cl.CanShowAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	specs, err := cl.GetFilters(ctx)
	if err != nil {
		return nil, nil, err
	}
	applied, err := cl.AppliedFilters()
	if err != nil {
		return nil, nil, err
	}

	filters := make([]FilterPayload, 0, len(specs))
	for _, spec := range specs {
		filters = append(filters, FilterPayload{Title: spec.Title(), Choices: spec.Choices(cl)})
	}

	rv := reflect.ValueOf(rows)
	links := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		links = append(links, cl.URLForResult(rv.Index(i).Interface()))
	}

	numPages := paginator.NumPages()
	if all {
		numPages = 1
	}
	payload := &ListPayload{
		Entity:      ma.Name,
		Rows:        rows,
		Links:       links,
		ListDisplay: ma.Options.ListDisplay,
		Filters:     filters,
		Applied:     applied,
		Ordering:    cl.GetOrdering(),
		Query:       cl.Query(),
		Page:        page,
		NumPages:    numPages,
		ShowAll:     all && cl.ShowAll(),
		CanShowAll:  canShowAll,
		Filtered:    cl.Filtered(),
		IsPopup:     cl.IsPopup(),
		ToField:     cl.ToField(),
	}
	metadata := &common.Metadata{
		Total:    int64(total),
		Filtered: int64(filtered),
		Count:    int64(rv.Len()),
		Limit:    limit,
		Offset:   offset,
	}
	return payload, metadata, nil
}

func (h *Handler) sendResponse(w common.ResponseWriter, data interface{}, metadata *common.Metadata) {
	w.SetHeader("Content-Type", "application/json")
	if err := w.WriteJSON(common.Response{
		Success:  true,
		Data:     data,
		Metadata: metadata,
	}); err != nil {
		logger.Error("Failed to write response: %v", err)
	}
}

func (h *Handler) sendError(w common.ResponseWriter, status int, code, message string, details interface{}) {
	w.SetHeader("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := w.WriteJSON(common.Response{
		Success: false,
		Error: &common.APIError{
			Code:    code,
			Message: message,
			Details: details,
			Detail:  fmt.Sprintf("%v", details),
		},
	}); err != nil {
		logger.Error("Failed to write error response: %v", err)
	}
}
