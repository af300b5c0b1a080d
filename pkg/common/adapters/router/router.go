package router

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/uptrace/bunrouter"
)

// HTTPRequest adapts standard http.Request to our Request interface
type HTTPRequest struct {
	req  *http.Request
	vars map[string]string
}

// NewHTTPRequest wraps r. Path variables are taken from gorilla/mux when the
// request was routed by it.
func NewHTTPRequest(r *http.Request) *HTTPRequest {
	vars := mux.Vars(r)
	if vars == nil {
		vars = make(map[string]string)
	}
	return &HTTPRequest{req: r, vars: vars}
}

// NewBunRouterRequest wraps a bunrouter request together with its route params.
func NewBunRouterRequest(req bunrouter.Request) *HTTPRequest {
	return &HTTPRequest{req: req.Request, vars: req.Params().Map()}
}

func (h *HTTPRequest) Method() string {
	return h.req.Method
}

func (h *HTTPRequest) Path() string {
	return h.req.URL.Path
}

func (h *HTTPRequest) Header(key string) string {
	return h.req.Header.Get(key)
}

func (h *HTTPRequest) QueryParams() url.Values {
	return h.req.URL.Query()
}

func (h *HTTPRequest) PathParam(key string) string {
	return h.vars[key]
}

func (h *HTTPRequest) UnderlyingRequest() *http.Request {
	return h.req
}

// HTTPResponseWriter adapts our ResponseWriter interface to standard http.ResponseWriter
type HTTPResponseWriter struct {
	resp   http.ResponseWriter
	status int
}

func NewHTTPResponseWriter(w http.ResponseWriter) *HTTPResponseWriter {
	return &HTTPResponseWriter{resp: w}
}

func (h *HTTPResponseWriter) SetHeader(key, value string) {
	h.resp.Header().Set(key, value)
}

func (h *HTTPResponseWriter) WriteHeader(statusCode int) {
	h.status = statusCode
	h.resp.WriteHeader(statusCode)
}

func (h *HTTPResponseWriter) Write(data []byte) (int, error) {
	return h.resp.Write(data)
}

func (h *HTTPResponseWriter) WriteJSON(data interface{}) error {
	h.SetHeader("Content-Type", "application/json")
	return json.NewEncoder(h.resp).Encode(data)
}

// Status is the status code written so far, 0 if none.
func (h *HTTPResponseWriter) Status() int {
	return h.status
}

// StandardMuxAdapter creates routes compatible with standard http.HandlerFunc
type StandardMuxAdapter struct {
	router *mux.Router
}

func NewStandardMuxAdapter() *StandardMuxAdapter {
	return &StandardMuxAdapter{router: mux.NewRouter()}
}

// RegisterRoute registers a handler receiving the mux path variables
func (s *StandardMuxAdapter) RegisterRoute(pattern string, handler func(http.ResponseWriter, *http.Request, map[string]string)) *mux.Route {
	return s.router.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		handler(w, r, mux.Vars(r))
	})
}

// GetMuxRouter returns the underlying mux router for direct access
func (s *StandardMuxAdapter) GetMuxRouter() *mux.Router {
	return s.router
}

// StandardBunRouterAdapter wraps a bunrouter.Router
type StandardBunRouterAdapter struct {
	router *bunrouter.Router
}

func NewStandardBunRouterAdapter(opts ...bunrouter.Option) *StandardBunRouterAdapter {
	return &StandardBunRouterAdapter{router: bunrouter.New(opts...)}
}

// GetBunRouter returns the underlying bunrouter for direct access
func (s *StandardBunRouterAdapter) GetBunRouter() *bunrouter.Router {
	return s.router
}
