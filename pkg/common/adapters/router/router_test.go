package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bunrouter"
)

func TestMuxRequestAdapter(t *testing.T) {
	adapter := NewStandardMuxAdapter()
	var got *HTTPRequest
	adapter.RegisterRoute("/admin/{entity}/", func(w http.ResponseWriter, r *http.Request, vars map[string]string) {
		got = NewHTTPRequest(r)
		resp := NewHTTPResponseWriter(w)
		resp.WriteHeader(http.StatusAccepted)
		assert.Equal(t, http.StatusAccepted, resp.Status())
	}).Methods(http.MethodGet)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/employees/?q=wood&p=1", nil)
	req.Header.Set("X-Test", "yes")
	adapter.GetMuxRouter().ServeHTTP(rec, req)

	require.NotNil(t, got)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.MethodGet, got.Method())
	assert.Equal(t, "/admin/employees/", got.Path())
	assert.Equal(t, "employees", got.PathParam("entity"))
	assert.Equal(t, "wood", got.QueryParams().Get("q"))
	assert.Equal(t, "yes", got.Header("X-Test"))
	assert.Same(t, req, got.UnderlyingRequest())
}

func TestBunRouterRequestAdapter(t *testing.T) {
	adapter := NewStandardBunRouterAdapter()
	var got *HTTPRequest
	adapter.GetBunRouter().GET("/admin/:entity/", func(w http.ResponseWriter, req bunrouter.Request) error {
		got = NewBunRouterRequest(req)
		return NewHTTPResponseWriter(w).WriteJSON(map[string]string{"entity": got.PathParam("entity")})
	})

	rec := httptest.NewRecorder()
	adapter.GetBunRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/departments/?o=1", nil))

	require.NotNil(t, got)
	assert.Equal(t, "departments", got.PathParam("entity"))
	assert.Equal(t, "1", got.QueryParams().Get("o"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"entity":"departments"}`, rec.Body.String())
}

func TestNewHTTPRequestWithoutRouter(t *testing.T) {
	req := NewHTTPRequest(httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, "", req.PathParam("entity"))
}
