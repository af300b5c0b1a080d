// Package admin serves registered models as paginated, filterable and
// searchable JSON change lists over gorilla/mux or bunrouter.
package admin

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/uptrace/bun"
	"github.com/uptrace/bunrouter"
	"gorm.io/gorm"

	"github.com/bitechdev/changelist/pkg/common/adapters/database"
	"github.com/bitechdev/changelist/pkg/common/adapters/router"
)

// PathPrefix is where the admin routes are mounted.
const PathPrefix = "/admin"

// NewHandlerWithGORM creates a new Handler with GORM adapter
func NewHandlerWithGORM(db *gorm.DB, site *Site) *Handler {
	return NewHandler(database.NewGormAdapter(db), site)
}

// NewHandlerWithBun creates a new Handler with Bun adapter
func NewHandlerWithBun(db *bun.DB, site *Site) *Handler {
	return NewHandler(database.NewBunAdapter(db), site)
}

// NewStandardMuxRouter creates a router with standard Mux HTTP handlers
func NewStandardMuxRouter() *router.StandardMuxAdapter {
	return router.NewStandardMuxAdapter()
}

// NewStandardBunRouter creates a router with standard BunRouter handlers
func NewStandardBunRouter() *router.StandardBunRouterAdapter {
	return router.NewStandardBunRouterAdapter()
}

// SetupMuxRoutes sets up the admin routes with Mux
func SetupMuxRoutes(muxRouter *mux.Router, handler *Handler) {
	muxRouter.HandleFunc(PathPrefix+"/", func(w http.ResponseWriter, r *http.Request) {
		handler.HandleIndex(router.NewHTTPResponseWriter(w), router.NewHTTPRequest(r), mux.Vars(r))
	}).Methods("GET")

	muxRouter.HandleFunc(PathPrefix+"/{entity}/", func(w http.ResponseWriter, r *http.Request) {
		handler.HandleList(router.NewHTTPResponseWriter(w), router.NewHTTPRequest(r), mux.Vars(r))
	}).Methods("GET")

	muxRouter.HandleFunc(PathPrefix+"/{schema}/{entity}/", func(w http.ResponseWriter, r *http.Request) {
		handler.HandleList(router.NewHTTPResponseWriter(w), router.NewHTTPRequest(r), mux.Vars(r))
	}).Methods("GET")

	muxRouter.HandleFunc(PathPrefix+"/{schema}/{entity}/{pk}/", func(w http.ResponseWriter, r *http.Request) {
		handler.HandleDetail(router.NewHTTPResponseWriter(w), router.NewHTTPRequest(r), mux.Vars(r))
	}).Methods("GET")
}

// SetupBunRouterRoutes sets up the admin routes with bunrouter
func SetupBunRouterRoutes(bunRouter *router.StandardBunRouterAdapter, handler *Handler) {
	r := bunRouter.GetBunRouter()

	r.GET(PathPrefix+"/", func(w http.ResponseWriter, req bunrouter.Request) error {
		handler.HandleIndex(router.NewHTTPResponseWriter(w), router.NewBunRouterRequest(req), nil)
		return nil
	})

	r.GET(PathPrefix+"/:entity/", func(w http.ResponseWriter, req bunrouter.Request) error {
		params := map[string]string{
			"entity": req.Param("entity"),
		}
		handler.HandleList(router.NewHTTPResponseWriter(w), router.NewBunRouterRequest(req), params)
		return nil
	})

	r.GET(PathPrefix+"/:schema/:entity/", func(w http.ResponseWriter, req bunrouter.Request) error {
		params := map[string]string{
			"schema": req.Param("schema"),
			"entity": req.Param("entity"),
		}
		handler.HandleList(router.NewHTTPResponseWriter(w), router.NewBunRouterRequest(req), params)
		return nil
	})

	r.GET(PathPrefix+"/:schema/:entity/:pk/", func(w http.ResponseWriter, req bunrouter.Request) error {
		params := map[string]string{
			"schema": req.Param("schema"),
			"entity": req.Param("entity"),
			"pk":     req.Param("pk"),
		}
		handler.HandleDetail(router.NewHTTPResponseWriter(w), router.NewBunRouterRequest(req), params)
		return nil
	})
}
