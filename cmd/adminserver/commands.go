package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"reflect"
	"strings"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"

	"github.com/bitechdev/changelist/pkg/admin"
	"github.com/bitechdev/changelist/pkg/changelist"
	"github.com/bitechdev/changelist/pkg/common"
	"github.com/bitechdev/changelist/pkg/common/adapters/database"
	"github.com/bitechdev/changelist/pkg/config"
	"github.com/bitechdev/changelist/pkg/logger"
	"github.com/bitechdev/changelist/pkg/modelregistry"
	"github.com/bitechdev/changelist/pkg/testmodels"
)

type app struct {
	configPath   string
	addrOverride string
	cfg          *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "adminserver",
		Short:         "Serve database tables as filterable change lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logger.Init(cfg.Logging.Development)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "changelist.yaml", "path to the YAML config file")
	cmd.AddCommand(a.newServeCmd(), a.newListCmd())
	return cmd
}

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin HTTP server",
		Example: `  # Serve the demo schema on :8080
  adminserver serve

  # Browse it
  curl 'localhost:8080/admin/employees/?q=wood&status__exact=active'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVar(&a.addrOverride, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func (a *app) newListCmd() *cobra.Command {
	var (
		query  string
		fields []string
	)
	cmd := &cobra.Command{
		Use:   "list ENTITY",
		Short: "Print one page of a change list",
		Args:  cobra.ExactArgs(1),
		Example: `  # Engineering staff ordered by first name
  adminserver list employees --query 'department__id__exact=1&o=2'

  # Only names and department codes
  adminserver list employees --fields last_name,first_name,department.code`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := url.ParseQuery(query)
			if err != nil {
				return fmt.Errorf("invalid query %q: %w", query, err)
			}
			return a.list(cmd, args[0], params, fields)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "change list parameters as a URL query string")
	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "JSON paths of each row to print, all when empty")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	db, closeDB, err := openDatabase(a.cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()

	site, err := newSite(a.cfg)
	if err != nil {
		return err
	}
	handler := admin.NewHandler(db, site)

	var h http.Handler
	switch a.cfg.Server.Router {
	case config.RouterBunRouter:
		r := admin.NewStandardBunRouter()
		admin.SetupBunRouterRoutes(r, handler)
		h = r.GetBunRouter()
	default:
		r := admin.NewStandardMuxRouter()
		admin.SetupMuxRoutes(r.GetMuxRouter(), handler)
		h = r.GetMuxRouter()
	}

	addr := a.cfg.Server.Addr
	if a.addrOverride != "" {
		addr = a.addrOverride
	}
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting admin server on %s with %s", addr, a.cfg.Server.Router)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("Shutting down admin server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (a *app) list(cmd *cobra.Command, name string, params url.Values, fields []string) error {
	db, closeDB, err := openDatabase(a.cfg.Database)
	if err != nil {
		return err
	}
	defer closeDB()

	site, err := newSite(a.cfg)
	if err != nil {
		return err
	}
	schema, entity := "", name
	if i := strings.LastIndex(name, "."); i > 0 {
		schema, entity = name[:i], name[i+1:]
	}
	ma, err := site.Get(schema, entity)
	if err != nil {
		return err
	}
	coll, err := changelist.NewCollection(db, ma.Model)
	if err != nil {
		return err
	}
	if ma.Scope != nil {
		coll = ma.Scope(coll)
	}

	ctx := cmd.Context()
	cl := changelist.NewAdmin(params, coll, ma.Options)
	rows, err := cl.Queryset(ctx)
	if err != nil {
		if common.IsIncorrectLookup(err) {
			return fmt.Errorf("%s: incorrect lookup parameters: %w", name, err)
		}
		return err
	}
	total, err := cl.FullCount(ctx)
	if err != nil {
		return err
	}
	filtered, err := cl.Count(ctx)
	if err != nil {
		return err
	}
	page, _, err := cl.Page(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rv := reflect.ValueOf(rows)
	for i := 0; i < rv.Len(); i++ {
		row := rv.Index(i).Interface()
		b, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if b, err = project(b, fields); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t%s\n", cl.URLForResult(row), b)
	}
	fmt.Fprintf(out, "page %d: %d of %d rows (%d total)\n", page, rv.Len(), filtered, total)
	return nil
}

// project keeps the given gjson paths of a JSON object. Missing paths are
// left out.
func project(row []byte, paths []string) ([]byte, error) {
	if len(paths) == 0 {
		return row, nil
	}
	out := []byte("{}")
	for _, path := range paths {
		value := gjson.GetBytes(row, path)
		if !value.Exists() {
			continue
		}
		var err error
		if out, err = sjson.SetRawBytes(out, path, []byte(value.Raw)); err != nil {
			return nil, fmt.Errorf("field %s: %w", path, err)
		}
	}
	return out, nil
}

// newSite registers the demo admins and applies the configured overrides.
func newSite(cfg *config.Config) (*admin.Site, error) {
	site := admin.NewSite(modelregistry.NewModelRegistry())
	if err := testmodels.Register(site); err != nil {
		return nil, err
	}
	for name, opts := range cfg.Admins {
		if err := site.Configure(name, opts); err != nil {
			return nil, err
		}
	}
	return site, nil
}

// openDatabase seeds through gorm when asked and returns the adapter of the
// configured driver.
func openDatabase(cfg config.DatabaseConfig) (common.Database, func(), error) {
	level := gormlog.Warn
	if cfg.LogQueries {
		level = gormlog.Info
	}
	gormDB, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: gormlog.New(log.New(os.Stderr, "\r\n", log.LstdFlags), gormlog.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		}),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DSN, err)
	}
	closeGorm := func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if cfg.Seed {
		if err := testmodels.Seed(gormDB); err != nil {
			closeGorm()
			return nil, nil, fmt.Errorf("seed: %w", err)
		}
	}

	if cfg.Driver != config.DriverBun {
		return database.NewGormAdapter(gormDB), closeGorm, nil
	}
	closeGorm()

	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", cfg.DSN, err)
	}
	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	return database.NewBunAdapter(bunDB), func() { _ = bunDB.Close() }, nil
}
