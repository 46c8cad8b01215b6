// Package main provides the session-auth service binary.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-session-auth"
	"github.com/goliatone/go-session-auth/activitymap"
	"github.com/goliatone/go-session-auth/config"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "session-auth"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	debug      bool
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Session token service",
		Long:          `session-auth issues, refreshes and revokes access and refresh tokens for registered users.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(serveCmd(flags))
	cmd.AddCommand(migrateCmd(flags))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func serveCmd(flags *globalFlags) *cobra.Command {
	var addr, dsn, redisAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("dsn") {
				cfg.Directory.DSN = dsn
			}
			if cmd.Flags().Changed("redis-addr") {
				cfg.Redis.Addr = redisAddr
			}
			return serve(cmd.Context(), cfg, newLogger(cfg.Server.Debug))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "sqlite DSN for the user directory, empty keeps users in memory")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the refresh token revocation list")

	return cmd
}

func migrateCmd(flags *globalFlags) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the user directory schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if flags.configPath != "" {
				fileCfg, err := config.LoadFromFile(flags.configPath)
				if err != nil {
					return err
				}
				cfg = fileCfg
			}
			if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
				return err
			}
			if cmd.Flags().Changed("dsn") {
				cfg.Directory.DSN = dsn
			}
			if cfg.Directory.DSN == "" {
				return fmt.Errorf("migrate requires a DSN (directory.dsn or --dsn)")
			}

			lgr := newLogger(flags.debug)
			client, db, err := withPersistence(cmd.Context(), cfg.GetPersistence(), lgr.GetLogger("persistence"))
			if err != nil {
				return err
			}
			defer db.Close()

			report := "no pending migrations"
			if group := client.Report(); group != nil && !group.IsZero() {
				report = group.String()
			}
			lgr.GetLogger("migrate").Info("users schema applied", "database", cfg.Directory.GetDatabase(), "report", report)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "sqlite DSN for the user directory")

	return cmd
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Server.Debug = true
	}
	return cfg, nil
}

func newLogger(debug bool) *glog.BaseLogger {
	level := glog.Info
	if debug {
		level = glog.Trace
	}
	return glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName("app"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
}

// withPersistence opens the directory database and applies the pending
// migrations. The returned *bun.DB owns the connection.
func withPersistence(ctx context.Context, cfg config.DirectoryConfig, lgr glog.Logger) (*persistence.Client, *bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open user directory: %w", err)
	}
	// sqlite serializes writers
	sqldb.SetMaxOpenConns(1)

	persistence.RegisterModel((*auth.User)(nil))

	client, err := persistence.New(cfg, sqldb, sqlitedialect.New())
	if err != nil {
		_ = sqldb.Close()
		return nil, nil, fmt.Errorf("connect user directory: %w", err)
	}

	db, ok := client.DB().(*bun.DB)
	if !ok {
		_ = sqldb.Close()
		return nil, nil, fmt.Errorf("unexpected persistence database %T", client.DB())
	}

	client.SetLogger(func(format string, a ...any) {
		lgr.Debug(strings.TrimSpace(fmt.Sprintf(format, a...)))
	})

	if _, err := auth.RegisterMigrations(client); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate user directory: %w", err)
	}

	return client, db, nil
}

type app struct {
	cfg       *config.Config
	logger    *glog.BaseLogger
	db        *bun.DB
	redis     *redis.Client
	registry  *prometheus.Registry
	directory auth.UserDirectory
	tokens    *auth.TokenServiceImpl
	sessions  *auth.SessionController
}

func (a *app) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.GetLogger("app").Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.GetLogger("app").Warn("close user directory", "error", err)
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, lgr *glog.BaseLogger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Server.Debug {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg.Redacted()))
		fmt.Println("============")
	}

	a := &app{cfg: cfg, logger: lgr}
	defer a.Close()

	if err := withDirectory(ctx, a); err != nil {
		return err
	}

	withMetrics(a)

	opts, err := withRevocation(ctx, a)
	if err != nil {
		return err
	}

	if err := withSessions(a, opts...); err != nil {
		return err
	}

	debug := cfg.Server.Debug
	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               appName,
			DisableStartupMessage: !debug,
		})
		app.Use(fiberrecover.New())
		if debug {
			return router.DefaultFiberOptions(app)
		}
		return app
	})

	srv.Router().WithLogger(a.GetLogger("router"))

	srv.Router().Get("/healthz", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}).SetName("healthz")
	srv.WrappedRouter().Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	controller := auth.NewHTTPController(a.sessions, a.tokens, cfg,
		auth.WithHTTPLogger(a.GetLogger("auth:http")),
		auth.WithHTTPDebug(debug),
	)
	auth.RegisterSessionRoutes(srv.Router(), controller)

	if debug {
		for _, route := range srv.Router().Routes() {
			a.GetLogger("app").Debug("route", "name", route.Name, "method", route.Method, "path", route.Path)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		a.GetLogger("app").Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.Serve(cfg.Server.Addr)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		<-sigCtx.Done()
	case <-sigCtx.Done():
	}

	a.GetLogger("app").Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func withDirectory(ctx context.Context, a *app) error {
	dirCfg := a.cfg.Directory

	if dirCfg.DSN == "" {
		a.GetLogger("app").Warn("no directory.dsn configured, users are kept in memory")
		users := auth.NewMemoryUsers(dirCfg.PasswordCost)
		if dirCfg.HashidIDs {
			users.WithHashidIDs()
		}
		a.directory = users
		return nil
	}

	client, db, err := withPersistence(ctx, dirCfg, a.GetLogger("persistence"))
	if err != nil {
		return err
	}
	a.db = db

	if report := client.Report(); report != nil && !report.IsZero() {
		a.GetLogger("app").Info("migrations applied", "report", report.String())
	}

	opts := []auth.UsersOption{auth.WithUsersLogger(a.GetLogger("auth:users"))}
	if dirCfg.PasswordCost > 0 {
		opts = append(opts, auth.WithPasswordCost(dirCfg.PasswordCost))
	}
	if dirCfg.HashidIDs {
		opts = append(opts, auth.WithHashidIDs())
	}

	repos := auth.NewRepositoryManager(client.DB(), opts...)
	repos.MustValidate()

	a.directory = repos.Users()

	return nil
}

func withMetrics(a *app) {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func withRevocation(ctx context.Context, a *app) ([]auth.SessionOption, error) {
	if a.cfg.Redis.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", a.cfg.Redis.Addr, err)
	}
	a.redis = client

	revocations := auth.NewRedisRevocationList(client, a.cfg.Redis.Prefix)
	return []auth.SessionOption{auth.WithRevocationList(revocations)}, nil
}

func withSessions(a *app, extra ...auth.SessionOption) error {
	tokens, err := auth.NewTokenServiceFromConfig(a.cfg, auth.WithTokenLogger(a.GetLogger("auth:tokens")))
	if err != nil {
		return err
	}
	a.tokens = tokens

	metrics, err := auth.NewPrometheusMetrics(a.registry)
	if err != nil {
		return err
	}

	activityLogger := a.GetLogger("auth:activity")
	audit := activitymap.New(
		activitymap.WithDefaultChannel(appName),
		activitymap.WithObjectIDResolver(auditSubject),
	)
	opts := []auth.SessionOption{
		auth.WithSessionLogger(a.GetLogger("auth:sessions")),
		auth.WithDirectoryTimeout(a.cfg.GetDirectoryTimeout()),
		auth.WithMetrics(metrics),
		auth.WithActivitySink(auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
			activityLogger.Info("auth activity", audit.Map(event).Attrs()...)
			return nil
		})),
	}
	if cost := a.cfg.Directory.PasswordCost; cost > 0 {
		opts = append(opts, auth.WithTimingHash(auth.RandomPasswordHash(cost)))
	}

	a.sessions = auth.NewSessionController(a.directory, auth.BcryptVerifier{}, tokens, append(opts, extra...)...)
	return nil
}

// auditSubject keys an activity record by user id. Events without one, such
// as failed logins, are keyed by a digest of the email so repeated attempts
// correlate without logging the address.
func auditSubject(event auth.ActivityEvent) string {
	if id := strings.TrimSpace(event.UserID); id != "" {
		return id
	}
	if email := auth.NormalizeEmail(event.Email); email != "" {
		return "email:" + uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String()
	}
	return ""
}
