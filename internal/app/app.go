// Package app wires configuration into the running directory service.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/importer"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/places"
	"github.com/Ramsey-B/fern/pkg/ratelimit"
	"github.com/Ramsey-B/fern/pkg/recovery"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/storage"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// NewLogger builds the process logger. PRETTY_LOGS switches to the
// development encoder.
func NewLogger(cfg *config.Config) (ectologger.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid LOG_LEVEL %q", cfg.LogLevel)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.InitialFields = map[string]any{"app": cfg.AppName, "version": cfg.Version}

	zapLogger, err := zcfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), nil
}

// App holds the wired service.
type App struct {
	cfg     *config.Config
	logger  ectologger.Logger
	db      database.DB
	startup *startup.Startup
	health  *health.Checker

	Imports    *importer.Orchestrator
	Recoveries *recovery.Orchestrator
}

// New connects to the database and builds every component. Network
// dependencies other than the database connect in Start.
func New(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*App, error) {
	db, err := database.Connect(ctx, database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
		health:  health.NewChecker(cfg.Version),
	}
	a.health.AddCheck("database", db.PingContext)

	a.startup.AddDependency(tracing.NewProvider(tracing.Config{
		Enabled:     cfg.OTLPEnabled,
		ServiceName: cfg.AppName,
		Endpoint:    cfg.OTLPEndpoint,
		Protocol:    cfg.OTLPProtocol,
		Insecure:    cfg.OTLPInsecure,
	}))

	deps := importer.Deps{
		Reference:  repositories.NewReferenceRepository(db, logger),
		Entities:   repositories.NewEntityRepository(db, logger, cfg.RecoveryExistenceChunk),
		Enrichment: repositories.NewEnrichmentRepository(db, logger),
		OpLog:      repositories.NewOperationLogRepository(db, logger),
		Batches:    repositories.NewImportBatchRepository(db, logger),
	}

	var limiter places.Limiter
	if cfg.RedisHost != "" {
		rc := redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		a.startup.AddDependency(rc)
		a.health.AddCheck("redis", rc.Ping)

		deps.Locker = redis.NewLocker(rc, cfg.AppName+":lock:")
		limiter = ratelimit.NewManager(redis.NewRateLimiter(rc, cfg.AppName+":ratelimit:"), ratelimit.Limit{
			Name:     "places",
			Requests: cfg.PlacesRateLimit,
			Window:   cfg.PlacesRateWindow,
			MaxWait:  cfg.PlacesRateMaxWait,
		}, logger)
	} else {
		a.health.AddOptionalCheck("redis", nil)
		logger.Warn("REDIS_HOST is empty, import locks and shared rate limits are disabled")
	}

	credentials := places.NewCredentialResolver(cfg.PlacesAPIKey, repositories.NewSettingsRepository(db, logger), logger)
	a.startup.AddDependency(credentials)

	httpCfg := httpclient.DefaultConfig()
	httpCfg.Name = "places"
	httpCfg.Timeout = cfg.PlacesRequestTimeout
	deps.Places = places.NewClient(places.Config{
		BaseURL:        cfg.PlacesBaseURL,
		RequestTimeout: cfg.PlacesRequestTimeout,
		MaxAttempts:    cfg.PlacesMaxAttempts,
		RetryDelay:     cfg.PlacesRetryDelay,
		LanguageCode:   cfg.PlacesLanguageCode,
		RegionCode:     cfg.PlacesRegionCode,
	}, credentials, httpclient.NewClient(httpCfg, logger), limiter, logger)

	uploader := storage.NewGCSUploader(storage.GCSConfig{
		Bucket:          cfg.StorageBucket,
		CredentialsJSON: cfg.StorageCredentialsJSON,
	}, logger)
	if cfg.StorageBucket != "" {
		a.startup.AddDependency(uploader)
		a.health.AddOptionalCheck("storage", uploader.Ping)
		deps.Photos = storage.NewPersister(uploader, storage.Config{
			Prefix:        cfg.StoragePrefix,
			PublicHost:    cfg.StoragePublicHost,
			MaxWidthPx:    cfg.StorageMaxWidthPx,
			UploadTimeout: cfg.StorageUploadTimeout,
		}, logger)
	} else {
		a.health.AddOptionalCheck("storage", nil)
		logger.Warn("STORAGE_BUCKET is empty, imported entities will have no photos")
	}

	if kcfg := kafka.ParseConfig(cfg.KafkaBrokers, cfg.KafkaDirectoryTopic); kcfg.Enabled() {
		producer := kafka.NewProducer(kcfg, logger)
		a.startup.AddDependency(producer)
		deps.Events = producer
	}

	a.Imports = importer.NewOrchestrator(deps, importer.Config{
		ImportRadiusKm: cfg.ImportRadiusKm,
		WidenFactor:    cfg.ImportWidenFactor,
		Concurrency:    cfg.ImportConcurrency,
		LockTTL:        cfg.ImportLockTTL,
		CountryMarkers: cfg.CountryMarkers,
		CountrySuffix:  cfg.SearchCountrySuffix,
		PhoneRegion:    cfg.PhoneDefaultRegion,
	}, logger)
	a.Recoveries = recovery.NewOrchestrator(deps.OpLog, deps.Entities, a.Imports.Pipeline(), recovery.Config{
		LogPageSize: cfg.RecoveryLogPageSize,
		RadiusKm:    cfg.RecoveryRadiusKm,
	}, logger)

	return a, nil
}

// Migrate applies the schema migrations.
func (a *App) Migrate() error {
	return database.NewMigrationService(a.logger, &database.MigrationConfig{
		MigrationFolderPath: a.cfg.DatabaseMigrationFolderPath,
		Version:             uint(a.cfg.DatabaseMigrationVersion),
		Force:               a.cfg.DatabaseMigrationForce,
		AutoRollback:        a.cfg.DatabaseMigrationAutoRollback,
	}).MigratePostgres(a.db, a.cfg.DatabaseName)
}

// Start brings up the registered dependencies and marks the service ready.
func (a *App) Start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	a.health.SetReady(true)
	return nil
}

// Stop releases dependencies in reverse start order and closes the database.
func (a *App) Stop(ctx context.Context) error {
	a.health.SetReady(false)
	err := a.startup.Stop(ctx)
	if cerr := a.db.SQLX().Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Router builds the HTTP surface.
func (a *App) Router(ctx context.Context) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(echomw.Recover())
	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context(!a.cfg.AuthEnabled))
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.AllowOrigins,
		AllowMethods: a.cfg.AllowMethods,
	}))

	a.health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if a.cfg.AuthEnabled {
		verify, err := middleware.NewOIDCVerifier(ctx, a.cfg.AuthIssuerURL, a.cfg.AuthClientID)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create OIDC verifier")
		}
		api.Use(middleware.Authentication(a.logger, verify, a.cfg.AuthOperatorRoles))
	}
	handlers.NewDirectoryHandler(a.Imports, a.logger).RegisterRoutes(api)
	handlers.NewRecoveryHandler(a.Recoveries).RegisterRoutes(api)

	return e, nil
}

// Server wraps the router with the configured timeouts.
func (a *App) Server(handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Port),
		Handler:           handler,
		ReadTimeout:       time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
	}
}

// Describe lists the optional integrations that are switched on.
func (a *App) Describe() string {
	var on []string
	if a.cfg.RedisHost != "" {
		on = append(on, "redis")
	}
	if a.cfg.StorageBucket != "" {
		on = append(on, "storage")
	}
	if a.cfg.KafkaBrokers != "" {
		on = append(on, "kafka")
	}
	if a.cfg.OTLPEnabled {
		on = append(on, "tracing")
	}
	if a.cfg.AuthEnabled {
		on = append(on, "auth")
	}
	if len(on) == 0 {
		return "none"
	}
	return strings.Join(on, ",")
}
